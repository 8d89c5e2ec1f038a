package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/caarlos0/env/v11"

	"github.com/zhouzirui/gemini-chat/backend/internal/integrations/paramstore"
	"github.com/zhouzirui/gemini-chat/backend/internal/storage"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Storage StorageConfig
	Client  ClientConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses configuration from an explicit environment map instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.AI.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if cfg.Client.RevealInterval < 0 {
		return nil, fmt.Errorf("invalid REVEAL_INTERVAL value %s", cfg.Client.RevealInterval)
	}

	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"3000"`
	StaticDir      string        `env:"STATIC_DIR"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Addr is derived from Port.
	Addr string `env:"-"`
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3000" 或 "127.0.0.1:3000"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// Providers understood by AI_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string        `env:"AI_PROVIDER" envDefault:"gemini"`
	APIKey      string        `env:"GEMINI_API_KEY"`
	APIKeyParam string        `env:"GEMINI_API_KEY_PARAM"`
	Model       string        `env:"AI_MODEL" envDefault:"gemini-2.5-flash"`
	BaseURL     string        `env:"AI_BASE_URL"`
	Timeout     time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
	Temperature *float64      `env:"AI_TEMPERATURE"`
	MaxTokens   *int          `env:"AI_MAX_TOKENS"`

	// Ark specific credentials, kept for the Volcengine provider.
	ArkAPIKey    string `env:"ARK_API_KEY"`
	ArkAccessKey string `env:"ARK_ACCESS_KEY"`
	ArkSecretKey string `env:"ARK_SECRET_KEY"`
	ArkRegion    string `env:"ARK_REGION" envDefault:"cn-beijing"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
}

func (c *AIConfig) validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case ProviderGemini, ProviderArk, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid AI_PROVIDER value %q", c.Provider)
	}
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		return errors.New("AI_MODEL must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid AI_TIMEOUT value %s", c.Timeout)
	}
	return nil
}

// Enabled 表示当前 provider 是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != "")
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	default:
		return c.APIKey != ""
	}
}

// ResolveAPIKey fills APIKey from the parameter store when it was not set in
// the environment and GEMINI_API_KEY_PARAM names a parameter.
func (c *AIConfig) ResolveAPIKey(ctx context.Context, getter paramstore.Getter) error {
	if c.APIKey != "" || c.APIKeyParam == "" {
		return nil
	}
	if getter == nil {
		return errors.New("GEMINI_API_KEY_PARAM is set but no parameter store is available")
	}

	key, err := getter.GetParameter(ctx, c.APIKeyParam)
	if err != nil {
		return fmt.Errorf("resolve api key: %w", err)
	}
	c.APIKey = key
	return nil
}

// NewParamStore builds an SSM-backed parameter getter from the default AWS credential chain.
func (c AIConfig) NewParamStore(ctx context.Context, region string) (*paramstore.Client, error) {
	awsCfg, err := loadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return paramstore.New(ssm.NewFromConfig(awsCfg))
}

// Storage backends understood by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// StorageConfig 描述会话持久化后端。
type StorageConfig struct {
	Backend         string `env:"STORE_BACKEND" envDefault:"file"`
	Path            string `env:"STORE_PATH" envDefault:"data/chats.json"`
	DynamoTable     string `env:"STORE_DYNAMO_TABLE"`
	DynamoNamespace string `env:"STORE_DYNAMO_NAMESPACE"`
	AWSRegion       string `env:"AWS_REGION"`
}

func (c *StorageConfig) validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("STORE_PATH is required for the %s backend", c.Backend)
		}
	case BackendDynamoDB:
		if strings.TrimSpace(c.DynamoTable) == "" {
			return errors.New("STORE_DYNAMO_TABLE is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND value %q", c.Backend)
	}
	return nil
}

// NewStore 根据配置创建持久化后端。
func (c StorageConfig) NewStore(ctx context.Context) (storage.Store, error) {
	switch c.Backend {
	case BackendMemory:
		return storage.NewMemoryStore(nil), nil
	case BackendFile:
		return storage.NewFileStore(c.Path)
	case BackendSQLite:
		return storage.OpenSQLite(c.Path)
	case BackendDynamoDB:
		awsCfg, err := loadAWSConfig(ctx, c.AWSRegion)
		if err != nil {
			return nil, err
		}
		return storage.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), c.DynamoTable, c.DynamoNamespace)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Backend)
	}
}

// ClientConfig 描述终端客户端配置。
type ClientConfig struct {
	ProxyURL       string        `env:"PROXY_URL" envDefault:"http://localhost:3000"`
	RevealInterval time.Duration `env:"REVEAL_INTERVAL" envDefault:"15ms"`
	Timeout        time.Duration `env:"PROXY_TIMEOUT" envDefault:"90s"`
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}
