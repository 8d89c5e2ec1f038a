package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrPK        = "PK"
	attrValue     = "value"
	attrUpdatedAt = "updatedAt"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// *dynamodb.Client satisfies it; tests substitute a fake.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps one item per key in a DynamoDB table whose partition key is
// the string attribute "PK". A namespace prefix lets several clients share a table.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	namespace string
}

// NewDynamoStore creates a DynamoStore. namespace may be empty.
func NewDynamoStore(api dynamodbAPI, tableName, namespace string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("storage: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("storage: dynamodb table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, namespace: strings.TrimSpace(namespace)}, nil
}

func (s *DynamoStore) pk(key string) string {
	if s.namespace == "" {
		return "KV#" + key
	}
	return "KV#" + s.namespace + "#" + key
}

func (s *DynamoStore) Get(ctx context.Context, key string) (string, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: s.pk(key)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("storage: dynamodb get %q: %w", key, err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", ErrNotFound
	}

	attr, ok := out.Item[attrValue].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("storage: dynamodb item %q has no string value", key)
	}
	return attr.Value, nil
}

func (s *DynamoStore) Set(ctx context.Context, key, value string) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			attrPK:        &types.AttributeValueMemberS{Value: s.pk(key)},
			attrValue:     &types.AttributeValueMemberS{Value: value},
			attrUpdatedAt: &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("storage: dynamodb put %q: %w", key, err)
	}
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: s.pk(key)},
		},
	})
	if err != nil {
		return fmt.Errorf("storage: dynamodb delete %q: %w", key, err)
	}
	return nil
}
