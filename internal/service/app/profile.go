package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/preference"
	"github.com/zhouzirui/gemini-chat/backend/internal/storage"
)

// ErrInvalidCredentials is returned when the username or password is blank.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Profile is the signed-in user of the placeholder login.
type Profile struct {
	Username  string `json:"username"`
	LoginTime int64  `json:"loginTime"`
}

// Login accepts any non-empty username and password pair and records the user.
// There is no credential check of any kind.
func (a *App) Login(ctx context.Context, username, password string) (Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Profile{}, ErrInvalidCredentials
	}

	profile := Profile{Username: username, LoginTime: a.now().UnixMilli()}
	if err := a.store.Set(ctx, preference.KeyCurrentUser, profile.Username); err != nil {
		return Profile{}, fmt.Errorf("save current user: %w", err)
	}
	if err := a.store.Set(ctx, preference.KeyLoginTime, strconv.FormatInt(profile.LoginTime, 10)); err != nil {
		return Profile{}, fmt.Errorf("save login time: %w", err)
	}
	return profile, nil
}

// Logout forgets the current user.
func (a *App) Logout(ctx context.Context) error {
	for _, key := range []string{preference.KeyCurrentUser, preference.KeyLoginTime} {
		if err := a.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

// CurrentUser returns the signed-in user, ok=false when nobody is.
func (a *App) CurrentUser(ctx context.Context) (Profile, bool, error) {
	username, err := a.store.Get(ctx, preference.KeyCurrentUser)
	if errors.Is(err, storage.ErrNotFound) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("load current user: %w", err)
	}

	profile := Profile{Username: username}
	if raw, err := a.store.Get(ctx, preference.KeyLoginTime); err == nil {
		profile.LoginTime, _ = strconv.ParseInt(raw, 10, 64)
	}
	return profile, true, nil
}
