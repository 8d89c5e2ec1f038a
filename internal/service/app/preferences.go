package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/preference"
	"github.com/zhouzirui/gemini-chat/backend/internal/storage"
)

// Preferences returns the current settings.
func (a *App) Preferences() preference.Preferences {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prefs
}

// SetTheme 保存主题偏好。
func (a *App) SetTheme(ctx context.Context, theme preference.Theme) error {
	theme = preference.ParseTheme(string(theme))
	return a.updatePreference(ctx, preference.KeyTheme, string(theme), func(p *preference.Preferences) {
		p.Theme = theme
	})
}

// SetAutoSave toggles draft saving.
func (a *App) SetAutoSave(ctx context.Context, enabled bool) error {
	err := a.updatePreference(ctx, preference.KeyAutoSave, strconv.FormatBool(enabled), func(p *preference.Preferences) {
		p.AutoSave = enabled
	})
	if err == nil {
		a.chats.SetAutoSave(enabled)
	}
	return err
}

// SetShowTimestamps toggles the timestamp annotation of the transcript.
func (a *App) SetShowTimestamps(ctx context.Context, enabled bool) error {
	return a.updatePreference(ctx, preference.KeyShowTimestamps, strconv.FormatBool(enabled), func(p *preference.Preferences) {
		p.ShowTimestamps = enabled
	})
}

// SetAutoScroll toggles scrolling to the newest message.
func (a *App) SetAutoScroll(ctx context.Context, enabled bool) error {
	return a.updatePreference(ctx, preference.KeyAutoScroll, strconv.FormatBool(enabled), func(p *preference.Preferences) {
		p.AutoScroll = enabled
	})
}

// UpdatePreferences stores every setting of prefs.
func (a *App) UpdatePreferences(ctx context.Context, prefs preference.Preferences) (preference.Preferences, error) {
	if err := a.SetTheme(ctx, prefs.Theme); err != nil {
		return a.Preferences(), err
	}
	if err := a.SetAutoSave(ctx, prefs.AutoSave); err != nil {
		return a.Preferences(), err
	}
	if err := a.SetShowTimestamps(ctx, prefs.ShowTimestamps); err != nil {
		return a.Preferences(), err
	}
	if err := a.SetAutoScroll(ctx, prefs.AutoScroll); err != nil {
		return a.Preferences(), err
	}
	return a.Preferences(), nil
}

func (a *App) updatePreference(ctx context.Context, key, value string, apply func(*preference.Preferences)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("save preference %s: %w", key, err)
	}
	apply(&a.prefs)
	return nil
}

// loadPreferences reads each setting, falling back to the default when a value
// is absent or unreadable. autoSave and autoScroll are on unless stored as
// "false"; showTimestamps is on only when stored as "true".
func loadPreferences(ctx context.Context, store storage.Store) (preference.Preferences, error) {
	prefs := preference.Defaults()

	read := func(key string) (string, bool, error) {
		value, err := store.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("load preference %s: %w", key, err)
		}
		return value, true, nil
	}

	if value, ok, err := read(preference.KeyTheme); err != nil {
		return prefs, err
	} else if ok {
		prefs.Theme = preference.ParseTheme(value)
	}
	if value, ok, err := read(preference.KeyAutoSave); err != nil {
		return prefs, err
	} else if ok {
		prefs.AutoSave = value != "false"
	}
	if value, ok, err := read(preference.KeyShowTimestamps); err != nil {
		return prefs, err
	} else if ok {
		prefs.ShowTimestamps = value == "true"
	}
	if value, ok, err := read(preference.KeyAutoScroll); err != nil {
		return prefs, err
	} else if ok {
		prefs.AutoScroll = value != "false"
	}
	return prefs, nil
}
