package tokens

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoUser = errors.New("tokens: empty user id")

// Store persists tokens and component classes per user. Get reports
// ok=false when nothing was saved; callers fall back to the defaults.
// Writes replace the whole mapping, so the last writer wins.
type Store interface {
	Get(ctx context.Context, userID string) (DesignTokens, bool, error)
	Set(ctx context.Context, userID string, tokens DesignTokens) error
	GetComponents(ctx context.Context, userID string) (ComponentClasses, bool, error)
	SetComponents(ctx context.Context, userID string, classes ComponentClasses) error
}

// Load returns the user's tokens over the defaults.
func Load(ctx context.Context, store Store, userID string) (DesignTokens, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	saved, ok, err := store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	if !ok {
		return Defaults(), nil
	}
	return Merge(Defaults(), saved), nil
}

// Update merges partial into the user's current tokens and saves the
// result.
func Update(ctx context.Context, store Store, userID string, partial DesignTokens) (DesignTokens, error) {
	current, err := Load(ctx, store, userID)
	if err != nil {
		return nil, err
	}
	merged := Merge(current, partial)
	if err := store.Set(ctx, userID, merged); err != nil {
		return nil, fmt.Errorf("save tokens: %w", err)
	}
	return merged, nil
}

// LoadComponents returns the user's component classes over the defaults.
func LoadComponents(ctx context.Context, store Store, userID string) (ComponentClasses, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	saved, _, err := store.GetComponents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load components: %w", err)
	}
	return MergeComponents(saved), nil
}
