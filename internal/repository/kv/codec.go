// Package kv implements the repositories on top of a store.Store, with
// every value JSON-encoded under its key.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/store"
)

// getJSON decodes the value at key into dst. It reports false when the key
// is absent or holds something that does not parse; the latter is logged
// and otherwise treated as absent.
func getJSON(ctx context.Context, s store.Store, logger *slog.Logger, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		logger.WarnContext(ctx, "ignoring unparsable stored value",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false, nil
	}
	return true, nil
}

func setJSON(ctx context.Context, s store.Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func remove(ctx context.Context, s store.Store, key string) error {
	if err := s.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
