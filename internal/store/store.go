// Package store defines the shared key-value store that backs every piece
// of storefront state. It mirrors browser local storage: synchronous-looking
// string keys and values scoped to one namespace, plus a change feed that
// lets other tabs (processes) observe writes.
package store

import (
	"context"
	"encoding/json"
)

// Change is one write observed on the store by another tab.
type Change struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Removed   bool   `json:"removed"`
	Origin    string `json:"origin"`
}

// Encode serializes the change for a notification channel.
func (c Change) Encode() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeChange parses a notification payload.
func DecodeChange(payload string) (Change, error) {
	var c Change
	err := json.Unmarshal([]byte(payload), &c)
	return c, err
}

// Store is a namespaced string key-value store with a change feed.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key and notifies other tabs.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key and notifies other tabs. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Watch subscribes fn to changes made by other tabs. It returns once the
	// subscription is live; fn is then called from a background goroutine
	// until ctx is cancelled. Changes made through this Store are never
	// delivered to its own watchers.
	Watch(ctx context.Context, fn func(Change)) error

	// Origin identifies this tab on the change feed.
	Origin() string

	// Ping checks connectivity to the backing service.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
