package store

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Decision is the indexability verdict for a canonical path.
type Decision string

// Indexability decisions.
const (
	DecisionIndex   Decision = "index"
	DecisionNoindex Decision = "noindex"
)

// HysteresisState is the persisted streak bookkeeping for one canonical path.
type HysteresisState struct {
	Decision Decision `json:"decision"`
	// ConsecutiveAboveOn counts evaluations in a row at or above the index-on threshold.
	ConsecutiveAboveOn int `json:"consecutive_above_on"`
	// ConsecutiveBelowOff counts evaluations in a row at or below the index-off threshold.
	ConsecutiveBelowOff int       `json:"consecutive_below_off"`
	LastEvaluatedAt     time.Time `json:"last_evaluated_at"`
}

// StateStore persists hysteresis state keyed by canonical path.
type StateStore interface {
	// GetState returns ErrNotFound when the key has never been written.
	GetState(ctx context.Context, key string) (HysteresisState, error)
	SetState(ctx context.Context, key string, state HysteresisState) error
}

// AllowlistSource is the durable set of paths that may be indexed.
type AllowlistSource interface {
	ListPaths(ctx context.Context) ([]string, error)
	AddPath(ctx context.Context, path string) error
	// RemovePath returns ErrNotFound when the path is not present.
	RemovePath(ctx context.Context, path string) error
}

// BlobStore persists generated artifacts such as sitemap.xml.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher delivers event payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
