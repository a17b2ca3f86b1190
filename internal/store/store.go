// Package store persists profiles, the shoe catalog and scan results.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/FrenchMajesty/shoewall/pkg/types"
)

// ErrNotFound is returned when a profile or scan does not exist
var ErrNotFound = errors.New("store: not found")

// Scan is one completed analysis. Only the image size is kept.
type Scan struct {
	RequestID       string                      `json:"request_id"`
	UserID          string                      `json:"user_id"`
	MimeType        string                      `json:"mime_type"`
	ImageBytes      int                         `json:"image_bytes"`
	Vision          types.VisionResult          `json:"vision"`
	Recommendations types.RecommendationsResult `json:"recommendations"`
	FallbackNeeded  bool                        `json:"fallback_needed"`
	CreatedAt       time.Time                   `json:"created_at"`
}

// Store is implemented by Postgres and Memory
type Store interface {
	GetProfile(ctx context.Context, userID string) (types.UserProfile, error)
	UpsertProfile(ctx context.Context, userID string, p types.UserProfile) error
	ListShoes(ctx context.Context) ([]types.ShoeSpec, error)
	UpsertShoe(ctx context.Context, s types.ShoeSpec) error
	SaveScan(ctx context.Context, s Scan) error
	GetScan(ctx context.Context, requestID string) (Scan, error)
	Ping(ctx context.Context) error
	Close()
}
