package metadata

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"streamcast/internal/config"
)

// Service is the shared metadata store used by every session (writer) and the
// viewer-facing API (reader). Records are keyed per stream, so concurrent
// sessions for different identifiers never conflict.
type Service interface {
	Seed(ctx context.Context, streamID string) error
	IncrementViewers(ctx context.Context, streamID string) error
	SetURL(ctx context.Context, streamID string, url string) error
	ResetViewers(ctx context.Context, streamID string) error
	Get(ctx context.Context, streamID string) (*StreamMetadata, error)
	Health() map[string]string
	Close() error
}

type service struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg config.RedisConfig) (Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Printf("Metadata: connected to Redis at %s", cfg.Addr())

	return &service{client: client}, nil
}

func streamKey(streamID string) string {
	return "stream:" + streamID
}

// Seed writes the initial record for a session. The viewer count starts at a
// nominal 1 and no url field is set until the first artifact lands in storage.
func (s *service) Seed(ctx context.Context, streamID string) error {
	return s.client.HSet(ctx, streamKey(streamID),
		"viewers", 1,
		"updatedAt", time.Now().UTC().Format(time.RFC3339),
	).Err()
}

// IncrementViewers atomically bumps the viewers field.
func (s *service) IncrementViewers(ctx context.Context, streamID string) error {
	return s.client.HIncrBy(ctx, streamKey(streamID), "viewers", 1).Err()
}

// SetURL records the public playlist URL once content exists in storage.
func (s *service) SetURL(ctx context.Context, streamID string, url string) error {
	return s.client.HSet(ctx, streamKey(streamID),
		"url", url,
		"updatedAt", time.Now().UTC().Format(time.RFC3339),
	).Err()
}

// ResetViewers zeroes the viewers field when a session ends. The url is left
// in place so the last uploaded playlist stays resolvable.
func (s *service) ResetViewers(ctx context.Context, streamID string) error {
	return s.client.HSet(ctx, streamKey(streamID),
		"viewers", 0,
		"updatedAt", time.Now().UTC().Format(time.RFC3339),
	).Err()
}

// Get returns the record for streamID, or ErrNotLive when the record is
// missing or has no url yet.
func (s *service) Get(ctx context.Context, streamID string) (*StreamMetadata, error) {
	fields, err := s.client.HGetAll(ctx, streamKey(streamID)).Result()
	if err != nil {
		return nil, fmt.Errorf("metadata lookup failed: %w", err)
	}
	if len(fields) == 0 || fields["url"] == "" {
		return nil, ErrNotLive
	}

	viewers, err := strconv.ParseInt(fields["viewers"], 10, 64)
	if err != nil {
		viewers = 0
	}

	return &StreamMetadata{
		URL:       fields["url"],
		Viewers:   viewers,
		UpdatedAt: fields["updatedAt"],
	}, nil
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		log.Printf("Metadata: redis health check failed: %v", err)
		return map[string]string{
			"message": "Metadata store is unhealthy",
			"error":   err.Error(),
		}
	}

	return map[string]string{
		"message": "Metadata store is healthy",
		"status":  "connected",
	}
}

func (s *service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
