package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const indexKeyPrefix = "scrapbook:archived:"

// indexEntry remembers where a source was archived.
type indexEntry struct {
	Title        string    `json:"title"`
	OutputFolder string    `json:"output_folder"`
	PrimaryFile  string    `json:"primary_file"`
	MarkdownFile string    `json:"markdown_file,omitempty"`
	HTMLFile     string    `json:"html_file,omitempty"`
	ArchivedAt   time.Time `json:"archived_at"`
}

// archiveIndex lets repeated runs skip sources archived recently.
type archiveIndex interface {
	lookup(ctx context.Context, source string) (indexEntry, bool, error)
	record(ctx context.Context, source string, e indexEntry) error
	Close() error
}

type noopIndex struct{}

func (noopIndex) lookup(context.Context, string) (indexEntry, bool, error) {
	return indexEntry{}, false, nil
}
func (noopIndex) record(context.Context, string, indexEntry) error { return nil }
func (noopIndex) Close() error                                     { return nil }

// redisIndex keeps one JSON entry per source, expiring after ttl.
type redisIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisIndex(ctx context.Context, redisURL string, ttl time.Duration) (*redisIndex, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &redisIndex{client: client, ttl: ttl}, nil
}

func (r *redisIndex) key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return indexKeyPrefix + hex.EncodeToString(sum[:])
}

func (r *redisIndex) lookup(ctx context.Context, source string) (indexEntry, bool, error) {
	var e indexEntry
	raw, err := r.client.Get(ctx, r.key(source)).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, false, fmt.Errorf("decoding index entry: %w", err)
	}
	return e, true, nil
}

func (r *redisIndex) record(ctx context.Context, source string, e indexEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(source), raw, r.ttl).Err()
}

func (r *redisIndex) Close() error {
	return r.client.Close()
}
