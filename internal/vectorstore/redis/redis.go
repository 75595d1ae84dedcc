package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"farmcopilot/internal/vectorstore"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Storage keeps the artifacts under two keys written in one transaction.
type Storage struct {
	client    *goredis.Client
	indexKey  string
	chunksKey string
}

func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "farmcopilot:"
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Storage{
		client:    client,
		indexKey:  cfg.KeyPrefix + "index",
		chunksKey: cfg.KeyPrefix + "chunks",
	}, nil
}

func (s *Storage) Save(ctx context.Context, a vectorstore.Artifacts) error {
	chunks, err := json.Marshal(vectorstore.ChunkSet{ID: a.ID, Chunks: a.Chunks})
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.indexKey, a.Index, 0)
		pipe.Set(ctx, s.chunksKey, chunks, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (s *Storage) Load(ctx context.Context) (vectorstore.Artifacts, error) {
	vals, err := s.client.MGet(ctx, s.indexKey, s.chunksKey).Result()
	if err != nil {
		return vectorstore.Artifacts{}, fmt.Errorf("redis load: %w", err)
	}
	index, ok1 := vals[0].(string)
	raw, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return vectorstore.Artifacts{}, vectorstore.ErrNoArtifacts
	}
	var set vectorstore.ChunkSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return vectorstore.Artifacts{}, fmt.Errorf("decode chunks: %w", err)
	}
	return vectorstore.Artifacts{ID: set.ID, Index: []byte(index), Chunks: set.Chunks}, nil
}

func (s *Storage) Close() error {
	if s.client == nil {
		return errors.New("redis storage not initialised")
	}
	return s.client.Close()
}
