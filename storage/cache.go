package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"kanban-api/domain"
)

type backend interface {
	FetchBoard(ctx context.Context, projectID string) (domain.BoardSnapshot, error)
	ApplyTaskUpdates(ctx context.Context, projectID string, updates []domain.PositionUpdate, movedTaskID, targetColumnID string, targetTerminal bool) error
	ApplyColumnUpdates(ctx context.Context, projectID string, updates []domain.ColumnPositionUpdate) error
}

// Cache wraps a Storage instance with Redis-backed caching for board reads.
// Every committed move evicts the project's snapshot so the next read sees
// server truth.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client
// and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) FetchBoard(ctx context.Context, projectID string) (domain.BoardSnapshot, error) {
	if board, ok := c.loadBoardFromCache(ctx, projectID); ok {
		return board, nil
	}

	board, err := c.base.FetchBoard(ctx, projectID)
	if err != nil {
		return domain.BoardSnapshot{}, err
	}

	c.storeBoard(ctx, projectID, board)
	return board, nil
}

func (c *Cache) ApplyTaskUpdates(ctx context.Context, projectID string, updates []domain.PositionUpdate, movedTaskID, targetColumnID string, targetTerminal bool) error {
	if err := c.base.ApplyTaskUpdates(ctx, projectID, updates, movedTaskID, targetColumnID, targetTerminal); err != nil {
		return err
	}
	c.Evict(ctx, projectID)
	return nil
}

func (c *Cache) ApplyColumnUpdates(ctx context.Context, projectID string, updates []domain.ColumnPositionUpdate) error {
	if err := c.base.ApplyColumnUpdates(ctx, projectID, updates); err != nil {
		return err
	}
	c.Evict(ctx, projectID)
	return nil
}

// Evict drops the cached snapshot for a project.
func (c *Cache) Evict(ctx context.Context, projectID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey(projectID)).Result()
}

func (c *Cache) loadBoardFromCache(ctx context.Context, projectID string) (domain.BoardSnapshot, bool) {
	if c.redis == nil {
		return domain.BoardSnapshot{}, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(projectID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(projectID)).Err()
		}
		return domain.BoardSnapshot{}, false
	}
	var board domain.BoardSnapshot
	if err := json.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(projectID)).Err()
		return domain.BoardSnapshot{}, false
	}
	return board, true
}

func (c *Cache) storeBoard(ctx context.Context, projectID string, board domain.BoardSnapshot) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(board)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(projectID), data, c.ttl).Err()
}

func boardCacheKey(projectID string) string {
	return "board:" + projectID
}
