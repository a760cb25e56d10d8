package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// nextRunKeyScript returns max(now, last+1) and stores it, so every caller
// across processes gets a distinct, increasing key.
var nextRunKeyScript = redis.NewScript(`
	local now = tonumber(ARGV[1])
	local last = tonumber(redis.call("get", KEYS[1]) or "0")
	if now <= last then
		now = last + 1
	end
	redis.call("set", KEYS[1], now)
	return now
`)

// RunKeyAllocator hands out CDC keys shared by every process using the same
// Redis key.
type RunKeyAllocator struct {
	client *Client
	key    string
	now    func() time.Time
}

// NewRunKeyAllocator creates an allocator storing its high-water mark in key.
func NewRunKeyAllocator(client *Client, key string) *RunKeyAllocator {
	if key == "" {
		key = "fern:cdc_key"
	}
	return &RunKeyAllocator{client: client, key: key, now: time.Now}
}

// Next returns a key derived from wall-clock seconds, bumped past the last
// key handed out.
func (a *RunKeyAllocator) Next(ctx context.Context) (int64, error) {
	key, err := nextRunKeyScript.Run(ctx, a.client.rdb, []string{a.key}, a.now().Unix()).Int64()
	if err != nil {
		a.client.logger.WithContext(ctx).WithError(err).Error("failed to allocate CDC key")
		return 0, err
	}
	return key, nil
}
