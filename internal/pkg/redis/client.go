// internal/pkg/redis/client.go
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// ErrCacheMiss 表示键不存在。
var ErrCacheMiss = errors.New("redis: cache miss")

// Client 是 go-redis 的一个薄封装，提供 JSON 读写语义。
type Client struct {
	rdb *goredis.Client
}

// NewClient 创建并探活一个 Redis 客户端。
func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "ping redis at %s", addr)
	}
	return &Client{rdb: rdb}, nil
}

// GetClient 暴露底层客户端，供需要 pipeline 等高级用法的调用方使用。
func (c *Client) GetClient() *goredis.Client { return c.rdb }

// GetJSON 读取键并反序列化到 out；键不存在返回 ErrCacheMiss。
func (c *Client) GetJSON(ctx context.Context, key string, out interface{}) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrCacheMiss
		}
		return errors.Wrapf(err, "redis get %s", key)
	}
	return json.Unmarshal(data, out)
}

// SetJSON 序列化 value 并以 ttl 写入。
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return errors.Wrapf(c.rdb.Set(ctx, key, data, ttl).Err(), "redis set %s", key)
}

// Del 删除一组键。
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.rdb.Del(ctx, keys...).Err(), "redis del")
}

// Close 关闭连接。
func (c *Client) Close() error { return c.rdb.Close() }
