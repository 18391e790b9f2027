package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"Trellis3D-server/config"
	"Trellis3D-server/models"

	"github.com/redis/go-redis/v9"
)

// StatusKV 状态存储需要的最小 Redis 接口（*redis.Client 天然满足）
type StatusKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// StatusTracker 最近一次生成任务的状态槽位
// 注意：全局只有一个 key，后写覆盖先写。并发提交时两个任务会互相覆盖
// 对方的记录，轮询方可能看到 B 的 processing 而最终完成的是 A。
// 这是单槽位设计的已知限制，不在此层解决。
type StatusTracker struct {
	kv StatusKV
}

func NewStatusTracker(kv StatusKV) *StatusTracker {
	return &StatusTracker{kv: kv}
}

var RedisClient *redis.Client
var Status *StatusTracker

// InitRedis 初始化连接，在 main.go 中调用
func InitRedis() {
	cfg := config.AppConfig.Redis
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})
	if err := RedisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis 连接失败: %v", err)
	}
	log.Println("Redis 连接成功")
	Status = NewStatusTracker(RedisClient)
}

// Write 整体覆盖状态记录（不做字段合并），并把过期时间重置为 3600 秒
func (t *StatusTracker) Write(ctx context.Context, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal status failed: %w", err)
	}
	if err := t.kv.Set(ctx, models.StatusKey, b, models.StatusTTLSeconds*time.Second).Err(); err != nil {
		return fmt.Errorf("set status failed: %w", err)
	}
	return nil
}

// Read 读取当前状态；key 不存在或已过期时返回 idle 默认值
// 存储不可用（网络错误等）时返回 err，由调用方决定怎么暴露，
// 不能悄悄退回 idle 默认值造成误导
func (t *StatusTracker) Read(ctx context.Context) (map[string]interface{}, error) {
	val, err := t.kv.Get(ctx, models.StatusKey).Result()
	if err == redis.Nil {
		return models.IdleStatus(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get status failed: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(val), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal status failed: %w", err)
	}
	return payload, nil
}
