package redis

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	xerrors "config-client/internal/errors"
)

// Config 描述 Redis 属性来源的连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	Hash     string
	Timeout  time.Duration
}

// hashClient 是 PropertyStore 用到的 go-redis 命令子集。
type hashClient interface {
	HGet(ctx context.Context, key, field string) *goredis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *goredis.IntCmd
	Close() error
}

// PropertyStore 将一个 Redis 哈希作为属性来源，字段名即属性名。
type PropertyStore struct {
	client  hashClient
	hash    string
	timeout time.Duration
}

// NewPropertyStore 创建 Redis 客户端并执行 PING 校验连接。
func NewPropertyStore(ctx context.Context, cfg Config) (*PropertyStore, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return newPropertyStore(client, cfg.Hash, timeout), nil
}

func newPropertyStore(client hashClient, hash string, timeout time.Duration) *PropertyStore {
	if hash == "" {
		hash = "config-client:properties"
	}
	return &PropertyStore{client: client, hash: hash, timeout: timeout}
}

// Name 返回来源名称。
func (s *PropertyStore) Name() string { return "redis" }

// Lookup 通过 HGET 读取属性，字段不存在时 found 为 false。
func (s *PropertyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, err := s.client.HGet(ctx, s.hash, key).Result()
	switch {
	case err == nil:
		return value, true, nil
	case stdErrors.Is(err, goredis.Nil):
		return "", false, nil
	case stdErrors.Is(err, context.DeadlineExceeded):
		return "", false, xerrors.Wrap(xerrors.CodeTimeout, err, "Redis 查询超时")
	default:
		return "", false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "Redis 查询失败")
	}
}

// Put 写入属性值。
func (s *PropertyStore) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "属性名不能为空")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "Redis 写入失败")
	}
	return nil
}

// Delete 删除属性，不存在时返回 NOT_FOUND。
func (s *PropertyStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	removed, err := s.client.HDel(ctx, s.hash, key).Result()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "Redis 删除失败")
	}
	if removed == 0 {
		return xerrors.New(xerrors.CodeNotFound, "属性不存在", xerrors.WithMetadata("key", key))
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *PropertyStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *PropertyStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
