package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"resume-screening-go/internal/config"
	"resume-screening-go/internal/constants"
	"resume-screening-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound key不存在时返回，对redis.Nil做一层抽象
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("resume-screening-go/storage/redis")

// Redis操作前缀采样率配置
var redisKeySamplingRates = map[string]float64{
	"screening:search:session:": 0.25,
	"screening:search:detail:":  0.1,
	"screening:search:lock:":    0.5,
	"screening:file:":           0.1,
}

var (
	rnd      *rand.Rand
	rndMutex sync.Mutex
)

func init() {
	source := rand.NewSource(time.Now().UnixNano())
	rnd = rand.New(source)
}

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}

	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}

	// 默认采样率5%
	return randFloat() < 0.05
}

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis 封装Redis客户端
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis客户端连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 返回配置的MD5记录过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

// Get 获取键的值
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Get", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", key),
		)
	}

	val, err := r.Client.Get(ctx, key).Result()

	if span != nil {
		if err != nil {
			// key不存在不算错误
			if err == redis.Nil {
				span.SetStatus(codes.Ok, "key not found")
				span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return "", err
		}

		span.SetAttributes(
			attribute.Bool("db.redis.key_exists", true),
			attribute.Int("db.redis.value_length", len(val)),
		)
		span.SetStatus(codes.Ok, "")
	}

	return val, err
}

// Set 设置键的值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Set", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", key),
			attribute.Int("db.redis.value_length", len(value)),
		)

		if expiration > 0 {
			span.SetAttributes(attribute.Int64("db.redis.expiration_ms", expiration.Milliseconds()))
		}
	}

	err := r.Client.Set(ctx, key, value, expiration).Err()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// CheckAndSetFileMD5 检查文件MD5是否已上传过，不存在时原子登记。
// 返回(是否已存在, 已存在时关联的上传UUID)。
func (r *Redis) CheckAndSetFileMD5(ctx context.Context, md5Hex string, uploadUUID string) (bool, string, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndSetFileMD5",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("net.peer.name", r.config.Address),
		attribute.String("db.redis.key", constants.KeyFileMD5Set),
		attribute.String("db.redis.member", md5Hex),
	)

	if r.Client == nil {
		err := fmt.Errorf("redis客户端未初始化")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", err
	}

	setKey := constants.KeyFileMD5Set
	mapKey := constants.KeyFileMD5ToUploadPrefix + md5Hex

	exists, err := r.Client.SIsMember(ctx, setKey, md5Hex).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", fmt.Errorf("检查MD5是否存在失败: %w", err)
	}
	if exists {
		existingUUID, err := r.Client.Get(ctx, mapKey).Result()
		if err != nil && err != redis.Nil {
			span.RecordError(err)
			return true, "", fmt.Errorf("获取已存在的上传UUID失败: %w", err)
		}
		span.SetAttributes(attribute.Bool("already_exists", true))
		span.SetStatus(codes.Ok, "")
		return true, existingUUID, nil
	}

	// MD5不存在，原子登记
	pipe := r.Client.Pipeline()
	setCmd := pipe.SAdd(ctx, setKey, md5Hex)
	setNXCmd := pipe.SetNX(ctx, mapKey, uploadUUID, r.GetMD5ExpireDuration())
	pipe.ExpireNX(ctx, setKey, r.GetMD5ExpireDuration())
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", fmt.Errorf("执行原子登记MD5失败: %w", err)
	}

	if setCmd.Val() > 0 && setNXCmd.Val() {
		span.SetAttributes(attribute.Bool("already_exists", false))
		span.SetStatus(codes.Ok, "")
		return false, "", nil
	}

	// 极小并发窗口内被其它进程抢先登记，重新读取
	existingUUID, err := r.Client.Get(ctx, mapKey).Result()
	if err != nil {
		span.RecordError(err)
		return true, "", fmt.Errorf("获取已存在的上传UUID失败: %w", err)
	}
	span.SetAttributes(attribute.Bool("already_exists", true))
	span.SetStatus(codes.Ok, "")
	return true, existingUUID, nil
}

// RemoveFileMD5 从去重集合中移除文件MD5（上传回滚时使用）
func (r *Redis) RemoveFileMD5(ctx context.Context, md5Hex string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	pipe := r.Client.Pipeline()
	pipe.SRem(ctx, constants.KeyFileMD5Set, md5Hex)
	pipe.Del(ctx, constants.KeyFileMD5ToUploadPrefix+md5Hex)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("移除文件MD5失败: %w", err)
	}
	return nil
}

// CacheRoleSearchResults 将某岗位完整的排序结果缓存到Redis。
// ZSET保存排名（倒序排名作为分数，ZRevRange即按原始排名取出），
// HASH保存每个候选人的评分明细JSON。
func (r *Redis) CacheRoleSearchResults(ctx context.Context, roleKey string, results []types.RankedCandidate, ttl time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	if len(results) == 0 {
		return nil // 不缓存空结果
	}

	sessionKey := constants.KeyRoleSearchSessionPrefix + roleKey
	detailKey := constants.KeyRoleSearchDetailPrefix + roleKey

	pipe := r.Client.Pipeline()

	// 先删除旧key，保证缓存内容与本次排序一致
	pipe.Del(ctx, sessionKey)
	pipe.Del(ctx, detailKey)

	members := make([]redis.Z, len(results))
	details := make(map[string]interface{}, len(results))
	for i, res := range results {
		members[i] = redis.Z{
			Score:  float64(len(results) - i),
			Member: res.CandidateID,
		}
		detailJSON, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("序列化搜索结果明细失败: %w", err)
		}
		details[res.CandidateID] = string(detailJSON)
	}

	pipe.ZAdd(ctx, sessionKey, members...)
	pipe.HSet(ctx, detailKey, details)
	pipe.Expire(ctx, sessionKey, ttl)
	pipe.Expire(ctx, detailKey, ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// GetCachedRoleSearchResults 按游标从缓存取一页搜索结果。
// 缓存未命中（ZSET为空）时返回 totalCount == 0。
func (r *Redis) GetCachedRoleSearchResults(ctx context.Context, roleKey string, cursor, limit int64) ([]types.RankedCandidate, int64, error) {
	sessionKey := constants.KeyRoleSearchSessionPrefix + roleKey
	detailKey := constants.KeyRoleSearchDetailPrefix + roleKey

	ctx, span := redisTracer.Start(ctx, "GetCachedRoleSearchResults", trace.WithAttributes(
		semconv.DBSystemRedis,
		attribute.String("redis.key", sessionKey),
		attribute.Int64("redis.cursor", cursor),
		attribute.Int64("redis.limit", limit),
	))
	defer span.End()

	pipe := r.Client.Pipeline()
	countCmd := pipe.ZCard(ctx, sessionKey)
	rangeCmd := pipe.ZRevRange(ctx, sessionKey, cursor, cursor+limit-1)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		span.RecordError(err)
		return nil, 0, err
	}

	candidateIDs, err := rangeCmd.Result()
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("获取缓存搜索结果失败: %w", err)
	}

	totalCount, err := countCmd.Result()
	if err != nil {
		return nil, 0, err
	}
	if totalCount == 0 {
		return nil, 0, nil
	}
	if len(candidateIDs) == 0 {
		return []types.RankedCandidate{}, totalCount, nil
	}

	detailJSONs, err := r.Client.HMGet(ctx, detailKey, candidateIDs...).Result()
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("获取缓存明细失败: %w", err)
	}

	results := make([]types.RankedCandidate, 0, len(candidateIDs))
	for i, raw := range detailJSONs {
		detailJSON, ok := raw.(string)
		if !ok || detailJSON == "" {
			// 明细缺失时只保留ID，调用方可回源补全
			results = append(results, types.RankedCandidate{CandidateID: candidateIDs[i]})
			continue
		}
		var candidate types.RankedCandidate
		if err := json.Unmarshal([]byte(detailJSON), &candidate); err != nil {
			return nil, 0, fmt.Errorf("反序列化缓存明细失败: %w", err)
		}
		results = append(results, candidate)
	}

	span.SetAttributes(attribute.Int("results.count", len(results)))
	return results, totalCount, nil
}

// InvalidateRoleSearchCache 清除某岗位的搜索结果缓存（新简历入库后调用）
func (r *Redis) InvalidateRoleSearchCache(ctx context.Context, roleKeys ...string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	if len(roleKeys) == 0 {
		return nil
	}
	keys := make([]string, 0, len(roleKeys)*2)
	for _, roleKey := range roleKeys {
		keys = append(keys,
			constants.KeyRoleSearchSessionPrefix+roleKey,
			constants.KeyRoleSearchDetailPrefix+roleKey,
		)
	}
	return r.Client.Del(ctx, keys...).Err()
}

// AcquireLock 尝试获取一个分布式锁
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}
	// 持有者标识必须全局唯一，纳秒时间戳在并发抢锁时可能撞车
	holder, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("生成锁持有者标识失败: %w", err)
	}
	lockValue := holder.String()
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	// 未能获取锁
	return "", nil
}

// ReleaseLock 释放一个分布式锁，使用Lua脚本保证原子性
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}

	return false, nil // 锁不存在或不属于当前持有者
}
