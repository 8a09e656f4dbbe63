// Package outbox 实现事务性发件箱模式的消息中继。
package outbox

import (
	"context"
	"log"
	"time"

	"resume-screening-go/internal/storage"
	"resume-screening-go/internal/storage/models"
	"resume-screening-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second // 轮询outbox表的间隔
	defaultBatchSize       = 10              // 每次轮询处理的消息批量大小
	maxRetryCount          = 5               // 发布失败的最大重试次数
)

// MessageRelay 轮询outbox表并将待投递消息发布到RabbitMQ
type MessageRelay struct {
	db              *gorm.DB
	publisher       *storage.RabbitMQ
	logger          *log.Logger
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	tracer          trace.Tracer
}

// NewMessageRelay 创建一个新的MessageRelay实例
func NewMessageRelay(db *gorm.DB, publisher *storage.RabbitMQ, logger *log.Logger) *MessageRelay {
	return &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("resume-screening-go/outbox"),
	}
}

// Start 启动后台轮询。多次调用Stop之前只应调用一次。
func (r *MessageRelay) Start() {
	r.logger.Println("消息中继启动")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Println("消息中继已停止")
				return
			case <-ticker.C:
				if err := r.relayBatch(context.Background()); err != nil {
					r.logger.Printf("处理待投递消息批次失败: %v", err)
				}
			}
		}
	}()
}

// Stop 停止消息中继
func (r *MessageRelay) Stop() {
	r.logger.Println("消息中继停止中...")
	close(r.done)
}

// relayBatch 在单个事务中锁定一批待投递消息，逐条发布并更新状态。
// FOR UPDATE SKIP LOCKED 跳过已被其他实例锁定的行，允许水平扩展。
func (r *MessageRelay) relayBatch(ctx context.Context) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	var messages []models.OutboxMessage
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}

	// 空轮询不创建Span
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.RelayBatch",
		trace.WithAttributes(
			attribute.Int("messaging.batch.message_count", len(messages)),
		),
	)
	defer span.End()

	for i := range messages {
		r.dispatch(ctx, &messages[i])
		if err := tx.Save(&messages[i]).Error; err != nil {
			// 状态更新失败则整个事务回滚，该批次在下一轮被重新拾取
			r.logger.Printf("更新outbox消息 %d 状态失败: %v", messages[i].ID, err)
			return err
		}
	}

	return tx.Commit().Error
}

// dispatch 发布单条消息并就地更新其投递状态字段
func (r *MessageRelay) dispatch(ctx context.Context, msg *models.OutboxMessage) {
	err := r.publisher.PublishMessage(
		ctx,
		msg.TargetExchange,
		msg.TargetRoutingKey,
		[]byte(msg.Payload),
		true, // 持久化消息
	)
	if err == nil {
		now := time.Now()
		msg.Status = models.OutboxStatusSent
		msg.ProcessedAt = &now
		msg.LastError = ""
		return
	}

	tracing.RecordError(trace.SpanFromContext(ctx), err, tracing.ErrorTypeRabbitMQ)
	msg.RetryCount++
	msg.LastError = err.Error()
	r.logger.Printf("发布outbox消息 %d (聚合ID %s) 失败: %v, 已重试 %d 次", msg.ID, msg.AggregateID, err, msg.RetryCount)
	if msg.RetryCount >= maxRetryCount {
		msg.Status = models.OutboxStatusFailed
		r.logger.Printf("outbox消息 %d 重试次数耗尽，标记为 %s", msg.ID, models.OutboxStatusFailed)
	}
}
