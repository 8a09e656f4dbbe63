package models

import "time"

// 发件箱消息投递状态
const (
	OutboxStatusPending = "PENDING" // 等待投递
	OutboxStatusSent    = "SENT"    // 已成功投递
	OutboxStatusFailed  = "FAILED"  // 重试耗尽，放弃投递
)

// OutboxMessage 事务性发件箱消息，与业务写入处于同一事务，
// 由中继异步投递到RabbitMQ。
type OutboxMessage struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement"`
	AggregateID      string     `gorm:"type:char(36);not null;index:idx_outbox_aggregate_id"` // 业务聚合标识，此处为上传UUID
	EventType        string     `gorm:"type:varchar(100);not null"`
	Payload          string     `gorm:"type:json;not null"`
	TargetExchange   string     `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string     `gorm:"type:varchar(255);not null"`
	Status           string     `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_outbox_status_created_at"`
	RetryCount       int        `gorm:"default:0"`
	LastError        string     `gorm:"type:text"`
	CreatedAt        time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_outbox_status_created_at,sort:asc"`
	ProcessedAt      *time.Time `gorm:"type:datetime(6);null"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
