package model

import (
	"encoding/json"
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 与业务数据同事务写入，由 job.OutboxRelay 投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);index;not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// NewOutboxMessage 序列化 payload，生成一条待发送消息
func NewOutboxMessage(topic, key string, payload any) (*OutboxMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		MessageKey: key,
		Topic:      topic,
		Payload:    string(b),
		Status:     OutboxStatusPending,
	}, nil
}
