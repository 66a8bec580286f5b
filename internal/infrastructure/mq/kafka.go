package mq

import (
	"fmt"

	"storefront/internal/config"

	"github.com/IBM/sarama"
)

// Producer Kafka 同步生产者，只由 outbox relay 使用
type Producer struct {
	producer sarama.SyncProducer
}

func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1
	kafkaConfig.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return &Producer{producer: producer}, nil
}

// NewProducerFrom 包装已有的 SyncProducer
func NewProducerFrom(p sarama.SyncProducer) *Producer {
	return &Producer{producer: p}
}

// Publish 同一订单的消息使用相同 key，保证落在同一分区内有序
func (p *Producer) Publish(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
