package output

import (
	"encoding/json"
	"fmt"
	"time"

	"tokentruth/internal/errors"
	"tokentruth/pkg/models"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// KafkaOutput Kafka输出器
type KafkaOutput struct {
	logger   *logrus.Logger
	topics   map[string]string // 数据类型到topic的映射
	producer sarama.SyncProducer
}

// NewKafkaOutput 创建Kafka输出器
func NewKafkaOutput(brokers []string, topics map[string]string, logger *logrus.Logger) (*KafkaOutput, error) {
	logger.Infof("初始化Kafka输出器，brokers: %v", brokers)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	logger.Info("Kafka生产者已创建")

	return &KafkaOutput{
		logger:   logger,
		topics:   topics,
		producer: producer,
	}, nil
}

// sendToKafka 发送数据到Kafka
func (k *KafkaOutput) sendToKafka(topic, key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeSerialization, errors.SeverityMedium,
			errors.CodeParseError, "序列化Kafka消息失败")
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.StringEncoder(jsonData),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeKafka, errors.SeverityHigh,
			errors.CodeUpstreamError, fmt.Sprintf("发送消息到topic %s 失败", topic))
	}

	k.logger.Debugf("消息已发送到Kafka topic '%s' (partition: %d, offset: %d)",
		topic, partition, offset)

	return nil
}

// WriteReport 写入分析报告
// 以request_id为消息键，同一请求的重试落到同一分区。
func (k *KafkaOutput) WriteReport(report *models.TruthReport) error {
	if report == nil {
		return nil
	}

	topic, exists := k.topics["reports"]
	if !exists {
		return fmt.Errorf("未配置reports topic")
	}
	return k.sendToKafka(topic, report.RequestID, report)
}

// WriteDecision 写入最终决策
func (k *KafkaOutput) WriteDecision(decision *models.FinalDecision) error {
	if decision == nil {
		return nil
	}

	topic, exists := k.topics["decisions"]
	if !exists {
		return fmt.Errorf("未配置decisions topic")
	}

	key := decision.Chain + ":" + decision.TokenAddress
	return k.sendToKafka(topic, key, decision)
}

// Close 关闭Kafka生产者
func (k *KafkaOutput) Close() error {
	if k.producer != nil {
		k.logger.Info("关闭Kafka生产者")
		return k.producer.Close()
	}
	return nil
}
