package output

import (
	"fmt"
	"os"
	"strings"

	"tokentruth/internal/config"
	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
)

// Output 报告输出接口
type Output interface {
	WriteReport(report *models.TruthReport) error
	WriteDecision(decision *models.FinalDecision) error
	Close() error
}

// NewOutput 按配置创建输出器
// 支持 file / file_async / kafka / kafka_async 四种格式。
func NewOutput(cfg *config.OutputConfig, logger *logrus.Logger) (Output, error) {
	if cfg == nil {
		return nil, fmt.Errorf("输出配置为空")
	}

	format := strings.ToLower(cfg.Format)

	switch format {
	case "kafka", "kafka_async":
		brokers := []string{"localhost:9092"}
		if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
			brokers = strings.Split(kafkaBrokers, ",")
		}
		topics := map[string]string{
			"reports":   "token_truth_reports",
			"decisions": "token_truth_decisions",
		}
		if cfg.Kafka != nil {
			if len(cfg.Kafka.Brokers) > 0 {
				brokers = cfg.Kafka.Brokers
			}
			if len(cfg.Kafka.Topics) > 0 {
				topics = cfg.Kafka.Topics
			}
		}

		kafkaOut, err := NewKafkaOutput(brokers, topics, logger)
		if err != nil {
			return nil, err
		}
		if format == "kafka_async" {
			return NewAsyncOutput(kafkaOut, logger), nil
		}
		return kafkaOut, nil

	case "file", "file_async":
		fileOut, err := NewFileOutput(cfg.Directory, cfg.Compress, logger)
		if err != nil {
			return nil, err
		}
		if format == "file_async" {
			return NewAsyncOutput(fileOut, logger), nil
		}
		return fileOut, nil

	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", cfg.Format)
	}
}
