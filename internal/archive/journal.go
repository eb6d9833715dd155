package archive

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	// 默认数据库路径
	DefaultDBPath = "./data/reports.db"

	// 存储桶名称
	ReportsBucket = "reports" // request_id -> 报告摘要
	TokensBucket  = "tokens"  // symbol -> 最近一次的request_id
	StatsBucket   = "stats"

	// 统计键
	TotalRequestsKey = "total_requests"
	StartTimeKey     = "start_time"
	LastUpdateKey    = "last_update_time"
)

// Summary 单次分析的归档摘要
// 只记录请求元数据与结果概要，分类结果本身不持久化。
type Summary struct {
	RequestID     string    `json:"request_id"`
	Symbol        string    `json:"symbol"`
	AsOf          time.Time `json:"as_of"`
	InstanceCount int       `json:"instance_count"`
	ErrorCount    int       `json:"error_count"`
	PairCount     int       `json:"pair_count"`
	RiskFlagCount int       `json:"risk_flag_count"`
}

// journalStats 内存统计缓存
type journalStats struct {
	TotalRequests  uint64
	StartTime      time.Time
	LastUpdateTime time.Time
}

// Journal 分析请求归档
type Journal struct {
	db     *bolt.DB
	logger *logrus.Logger
	dbPath string
	mu     sync.RWMutex

	cache *journalStats
}

// NewJournal 创建归档
func NewJournal(dbPath string, logger *logrus.Logger) (*Journal, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开归档数据库失败: %w", err)
	}

	journal := &Journal{
		db:     db,
		logger: logger,
		dbPath: dbPath,
		cache:  &journalStats{},
	}

	if err := journal.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	if err := journal.loadCache(); err != nil {
		logger.Warnf("加载归档统计缓存失败: %v", err)
	}

	logger.Infof("分析归档已初始化，数据库路径: %s", dbPath)
	return journal, nil
}

// initDB 初始化数据库结构
func (j *Journal) initDB() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{ReportsBucket, TokensBucket, StatsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("创建存储桶 %s 失败: %w", bucket, err)
			}
		}
		return nil
	})
}

// loadCache 加载统计缓存
func (j *Journal) loadCache() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(StatsBucket))
		if bucket == nil {
			return nil
		}

		if data := bucket.Get([]byte(TotalRequestsKey)); data != nil {
			j.cache.TotalRequests = binary.BigEndian.Uint64(data)
		}

		if data := bucket.Get([]byte(StartTimeKey)); data != nil {
			var startTime time.Time
			if err := json.Unmarshal(data, &startTime); err == nil {
				j.cache.StartTime = startTime
			}
		}

		if data := bucket.Get([]byte(LastUpdateKey)); data != nil {
			var lastUpdate time.Time
			if err := json.Unmarshal(data, &lastUpdate); err == nil {
				j.cache.LastUpdateTime = lastUpdate
			}
		}

		return nil
	})
}

// Record 归档一份分析报告的摘要
func (j *Journal) Record(report *models.TruthReport) error {
	summary := summarize(report)

	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	j.cache.TotalRequests++
	j.cache.LastUpdateTime = now
	if j.cache.StartTime.IsZero() {
		j.cache.StartTime = now
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		reports := tx.Bucket([]byte(ReportsBucket))
		if reports == nil {
			return fmt.Errorf("报告存储桶不存在")
		}

		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("序列化报告摘要失败: %w", err)
		}
		if err := reports.Put([]byte(summary.RequestID), data); err != nil {
			return fmt.Errorf("保存报告摘要失败: %w", err)
		}

		tokens := tx.Bucket([]byte(TokensBucket))
		if tokens != nil && summary.Symbol != "" {
			if err := tokens.Put([]byte(summary.Symbol), []byte(summary.RequestID)); err != nil {
				return fmt.Errorf("更新代币索引失败: %w", err)
			}
		}

		stats := tx.Bucket([]byte(StatsBucket))
		if stats != nil {
			countData := make([]byte, 8)
			binary.BigEndian.PutUint64(countData, j.cache.TotalRequests)
			stats.Put([]byte(TotalRequestsKey), countData)

			if startData, err := json.Marshal(j.cache.StartTime); err == nil {
				stats.Put([]byte(StartTimeKey), startData)
			}
			if updateData, err := json.Marshal(now); err == nil {
				stats.Put([]byte(LastUpdateKey), updateData)
			}
		}

		return nil
	})
}

// Get 按request_id读取归档摘要，不存在时返回nil
func (j *Journal) Get(requestID string) (*Summary, error) {
	var summary *Summary

	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ReportsBucket))
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(requestID))
		if data == nil {
			return nil
		}

		var s Summary
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("解析报告摘要失败: %w", err)
		}
		summary = &s
		return nil
	})

	return summary, err
}

// LastReportFor 读取某代币最近一次的分析摘要
func (j *Journal) LastReportFor(symbol string) (*Summary, error) {
	var requestID string

	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(TokensBucket))
		if bucket == nil {
			return nil
		}
		if data := bucket.Get([]byte(symbol)); data != nil {
			requestID = string(data)
		}
		return nil
	})
	if err != nil || requestID == "" {
		return nil, err
	}

	return j.Get(requestID)
}

// GetStats 获取归档统计信息
func (j *Journal) GetStats() map[string]interface{} {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stats := map[string]interface{}{
		"total_requests":   j.cache.TotalRequests,
		"start_time":       j.cache.StartTime.Format(time.RFC3339),
		"last_update_time": j.cache.LastUpdateTime.Format(time.RFC3339),
	}

	if !j.cache.StartTime.IsZero() {
		duration := time.Since(j.cache.StartTime)
		stats["running_duration"] = duration.String()
		if seconds := duration.Seconds(); seconds > 0 {
			stats["processing_rate"] = fmt.Sprintf("%.4f requests/sec", float64(j.cache.TotalRequests)/seconds)
		}
	}

	return stats
}

// Reset 清空归档
func (j *Journal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.cache = &journalStats{}

	return j.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{ReportsBucket, TokensBucket, StatsBucket} {
			bucket := tx.Bucket([]byte(name))
			if bucket == nil {
				continue
			}
			if err := bucket.ForEach(func(k, v []byte) error {
				return bucket.Delete(k)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetDBPath 获取数据库路径
func (j *Journal) GetDBPath() string {
	return j.dbPath
}

// Close 关闭归档
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info("关闭分析归档")
		return j.db.Close()
	}
	return nil
}

// summarize 从完整报告提取归档摘要
func summarize(report *models.TruthReport) *Summary {
	flagCount := 0
	for _, instance := range report.Data.Proven.Instances {
		flagCount += len(instance.RiskFlags)
	}

	return &Summary{
		RequestID:     report.RequestID,
		Symbol:        report.Token.Symbol,
		AsOf:          report.AsOf,
		InstanceCount: len(report.Data.Proven.Instances),
		ErrorCount:    len(report.Errors),
		PairCount:     len(report.Data.Inferred.CrossChainEquivalence),
		RiskFlagCount: flagCount,
	}
}
