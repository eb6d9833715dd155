package output

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
)

// FileOutput JSON-lines文件输出
// 报告与决策各写一个文件，按进程启动时间命名。
type FileOutput struct {
	outputDir string
	compress  bool
	logger    *logrus.Logger

	mu           sync.Mutex
	reportFile   *os.File
	decisionFile *os.File
	reportW      io.Writer
	decisionW    io.Writer
	reportGz     *gzip.Writer
	decisionGz   *gzip.Writer
}

// NewFileOutput 创建文件输出器
func NewFileOutput(outputDir string, compress bool, logger *logrus.Logger) (*FileOutput, error) {
	if outputDir == "" {
		outputDir = "./outputs"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	o := &FileOutput{
		outputDir: outputDir,
		compress:  compress,
		logger:    logger,
	}

	timestamp := time.Now().Format("20060102_150405")
	ext := "jsonl"
	if compress {
		ext = "jsonl.gz"
	}

	reportFile, err := os.Create(filepath.Join(outputDir, fmt.Sprintf("reports_%s.%s", timestamp, ext)))
	if err != nil {
		return nil, fmt.Errorf("创建报告文件失败: %w", err)
	}
	o.reportFile = reportFile
	o.reportW = reportFile

	decisionFile, err := os.Create(filepath.Join(outputDir, fmt.Sprintf("decisions_%s.%s", timestamp, ext)))
	if err != nil {
		reportFile.Close()
		return nil, fmt.Errorf("创建决策文件失败: %w", err)
	}
	o.decisionFile = decisionFile
	o.decisionW = decisionFile

	if compress {
		o.reportGz = gzip.NewWriter(reportFile)
		o.decisionGz = gzip.NewWriter(decisionFile)
		o.reportW = o.reportGz
		o.decisionW = o.decisionGz
	}

	logger.Infof("文件输出器已初始化，目录: %s", outputDir)
	return o, nil
}

// WriteReport 写入分析报告
func (o *FileOutput) WriteReport(report *models.TruthReport) error {
	if report == nil {
		return nil
	}
	return o.writeLine(o.reportW, o.reportFile, o.reportGz, report, "报告")
}

// WriteDecision 写入最终决策
func (o *FileOutput) WriteDecision(decision *models.FinalDecision) error {
	if decision == nil {
		return nil
	}
	return o.writeLine(o.decisionW, o.decisionFile, o.decisionGz, decision, "决策")
}

// writeLine 序列化为一行JSON并落盘
func (o *FileOutput) writeLine(w io.Writer, file *os.File, gz *gzip.Writer, v interface{}, kind string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化%s失败: %w", kind, err)
	}
	data = append(data, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("写入%s文件失败: %w", kind, err)
	}

	if gz != nil {
		if err := gz.Flush(); err != nil {
			return fmt.Errorf("刷新%s压缩流失败: %w", kind, err)
		}
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("刷新%s文件失败: %w", kind, err)
	}

	return nil
}

// Close 关闭输出文件
func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error

	if o.reportGz != nil {
		if err := o.reportGz.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.decisionGz != nil {
		if err := o.decisionGz.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.reportFile != nil {
		if err := o.reportFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.decisionFile != nil {
		if err := o.decisionFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("关闭输出文件失败: %v", errs)
	}
	return nil
}
