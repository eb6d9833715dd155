package output

import (
	"fmt"
	"sync"
	"time"

	"tokentruth/pkg/models"

	"github.com/sirupsen/logrus"
)

const asyncQueueSize = 1000

// AsyncOutput 异步输出包装器
// 写操作只入队不落盘，后台worker串行消费；Close会先排干队列。
type AsyncOutput struct {
	inner  Output
	logger *logrus.Logger

	reportChan   chan *models.TruthReport
	decisionChan chan *models.FinalDecision

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}

	mu      sync.Mutex
	dropped uint64
}

// NewAsyncOutput 包装一个同步输出器为异步
func NewAsyncOutput(inner Output, logger *logrus.Logger) *AsyncOutput {
	o := &AsyncOutput{
		inner:        inner,
		logger:       logger,
		reportChan:   make(chan *models.TruthReport, asyncQueueSize),
		decisionChan: make(chan *models.FinalDecision, asyncQueueSize),
		closed:       make(chan struct{}),
	}

	o.wg.Add(1)
	go o.worker()

	return o
}

// worker 后台消费两条队列
func (o *AsyncOutput) worker() {
	defer o.wg.Done()

	reports := o.reportChan
	decisions := o.decisionChan

	for reports != nil || decisions != nil {
		select {
		case report, ok := <-reports:
			if !ok {
				reports = nil
				continue
			}
			if err := o.inner.WriteReport(report); err != nil {
				o.logger.Errorf("异步写报告失败: %v", err)
			}
		case decision, ok := <-decisions:
			if !ok {
				decisions = nil
				continue
			}
			if err := o.inner.WriteDecision(decision); err != nil {
				o.logger.Errorf("异步写决策失败: %v", err)
			}
		}
	}
}

// WriteReport 报告入队，队列满时丢弃并计数
func (o *AsyncOutput) WriteReport(report *models.TruthReport) error {
	if report == nil {
		return nil
	}

	select {
	case <-o.closed:
		return fmt.Errorf("输出器已关闭")
	default:
	}

	select {
	case o.reportChan <- report:
		return nil
	default:
		o.recordDrop()
		return fmt.Errorf("报告队列已满，消息被丢弃")
	}
}

// WriteDecision 决策入队
func (o *AsyncOutput) WriteDecision(decision *models.FinalDecision) error {
	if decision == nil {
		return nil
	}

	select {
	case <-o.closed:
		return fmt.Errorf("输出器已关闭")
	default:
	}

	select {
	case o.decisionChan <- decision:
		return nil
	default:
		o.recordDrop()
		return fmt.Errorf("决策队列已满，消息被丢弃")
	}
}

func (o *AsyncOutput) recordDrop() {
	o.mu.Lock()
	o.dropped++
	dropped := o.dropped
	o.mu.Unlock()
	o.logger.Warnf("输出队列已满，累计丢弃 %d 条", dropped)
}

// GetStats 获取队列统计
func (o *AsyncOutput) GetStats() map[string]interface{} {
	o.mu.Lock()
	dropped := o.dropped
	o.mu.Unlock()

	return map[string]interface{}{
		"report_queue_size":   len(o.reportChan),
		"decision_queue_size": len(o.decisionChan),
		"dropped":             dropped,
	}
}

// Close 排干队列后关闭底层输出器
func (o *AsyncOutput) Close() error {
	var err error
	o.closeOnce.Do(func() {
		close(o.closed)
		close(o.reportChan)
		close(o.decisionChan)

		done := make(chan struct{})
		go func() {
			o.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(10 * time.Second):
			o.logger.Warn("排干输出队列超时")
		}

		err = o.inner.Close()
	})
	return err
}
