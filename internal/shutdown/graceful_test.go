package shutdown

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestShutdown() *GracefulShutdown {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewGracefulShutdown(5*time.Second, logger)
}

// 注册顺序打乱，执行必须按Order升序：输出 → 归档 → 连接
func TestShutdownExecutionOrder(t *testing.T) {
	gs := newTestShutdown()
	defer gs.Close()

	var executed []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			executed = append(executed, name)
			return nil
		}
	}

	gs.RegisterShutdownFunc("connection_pool", record("connection_pool"), OrderCloseConnections)
	gs.RegisterShutdownFunc("output", record("output"), OrderFlushOutputs)
	gs.RegisterShutdownFunc("archive", record("archive"), OrderCloseArchive)

	gs.Shutdown()

	assert.Equal(t, []string{"output", "archive", "connection_pool"}, executed)
	assert.True(t, gs.IsShuttingDown())
}

// 重复触发停机不能重复执行处理函数
func TestShutdownIdempotent(t *testing.T) {
	gs := newTestShutdown()
	defer gs.Close()

	calls := 0
	gs.RegisterShutdownFunc("output", func(context.Context) error {
		calls++
		return nil
	}, OrderFlushOutputs)

	gs.Shutdown()
	gs.Shutdown()

	assert.Equal(t, 1, calls)
}

// 单个处理函数失败不阻断后续处理
func TestShutdownContinuesAfterError(t *testing.T) {
	gs := newTestShutdown()
	defer gs.Close()

	var executed []string
	gs.RegisterShutdownFunc("output", func(context.Context) error {
		executed = append(executed, "output")
		return fmt.Errorf("冲刷失败")
	}, OrderFlushOutputs)
	gs.RegisterShutdownFunc("connection_pool", func(context.Context) error {
		executed = append(executed, "connection_pool")
		return nil
	}, OrderCloseConnections)

	gs.Shutdown()

	assert.Equal(t, []string{"output", "connection_pool"}, executed)
}
