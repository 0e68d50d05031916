package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/utafrali/storefront/pkg/logger"
)

func TestTraceQuery_LogsSlowQueries(t *testing.T) {
	var buf bytes.Buffer
	SetSlowQueryLogging(time.Nanosecond, logger.NewWithWriter("test", "info", &buf))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "orders.MarkPaid", "UPDATE orders SET is_paid = true")
	time.Sleep(time.Millisecond)
	end(errors.New("deadlock detected"))

	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "orders.MarkPaid")
	assert.Contains(t, buf.String(), "deadlock detected")
}

func TestTraceQuery_DisabledThreshold(t *testing.T) {
	var buf bytes.Buffer
	SetSlowQueryLogging(0, logger.NewWithWriter("test", "info", &buf))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "orders.GetByID", "SELECT 1")
	end(nil)

	assert.Zero(t, buf.Len())
}

type fakeStat struct{}

func (fakeStat) AcquiredConns() int32        { return 3 }
func (fakeStat) IdleConns() int32            { return 2 }
func (fakeStat) TotalConns() int32           { return 5 }
func (fakeStat) MaxConns() int32             { return 25 }
func (fakeStat) AcquireCount() int64         { return 100 }
func (fakeStat) EmptyAcquireCount() int64    { return 4 }
func (fakeStat) CanceledAcquireCount() int64 { return 1 }

func TestPoolStatsCollector(t *testing.T) {
	c := newPoolStatsCollector(func() poolStat { return fakeStat{} }, "storefront")
	assert.Equal(t, 7, testutil.CollectAndCount(c))
}
