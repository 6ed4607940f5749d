package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var nsCounter int64

// testNamespace returns a unique namespace per test so collectors never
// collide in the default registry.
func testNamespace() string {
	return fmt.Sprintf("promptcycle_test_%d", atomic.AddInt64(&nsCounter, 1))
}

func TestCollector_RecordExecution(t *testing.T) {
	c := NewCollector(testNamespace(), zap.NewNop())

	c.RecordExecution("succeeded", 200*time.Millisecond)
	c.RecordExecution("succeeded", time.Second)
	c.RecordExecution("failed", 50*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.executionsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executionsTotal.WithLabelValues("failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.executionDuration))
}

func TestCollector_RecordValidationAttempt(t *testing.T) {
	c := NewCollector(testNamespace(), zap.NewNop())

	c.RecordValidationAttempt()
	c.RecordValidationAttempt()
	c.RecordValidationAttempt()

	assert.Equal(t, 3.0, testutil.ToFloat64(c.validationAttempts))
}

func TestCollector_RecordRound(t *testing.T) {
	c := NewCollector(testNamespace(), zap.NewNop())

	c.RecordRound(6.5, 0.10)
	c.RecordRound(8.0, 0.12)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.roundsTotal))
	assert.Equal(t, 8.0, testutil.ToFloat64(c.roundScore), "gauge tracks the latest round")
	assert.InDelta(t, 0.22, testutil.ToFloat64(c.cycleCost), 1e-9)
}

func TestNewCollector_NilLogger(t *testing.T) {
	c := NewCollector(testNamespace(), nil)
	assert.NotNil(t, c)
	c.RecordRound(1, 0)
}
