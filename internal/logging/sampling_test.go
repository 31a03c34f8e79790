package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/linkrank/internal/config"
)

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	zl := zap.New(newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    2,
		Thereafter: 0,
	}))

	for i := 0; i < 5; i++ {
		zl.Info("Batch finished")
		zl.Error("Engine failed")
	}

	assert.Equal(t, 2, logs.FilterMessage("Batch finished").Len())
	assert.Equal(t, 5, logs.FilterMessage("Engine failed").Len())
}

func TestSampledCore_WithKeepsSplit(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	zl := zap.New(newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    1,
		Thereafter: 0,
	})).With(zap.String("component", "orchestrator"))

	for i := 0; i < 3; i++ {
		zl.Warn("Batch timed out")
		zl.Error("Ranking failed")
	}

	assert.Equal(t, 1, logs.FilterMessage("Batch timed out").Len())
	assert.Equal(t, 3, logs.FilterMessage("Ranking failed").Len())
	assert.Equal(t, "orchestrator", logs.All()[0].ContextMap()["component"])
}

func TestSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{}))
}
