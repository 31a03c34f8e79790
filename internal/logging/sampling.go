package logging

import "go.uber.org/zap/zapcore"

// newSampledCore samples entries below error level. Errors always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	sampled := zapcore.NewSamplerWithOptions(core, cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter)
	return &splitCore{Core: core, sampled: sampled}
}

// splitCore routes error-and-above entries to the raw core and the rest to
// the sampler.
type splitCore struct {
	zapcore.Core
	sampled zapcore.Core
}

func (c *splitCore) With(fields []zapcore.Field) zapcore.Core {
	return &splitCore{Core: c.Core.With(fields), sampled: c.sampled.With(fields)}
}

func (c *splitCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level >= zapcore.ErrorLevel {
		return c.Core.Check(e, ce)
	}
	return c.sampled.Check(e, ce)
}
