package logging

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/linkrank/internal/config"
)

const redacted = "[REDACTED]"

// Secret logs a config.Secret as its length only.
func Secret(key string, s config.Secret) zap.Field {
	if !s.IsSet() {
		return zap.String(key, "")
	}
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(s.Value()))+"]")
}

// redactor holds the compiled redaction rules.
type redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func (r *redactor) sensitiveKey(key string) bool {
	_, ok := r.keys[strings.ToLower(key)]
	return ok
}

// scrub masks pattern matches in s, keeping each match's first group.
func (r *redactor) scrub(s string) string {
	for _, re := range r.patterns {
		if re.NumSubexp() > 0 {
			s = re.ReplaceAllString(s, "${1}"+redacted)
		} else {
			s = re.ReplaceAllLiteralString(s, redacted)
		}
	}
	return s
}

// field returns f with its value masked when needed.
func (r *redactor) field(f zapcore.Field) zapcore.Field {
	if r.sensitiveKey(f.Key) {
		return zap.String(f.Key, redacted)
	}
	switch f.Type {
	case zapcore.StringType:
		f.String = r.scrub(f.String)
	case zapcore.StringerType:
		if s, ok := f.Interface.(interface{ String() string }); ok {
			return zap.String(f.Key, r.scrub(s.String()))
		}
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok {
			return zap.String(f.Key, r.scrub(err.Error()))
		}
	}
	return f
}

// RedactingEncoder masks sensitive keys and secret-looking substrings. It
// covers both fields bound with With and fields passed per entry.
type RedactingEncoder struct {
	zapcore.Encoder
	r *redactor
}

// NewRedactingEncoder wraps base. A disabled cfg returns a pass-through
// encoder.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}
	patterns, err := compilePatterns(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(cfg.Fields))
	for _, k := range cfg.Fields {
		keys[strings.ToLower(k)] = struct{}{}
	}
	return &RedactingEncoder{Encoder: base, r: &redactor{keys: keys, patterns: patterns}}, nil
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
}

func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if e.r == nil {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	ent.Message = e.r.scrub(ent.Message)
	clean := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		clean[i] = e.r.field(f)
	}
	return e.Encoder.EncodeEntry(ent, clean)
}

func (e *RedactingEncoder) AddString(key, val string) {
	if e.r == nil {
		e.Encoder.AddString(key, val)
		return
	}
	if e.r.sensitiveKey(key) {
		val = redacted
	}
	e.Encoder.AddString(key, e.r.scrub(val))
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.r != nil && e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.r != nil && e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddBinary(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.r != nil && e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.r != nil && e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.r != nil && e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}
