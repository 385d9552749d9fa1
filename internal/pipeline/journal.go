package pipeline

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// journal logs a pair's progress and keeps the same lines for its event log entry.
type journal struct {
	log   *zap.Logger
	lines []string
}

func newJournal(log *zap.Logger) *journal {
	return &journal{log: log}
}

func (j *journal) info(msg string, fields ...zap.Field) {
	j.log.Info(msg, fields...)
	j.lines = append(j.lines, render(msg, fields))
}

func (j *journal) error(msg string, fields ...zap.Field) {
	j.log.Error(msg, fields...)
	j.lines = append(j.lines, render(msg, fields))
}

func (j *journal) Lines() []string {
	out := make([]string, len(j.lines))
	copy(out, j.lines)
	return out
}

func render(msg string, fields []zap.Field) string {
	if len(fields) == 0 {
		return msg
	}
	enc := zapcore.NewMapObjectEncoder()
	var b strings.Builder
	b.WriteString(msg)
	for _, f := range fields {
		f.AddTo(enc)
		fmt.Fprintf(&b, " %s=%v", f.Key, enc.Fields[f.Key])
	}
	return b.String()
}
