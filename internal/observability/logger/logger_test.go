package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestForActivityWritesLogFile(t *testing.T) {
	dir := t.TempDir()

	log, closeFn, err := ForActivity(zap.NewNop(), dir, "2024-05-01_10-00-00")
	require.NoError(t, err)

	log.Info("pair processed", zap.String("pair", "invoice_1"))
	require.NoError(t, closeFn())

	raw, err := os.ReadFile(filepath.Join(dir, "activity_2024-05-01_10-00-00.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pair processed")
	assert.Contains(t, string(raw), `"activity_id":"2024-05-01_10-00-00"`)
}

func TestForActivityWithoutDir(t *testing.T) {
	log, closeFn, err := ForActivity(nil, "", "run")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.NoError(t, closeFn())
}

func TestContextFields(t *testing.T) {
	ctx := WithActivityID(context.Background(), " act-1 ")
	ctx = WithPairName(ctx, "doc")

	assert.Equal(t, "act-1", ActivityIDFromContext(ctx))
	assert.Equal(t, "doc", PairFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestDescribeSQL(t *testing.T) {
	op, table := describeSQL(`INSERT INTO "documents" ("dhr_id") VALUES ($1)`)
	assert.Equal(t, "INSERT", op)
	assert.Equal(t, "documents", table)

	op, table = describeSQL("SELECT * FROM pair_history WHERE activity_id = ?")
	assert.Equal(t, "SELECT", op)
	assert.Equal(t, "pair_history", table)

	op, table = describeSQL("select 1")
	assert.Equal(t, "SELECT", op)
	assert.Empty(t, table)
}

func TestGormLoggerTagsStatementWithContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	gl := NewGormLogger(GormLoggerConfig{Level: gormlogger.Info})
	ctx := WithActivityID(context.Background(), "act-1")
	gl.Trace(ctx, time.Now(), func() (string, int64) {
		return "INSERT INTO documents (dhr_id) VALUES (?)", 1
	}, nil)

	entries := logs.FilterMessage("sql statement").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "act-1", fields["activity_id"])
	assert.Equal(t, "documents", fields["table"])
	assert.Equal(t, int64(1), fields["rows"])
}

func TestGormLoggerSkipsNotFoundWhenIgnored(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	gl := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn, IgnoreRecordNotFound: true})
	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM documents", 0
	}, gormlogger.ErrRecordNotFound)

	assert.Zero(t, logs.Len())
}
