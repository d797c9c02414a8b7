package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-mailer/internal/database"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(ctx, database.MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db.SQL)
	now := time.Now().UTC()
	today := now.Format("2006-01-02")

	require.NoError(t, store.Record(ctx, DeliveryMetric{PlanID: "p1", Channel: "email", Success: true, LatencyMS: 100, Timestamp: now}))
	require.NoError(t, store.Record(ctx, DeliveryMetric{PlanID: "p1", Channel: "email", Success: false, LatencyMS: 300, Error: "smtp down", Timestamp: now}))
	require.NoError(t, store.Record(ctx, DeliveryMetric{PlanID: "p1", Channel: "file", Success: true, LatencyMS: 2}))
	require.NoError(t, store.Record(ctx, DeliveryMetric{PlanID: "old", Channel: "email", Success: true, Timestamp: now.AddDate(0, 0, -40)}))

	stats, err := store.GetDailyStats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, DailyStats{Date: today, Channel: "email", Total: 2, Failed: 1, AvgLatencyMS: 200}, stats[0])
	assert.Equal(t, "file", stats[1].Channel)
	assert.Equal(t, 1, stats[1].Total)
	assert.Zero(t, stats[1].Failed)

	n, err := store.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stats, err = store.GetDailyStats(ctx, 365)
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func TestRecordRetriesWhileLocked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")
	holder, err := database.NewDB(ctx, path)
	require.NoError(t, err)
	defer holder.Close()

	// second connection without busy timeout, so the lock surfaces as SQLITE_BUSY
	conn, err := sqlx.Open("sqlite", "file:"+path+"?_time_format=sqlite")
	require.NoError(t, err)
	defer conn.Close()
	store := NewStore(conn)

	tx, err := holder.SQL.BeginTxx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, `INSERT INTO delivery_metrics (plan_id, channel, success, latency_ms, error, timestamp) VALUES ('p0', 'file', 1, 0, '', ?)`, time.Now().UTC())
	require.NoError(t, err)

	released := make(chan error, 1)
	go func() {
		time.Sleep(120 * time.Millisecond)
		released <- tx.Commit()
	}()

	require.NoError(t, store.Record(ctx, DeliveryMetric{PlanID: "p1", Channel: "email", Success: true}))
	require.NoError(t, <-released)

	var count int
	require.NoError(t, holder.SQL.GetContext(ctx, &count, `SELECT COUNT(*) FROM delivery_metrics`))
	assert.Equal(t, 2, count)
}

func TestRecordCriticalError(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(ctx, database.MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.SQL.ExecContext(ctx, `DROP TABLE delivery_metrics`)
	require.NoError(t, err)

	store := NewStore(db.SQL)
	err = store.Record(ctx, DeliveryMetric{PlanID: "p1", Channel: "email"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errCritical)

	_, err = store.Cleanup(ctx, 30)
	assert.ErrorIs(t, err, errCritical)
}

func TestObserve(t *testing.T) {
	start := time.Now().Add(-50 * time.Millisecond)

	ok := Observe("p1", "file", start, nil)
	assert.True(t, ok.Success)
	assert.Empty(t, ok.Error)
	assert.GreaterOrEqual(t, ok.LatencyMS, int64(50))

	failed := Observe("p1", "email", start, errors.New("boom"))
	assert.False(t, failed.Success)
	assert.Equal(t, "boom", failed.Error)
	assert.Equal(t, "email", failed.Channel)
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2025-05-28.html"), make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2025-05-29.html"), make([]byte, 1024), 0o644))

	h := GetSysHealth(dir)
	assert.Equal(t, 2, h.OutboxFiles)
	assert.Equal(t, "3.0 KB", h.OutboxSize)
	assert.Positive(t, h.Goroutines)

	missing := GetSysHealth(filepath.Join(dir, "nope"))
	assert.Zero(t, missing.OutboxFiles)
	assert.Equal(t, "0 B", missing.OutboxSize)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", HumanSize(512))
	assert.Equal(t, "1.5 KB", HumanSize(1536))
	assert.Equal(t, "2.0 MB", HumanSize(2*1024*1024))
}
