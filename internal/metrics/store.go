package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"meal-mailer/internal/database"
)

var errCritical = errors.New("critical database error")

// DeliveryMetric records the outcome of a single delivery attempt.
type DeliveryMetric struct {
	PlanID    string
	Channel   string
	Success   bool
	LatencyMS int64
	Error     string
	Timestamp time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sqlx.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m DeliveryMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO delivery_metrics (plan_id, channel, success, latency_ms, error, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
			m.PlanID, m.Channel, m.Success, m.LatencyMS, m.Error, ts.UTC())
		if err != nil {
			if database.IsLockError(err) {
				return err // retry
			}
			return fmt.Errorf("%w: failed to record delivery metric: %w", errCritical, err)
		}
		return nil
	}, errCritical)
}

// Observe builds a metric for a delivery that started at start and ended with err.
func Observe(planID, channel string, start time.Time, err error) DeliveryMetric {
	m := DeliveryMetric{
		PlanID:    planID,
		Channel:   channel,
		Success:   err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		m.Error = err.Error()
	}
	return m
}

// DailyStats summarizes the deliveries of a single day and channel.
type DailyStats struct {
	Date         string  `db:"day"`
	Channel      string  `db:"channel"`
	Total        int     `db:"total"`
	Failed       int     `db:"failed"`
	AvgLatencyMS float64 `db:"avg_latency"`
}

// GetDailyStats retrieves per-day, per-channel totals for the last N days, newest first.
func (s *Store) GetDailyStats(ctx context.Context, days int) ([]DailyStats, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	var results []DailyStats
	err := s.db.SelectContext(ctx, &results, `
		SELECT substr(timestamp, 1, 10) AS day,
			channel,
			COUNT(*) AS total,
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) AS failed,
			AVG(latency_ms) AS avg_latency
		FROM delivery_metrics
		WHERE timestamp >= ?
		GROUP BY day, channel
		ORDER BY day DESC, channel`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily delivery stats: %w", err)
	}
	return results, nil
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	var removed int64
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM delivery_metrics WHERE timestamp < ?`, threshold)
		if err != nil {
			if database.IsLockError(err) {
				return err // retry
			}
			return fmt.Errorf("%w: failed to clean up delivery metrics: %w", errCritical, err)
		}
		removed, err = res.RowsAffected()
		return err
	}, errCritical)
	if err != nil {
		return 0, err
	}
	return removed, nil
}
