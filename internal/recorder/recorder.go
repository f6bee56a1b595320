// Package recorder persists recorded sensor readings. Readings are
// buffered and bulk-inserted with the pgx COPY protocol so that many
// concurrently deciding checkers share one write path.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrheling/pybotz/internal/checker"
	"github.com/jrheling/pybotz/internal/config"
)

const maxConsecutiveFails = 5

// BatchRecorder implements checker.Recorder. Record is safe for
// concurrent use by multiple module checkers; serialization happens on
// the submit channel.
type BatchRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	cfg    config.RecorderConfig

	submitCh chan checker.RecordedReading

	// Batch under construction, swapped out on flush.
	currentBatch []checker.RecordedReading
	batchMu      sync.Mutex

	// Readings from failed flushes waiting for retry.
	requeueBuffer []checker.RecordedReading
	bufferMu      sync.Mutex

	consecutiveFailures int
}

// NewBatchRecorder creates a BatchRecorder writing to the reading table.
func NewBatchRecorder(pool *pgxpool.Pool, cfg config.RecorderConfig, logger *slog.Logger) *BatchRecorder {
	return &BatchRecorder{
		pool:         pool,
		logger:       logger.With("component", "recorder"),
		cfg:          cfg,
		submitCh:     make(chan checker.RecordedReading, cfg.BatchSize*2),
		currentBatch: make([]checker.RecordedReading, 0, cfg.BatchSize),
	}
}

// Record queues one reading for bulk insertion. It blocks when the submit
// channel is full, providing natural backpressure on the checkers.
func (br *BatchRecorder) Record(ctx context.Context, r checker.RecordedReading) error {
	select {
	case br.submitCh <- r:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("record cancelled: %w", ctx.Err())
	}
}

// Run starts the recorder's buffering loop and blocks until the context
// is cancelled. Any buffered readings are flushed before returning, so
// nothing accepted by Record is silently lost at shutdown.
func (br *BatchRecorder) Run(ctx context.Context) error {
	br.logger.Info("batch recorder starting",
		"batch_size", br.cfg.BatchSize,
		"flush_interval", br.cfg.GetFlushInterval(),
	)

	flushTicker := time.NewTicker(br.cfg.GetFlushInterval())
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			br.logger.Info("batch recorder shutting down, flushing remaining readings")
			br.drainSubmitted()
			if err := br.flush(context.Background()); err != nil {
				br.logger.Error("final flush failed", "error", err)
			}
			return ctx.Err()

		case r := <-br.submitCh:
			br.batchMu.Lock()
			br.currentBatch = append(br.currentBatch, r)
			size := len(br.currentBatch)
			br.batchMu.Unlock()

			if size >= br.cfg.BatchSize {
				if err := br.flush(ctx); err != nil {
					br.logger.Error("flush on batch size failed", "error", err)
				}
			}

		case <-flushTicker.C:
			br.batchMu.Lock()
			hasData := len(br.currentBatch) > 0
			br.batchMu.Unlock()

			if hasData {
				if err := br.flush(ctx); err != nil {
					br.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}
}

// drainSubmitted moves any readings still sitting in the submit channel
// into the current batch. Used once at shutdown, after Record callers
// have stopped.
func (br *BatchRecorder) drainSubmitted() {
	for {
		select {
		case r := <-br.submitCh:
			br.batchMu.Lock()
			br.currentBatch = append(br.currentBatch, r)
			br.batchMu.Unlock()
		default:
			return
		}
	}
}

// flush writes the current batch (plus any requeued readings) to the
// database.
func (br *BatchRecorder) flush(ctx context.Context) error {
	br.batchMu.Lock()
	if len(br.currentBatch) == 0 {
		br.batchMu.Unlock()
		return nil
	}
	batch := br.currentBatch
	br.currentBatch = make([]checker.RecordedReading, 0, br.cfg.BatchSize)
	br.batchMu.Unlock()

	br.bufferMu.Lock()
	if len(br.requeueBuffer) > 0 {
		batch = append(br.requeueBuffer, batch...)
		br.requeueBuffer = nil
	}
	br.bufferMu.Unlock()

	start := time.Now()
	err := br.writeBatch(ctx, batch)
	duration := time.Since(start)

	if err != nil {
		br.consecutiveFailures++
		br.logger.Error("batch write failed",
			"error", err,
			"batch_size", len(batch),
			"consecutive_failures", br.consecutiveFailures,
		)

		if br.consecutiveFailures < maxConsecutiveFails {
			br.requeue(batch)
		} else {
			br.logger.Error("max consecutive write failures reached, dropping batch",
				"dropped_count", len(batch),
			)
		}
		return err
	}

	br.consecutiveFailures = 0
	br.logger.Debug("batch written",
		"batch_size", len(batch),
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// writeBatch performs the actual database write using the COPY protocol.
func (br *BatchRecorder) writeBatch(ctx context.Context, batch []checker.RecordedReading) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := br.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			br.logger.Warn("failed to rollback transaction", "error", err)
		}
	}()

	copyCount, err := tx.Conn().CopyFrom(
		ctx,
		pgx.Identifier{"reading"},
		[]string{"sensor", "module", "value", "units", "observed_at"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]interface{}, error) {
			r := batch[i]
			var units *string
			if r.Units != "" {
				units = &r.Units
			}
			return []interface{}{
				r.SensorID,
				r.ModuleID,
				r.Value,
				units,
				r.ObservedAt,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("COPY operation failed: %w", err)
	}
	if copyCount != int64(len(batch)) {
		return fmt.Errorf("COPY count mismatch: expected %d, got %d", len(batch), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// requeue holds a failed batch for the next flush, bounded so a long
// store outage cannot grow memory without limit.
func (br *BatchRecorder) requeue(batch []checker.RecordedReading) {
	br.bufferMu.Lock()
	defer br.bufferMu.Unlock()

	maxBuffer := br.cfg.BatchSize * 10
	available := maxBuffer - len(br.requeueBuffer)
	if available <= 0 {
		br.logger.Warn("requeue buffer full, dropping batch",
			"dropped_count", len(batch),
		)
		return
	}

	toRequeue := batch
	if len(batch) > available {
		toRequeue = batch[:available]
		br.logger.Warn("partial requeue due to buffer limit",
			"requested", len(batch),
			"requeued", len(toRequeue),
		)
	}

	br.requeueBuffer = append(br.requeueBuffer, toRequeue...)
}
