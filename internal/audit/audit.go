// Package audit implements the asynchronous security audit journal.
//
// Log calls never touch the database directly and never block on it: they
// enqueue onto a bounded buffered channel drained by a small fixed pool of
// worker goroutines, the same bounded-queue shape this codebase's worker
// pools elsewhere use to avoid one-goroutine-per-event growth under load.
// When the queue is full the oldest pending event is dropped to make room
// for the new one, and the drop is logged at WARN; callers never see an
// error and are never blocked by a slow or unavailable database.
package audit

import (
	"context"
	"time"

	"github.com/streamspace/authcore/internal/logger"
	"github.com/streamspace/authcore/internal/models"
)

// Store is the persistence surface Journal needs, implemented by
// internal/db.AuditStore.
type Store interface {
	Insert(ctx context.Context, e *models.AuditEntry) error
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error)
}

// Journal is the AuditJournal implementation: a bounded queue plus a fixed
// worker pool writing entries to Store.
type Journal struct {
	store   Store
	queue   chan *models.AuditEntry
	workers int
	done    chan struct{}
}

// New constructs a Journal. queueSize <= 0 defaults to 1024, workers <= 0
// defaults to 4. Call Start to spin up the worker pool.
func New(store Store, queueSize, workers int) *Journal {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 4
	}
	return &Journal{
		store:   store,
		queue:   make(chan *models.AuditEntry, queueSize),
		workers: workers,
		done:    make(chan struct{}),
	}
}

// Start launches the worker pool. Workers run until ctx is cancelled or
// Stop is called, whichever happens first.
func (j *Journal) Start(ctx context.Context) {
	for i := 0; i < j.workers; i++ {
		go j.worker(ctx)
	}
}

// Stop signals the worker pool to exit and returns without waiting for it.
// Entries still in the queue, and entries enqueued after Stop is called, are
// not persisted (the caller never blocks).
func (j *Journal) Stop() {
	select {
	case <-j.done:
		// already stopped
	default:
		close(j.done)
	}
}

func (j *Journal) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.done:
			return
		case entry, ok := <-j.queue:
			if !ok {
				return
			}
			if err := j.store.Insert(ctx, entry); err != nil {
				logger.Audit().Error().Err(err).Str("eventKind", string(entry.EventKind)).Msg("failed to persist audit entry")
			}
		}
	}
}

// Log enqueues a security event for asynchronous persistence. It never
// blocks: if the queue is full, the oldest pending entry is dropped to make
// room and the drop is logged at WARN.
func (j *Journal) Log(kind models.EventKind, userID, tenantID, ip, userAgent string, details map[string]interface{}) {
	entry := &models.AuditEntry{
		EventKind: kind,
		UserID:    nonEmpty(userID),
		TenantID:  nonEmpty(tenantID),
		IP:        nonEmpty(ip),
		UserAgent: nonEmpty(userAgent),
		Details:   details,
		CreatedAt: time.Now(),
	}

	select {
	case j.queue <- entry:
		return
	default:
	}

	// Queue is full: drop the oldest entry to make room.
	select {
	case dropped := <-j.queue:
		logger.Audit().Warn().Str("eventKind", string(dropped.EventKind)).Msg("audit queue full, dropping oldest event")
	default:
	}

	select {
	case j.queue <- entry:
	default:
		// Lost the race to another producer; drop this event instead.
		logger.Audit().Warn().Str("eventKind", string(kind)).Msg("audit queue full, dropping new event")
	}
}

// Query wraps the admin audit-log query surface.
func (j *Journal) Query(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error) {
	return j.store.List(ctx, filter)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
