// Package cache keeps permission caches of several instances consistent.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// NotifyChannel is the channel the functionalities trigger notifies on
const NotifyChannel = "functionality_changed"

const pingInterval = 90 * time.Second

// Target is a cache that can be dropped as a whole
type Target interface {
	Invalidate(ctx context.Context) error
}

// NotificationSource delivers PostgreSQL notifications.
// A nil notification means the connection was re-established and
// notifications may have been lost.
type NotificationSource interface {
	Listen(channel string) error
	Notifications() <-chan *pq.Notification
	Ping() error
	Close() error
}

type listenerSource struct {
	l *pq.Listener
}

func (s *listenerSource) Listen(channel string) error            { return s.l.Listen(channel) }
func (s *listenerSource) Notifications() <-chan *pq.Notification { return s.l.Notify }
func (s *listenerSource) Ping() error                            { return s.l.Ping() }
func (s *listenerSource) Close() error                           { return s.l.Close() }

// Invalidator drops the local permission cache whenever another instance
// changes the registry. It uses PostgreSQL LISTEN/NOTIFY; the cache TTL
// bounds staleness while the listener is disconnected.
type Invalidator struct {
	target Target
	source NotificationSource
	logger logrus.FieldLogger

	mu      sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	stopped bool

	invalidations atomic.Int64
}

// NewInvalidator creates an invalidator listening on a dedicated connection.
// connStr is the PostgreSQL connection string for LISTEN/NOTIFY.
func NewInvalidator(connStr string, target Target, logger logrus.FieldLogger) *Invalidator {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			// Not fatal: the listener reconnects and the TTL still applies
			logger.WithError(err).Warn("permission change listener error")
		}
	}
	l := pq.NewListener(connStr, 10*time.Second, time.Minute, reportProblem)
	return NewInvalidatorWithSource(&listenerSource{l: l}, target, logger)
}

// NewInvalidatorWithSource creates an invalidator over an existing source
func NewInvalidatorWithSource(source NotificationSource, target Target, logger logrus.FieldLogger) *Invalidator {
	return &Invalidator{
		target: target,
		source: source,
		logger: logger,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start subscribes to NotifyChannel and processes notifications until Stop
// is called or ctx is done
func (i *Invalidator) Start(ctx context.Context) error {
	if err := i.source.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	i.mu.Lock()
	i.started = true
	i.mu.Unlock()

	go i.run(ctx)
	return nil
}

// Stop stops processing and closes the source
func (i *Invalidator) Stop() error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return nil
	}
	i.stopped = true
	started := i.started
	close(i.stopCh)
	i.mu.Unlock()

	err := i.source.Close()
	if started {
		<-i.done
	}
	return err
}

// Invalidations returns how many times the cache was dropped
func (i *Invalidator) Invalidations() int64 {
	return i.invalidations.Load()
}

func (i *Invalidator) run(ctx context.Context) {
	defer close(i.done)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.stopCh:
			return
		case <-ctx.Done():
			return
		case n, ok := <-i.source.Notifications():
			if !ok {
				return
			}
			reason := "reconnected"
			if n != nil {
				reason = n.Extra
			}
			i.invalidate(reason)
		case <-ticker.C:
			// Keep the connection alive and detect dead peers early
			if err := i.source.Ping(); err != nil {
				i.logger.WithError(err).Warn("permission change listener ping failed")
			}
		}
	}
}

func (i *Invalidator) invalidate(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := i.target.Invalidate(ctx); err != nil {
		i.logger.WithError(err).Error("failed to invalidate permission cache")
		return
	}
	i.invalidations.Add(1)
	i.logger.WithField("reason", reason).Debug("permission cache invalidated")
}
