package flybeth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ibraheemosule/flybeth-sub002/token"
)

// minArmDelay keeps the precise timer from spinning when a token is
// already inside the buffer.
const minArmDelay = time.Second

// Monitor watches the stored access token in the background and refreshes
// proactively inside the expiry buffer. Crossing the idle threshold triggers
// one extra refresh attempt; inactivity alone never logs the user out. Only
// a terminal refresh failure does: the store is cleared, a forced-logout
// event is emitted, and the monitor stops.
type Monitor struct {
	coordinator *Coordinator

	pollInterval  time.Duration
	idleThreshold time.Duration
	buffer        time.Duration

	lastActivity atomic.Int64
	// handledActivity marks the idle period already answered with a
	// refresh attempt. Touched only from the run goroutine.
	handledActivity int64

	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newMonitor(c *Coordinator) *Monitor {
	m := &Monitor{
		coordinator:   c,
		pollInterval:  c.config.Monitor.PollInterval,
		idleThreshold: c.config.Monitor.IdleThreshold,
		buffer:        c.config.Refresh.ExpiryBuffer,
		kick:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	m.lastActivity.Store(time.Now().UnixNano())
	return m
}

func (m *Monitor) Start() {
	go m.run()
}

// Stop terminates the monitor goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
}

// ReportActivity records user activity now.
func (m *Monitor) ReportActivity() {
	m.lastActivity.Store(time.Now().UnixNano())
}

// CredentialsChanged re-arms the precise expiry timer. Non-blocking.
func (m *Monitor) CredentialsChanged() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// run combines a precise timer armed at the buffer boundary with a coarse
// poll as a backstop against clock drift and missed re-arms.
func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	timer := time.NewTimer(m.armDelay())
	defer timer.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-m.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.armDelay())
		case <-timer.C:
			if !m.check() {
				return
			}
			timer.Reset(m.armDelay())
		case <-ticker.C:
			if !m.check() {
				return
			}
		}
	}
}

// armDelay returns the time until the stored token enters the expiry
// buffer. Without credentials the timer parks at the poll interval.
func (m *Monitor) armDelay() time.Duration {
	pair, ok := m.coordinator.store.Get()
	if !ok {
		return m.pollInterval
	}

	delay := token.TimeUntilExpiry(pair.AccessToken) - m.buffer
	if delay < minArmDelay {
		return minArmDelay
	}
	return delay
}

// check reports false when the monitor must stop: the refresh token is
// dead, the user has been logged out, and there is nothing left to watch.
func (m *Monitor) check() bool {
	c := m.coordinator
	c.metrics.Inc(MetricMonitorTick)

	pair, ok := c.store.Get()
	if !ok {
		return true
	}

	expiring := token.TimeUntilExpiry(pair.AccessToken) <= m.buffer
	if !expiring && !m.idleCrossed() {
		return true
	}

	c.metrics.Inc(MetricProactiveRefresh)
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Refresh.RequestTimeout)
	defer cancel()

	_, err := c.Refresh(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrRefreshFailed), errors.Is(err, ErrNoRefreshToken):
		c.forceLogout(ReasonSessionExpired)
		return false
	default:
		c.warnf("flybeth: proactive refresh failed: %v", err)
		return true
	}
}

// idleCrossed fires at most once per idle period: a new ReportActivity
// call starts a fresh period.
func (m *Monitor) idleCrossed() bool {
	if m.idleThreshold <= 0 {
		return false
	}

	last := m.lastActivity.Load()
	if time.Duration(time.Now().UnixNano()-last) < m.idleThreshold {
		return false
	}
	if last == m.handledActivity {
		return false
	}
	m.handledActivity = last
	return true
}
