package flybeth

import (
	"errors"
	"net/url"
	"time"

	"github.com/ibraheemosule/flybeth-sub002/token"
)

// Config carries every tunable of the coordinator. Zero values select
// defaults; Validate is called by Build.
type Config struct {
	Refresh RefreshConfig
	Monitor MonitorConfig
	Lock    LockConfig
	Events  EventsConfig
	Metrics MetricsConfig
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the refresh endpoint client and the proactive
// refresh window.
type RefreshConfig struct {
	// EndpointURL receives POST {"refreshToken": ...} and answers with a
	// new access token and, optionally, a rotated refresh token.
	EndpointURL string
	// LogoutURL, when set, is notified best-effort on logout.
	LogoutURL string
	// RequestTimeout bounds one endpoint call, independent of any
	// caller's context.
	RequestTimeout time.Duration
	// ExpiryBuffer is the window before expiry in which a token counts
	// as expiring.
	ExpiryBuffer time.Duration
}

/*
====================================
MONITOR CONFIG
====================================
*/

// MonitorConfig controls the background activity/expiry monitor.
type MonitorConfig struct {
	Enabled bool
	// PollInterval is the coarse backstop check. The monitor also arms a
	// precise timer at each credential change.
	PollInterval time.Duration
	// IdleThreshold is how long without reported activity before the
	// monitor makes one extra refresh attempt for the idle period.
	// Inactivity alone never logs the user out.
	IdleThreshold time.Duration
}

/*
====================================
LOCK CONFIG
====================================
*/

// LockConfig controls the optional cross-process refresh lock. With the
// lock disabled, concurrent refreshes from separate processes are
// last-write-wins, which rotation-tolerant endpoints accept.
type LockConfig struct {
	Enabled bool
	Name    string
	TTL     time.Duration
	// AcquireTimeout bounds how long a refresh waits for a contended
	// lock before proceeding without it. It never shortens the endpoint
	// call's own timeout.
	AcquireTimeout time.Duration
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls async lifecycle event delivery.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Refresh: RefreshConfig{
			RequestTimeout: 10 * time.Second,
			ExpiryBuffer:   token.DefaultExpiryBuffer,
		},
		Monitor: MonitorConfig{
			Enabled:       true,
			PollInterval:  2 * time.Minute,
			IdleThreshold: 30 * time.Minute,
		},
		Lock: LockConfig{
			Name:           "refresh",
			TTL:            30 * time.Second,
			AcquireTimeout: 5 * time.Second,
		},
		Events: EventsConfig{
			BufferSize: 64,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are values today; the clone exists so later reference
	// fields cannot alias caller state.
	return cfg
}

// Validate reports the first configuration problem found. Build calls
// normalize before Validate, so only genuinely invalid values remain.
func (c *Config) Validate() error {
	if c.Refresh.EndpointURL == "" {
		return errors.New("config: refresh endpoint URL required")
	}
	if _, err := url.ParseRequestURI(c.Refresh.EndpointURL); err != nil {
		return errors.New("config: refresh endpoint URL invalid")
	}
	if c.Refresh.LogoutURL != "" {
		if _, err := url.ParseRequestURI(c.Refresh.LogoutURL); err != nil {
			return errors.New("config: logout URL invalid")
		}
	}
	if c.Lock.Enabled && c.Lock.Name == "" {
		return errors.New("config: lock name required")
	}
	return nil
}

// normalize fills unset fields with defaults.
func (c *Config) normalize() {
	def := defaultConfig()
	if c.Refresh.RequestTimeout <= 0 {
		c.Refresh.RequestTimeout = def.Refresh.RequestTimeout
	}
	if c.Refresh.ExpiryBuffer <= 0 {
		c.Refresh.ExpiryBuffer = def.Refresh.ExpiryBuffer
	}
	if c.Monitor.PollInterval <= 0 {
		c.Monitor.PollInterval = def.Monitor.PollInterval
	}
	if c.Monitor.IdleThreshold <= 0 {
		c.Monitor.IdleThreshold = def.Monitor.IdleThreshold
	}
	if c.Lock.Name == "" {
		c.Lock.Name = def.Lock.Name
	}
	if c.Lock.TTL <= 0 {
		c.Lock.TTL = def.Lock.TTL
	}
	if c.Lock.AcquireTimeout <= 0 {
		c.Lock.AcquireTimeout = def.Lock.AcquireTimeout
	}
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = def.Events.BufferSize
	}
}
