package flybeth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ibraheemosule/flybeth-sub002/backing"
	"github.com/ibraheemosule/flybeth-sub002/credential"
	"github.com/ibraheemosule/flybeth-sub002/internal/events"
)

// Builder assembles a [Coordinator]. Configure it during initialization
// and call Build exactly once; Build opens no connections.
type Builder struct {
	config Config

	store      *credential.Store
	httpClient *http.Client
	backing    *backing.Store
	sink       EventSink
	warn       func(string, ...any)

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration. Unset fields fall back to
// defaults during Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the durable credential store. Required.
func (b *Builder) WithCredentialStore(store *credential.Store) *Builder {
	b.store = store
	return b
}

// WithHTTPClient sets the client used for endpoint calls. Defaults to a
// fresh [http.Client] bound by the configured request timeout.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithBacking attaches a Redis backing store, enabling server-side
// sessions and the optional cross-process refresh lock.
func (b *Builder) WithBacking(store *backing.Store) *Builder {
	b.backing = store
	return b
}

// WithEventSink sets the lifecycle event consumer. Events are delivered
// asynchronously; Events.Enabled must also be set.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithWarn installs a hook for non-fatal diagnostics. The hook must be
// safe for concurrent use.
func (b *Builder) WithWarn(warn func(string, ...any)) *Builder {
	b.warn = warn
	return b
}

// Build validates the configuration and assembles the coordinator. When
// the monitor is enabled its goroutine starts here.
func (b *Builder) Build() (*Coordinator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, fmt.Errorf("%w: credential store required", ErrNotReady)
	}
	if cfg.Lock.Enabled && b.backing == nil {
		return nil, fmt.Errorf("%w: cross-process lock requires a backing store", ErrNotReady)
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Refresh.RequestTimeout}
	}

	c := &Coordinator{
		config:     cfg,
		store:      b.store,
		httpClient: httpClient,
		backing:    b.backing,
		metrics:    NewMetrics(cfg.Metrics),
		warn:       b.warn,
		dispatcher: events.NewDispatcher(events.Config{
			Enabled:    cfg.Events.Enabled,
			BufferSize: cfg.Events.BufferSize,
			DropIfFull: cfg.Events.DropIfFull,
		}, b.sink),
	}

	if b.backing != nil {
		c.sessions = backing.NewSessions(b.backing, backing.DefaultSessionTTL)
		if cfg.Lock.Enabled {
			c.lock = backing.NewLock(b.backing, cfg.Lock.Name, cfg.Lock.TTL)
		}
	}

	if cfg.Monitor.Enabled {
		c.monitor = newMonitor(c)
		c.monitor.Start()
	}

	b.built = true
	return c, nil
}
