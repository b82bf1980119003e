package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/component"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/pkg/retry"
)

// DefaultSubjectPrefix is the bus subject tree the source listens on.
const DefaultSubjectPrefix = "notify"

// BusClient is the slice of the NATS client the source depends on,
// satisfied by *natsclient.Client.
type BusClient interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
	IsHealthy() bool
}

// SourceConfig holds all configuration needed to construct a Source
type SourceConfig struct {
	Client        BusClient
	Dispatcher    *Dispatcher
	SubjectPrefix string // subjects <prefix>.> feed the dispatcher
	Logger        *slog.Logger
	Metrics       *Metrics

	// Retry overrides the backoff schedule for the startup subscribe;
	// zero value uses the default policy.
	Retry errors.RetryConfig
}

// Source bridges the NATS notification bus into the dispatcher. Producers
// elsewhere in the platform publish Notification JSON on <prefix>.> subjects;
// the source decodes each message and dispatches it to sessions.
type Source struct {
	client     BusClient
	dispatcher *Dispatcher
	prefix     string
	logger     *slog.Logger
	metrics    *Metrics
	retryCfg   errors.RetryConfig

	// Lifecycle management
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex

	received   atomic.Int64
	errorCount atomic.Int64
	lastActive atomic.Value // stores time.Time
}

// Ensure Source implements all required interfaces
var _ component.Discoverable = (*Source)(nil)
var _ component.LifecycleComponent = (*Source)(nil)

// NewSource creates a NATS notification source from config.
func NewSource(cfg SourceConfig) *Source {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = errors.DefaultRetryConfig()
	}

	s := &Source{
		client:     cfg.Client,
		dispatcher: cfg.Dispatcher,
		prefix:     cfg.SubjectPrefix,
		logger:     cfg.Logger.With("component", "notify-source"),
		metrics:    cfg.Metrics,
		retryCfg:   cfg.Retry,
		startTime:  time.Now(),
	}
	s.lastActive.Store(time.Now())
	return s
}

// handleMessage decodes one bus payload and dispatches it. Malformed
// payloads are counted and dropped; they never affect the subscription.
func (s *Source) handleMessage(ctx context.Context, data []byte) {
	s.received.Add(1)
	s.lastActive.Store(time.Now())

	n, err := ParseNotification(data)
	if err != nil {
		s.errorCount.Add(1)
		if s.metrics != nil {
			s.metrics.sourceMessages.WithLabelValues("parse_error").Inc()
		}
		s.logger.Warn("dropping malformed bus notification", "error", err)
		return
	}

	if err := s.dispatcher.Dispatch(ctx, n, n.ResourceURI()); err != nil {
		s.errorCount.Add(1)
		if s.metrics != nil {
			s.metrics.sourceMessages.WithLabelValues("dispatch_error").Inc()
		}
		s.logger.Warn("failed to dispatch bus notification",
			"method", n.Method, "error", err)
		return
	}

	if s.metrics != nil {
		s.metrics.sourceMessages.WithLabelValues("ok").Inc()
	}
}

// Meta returns the component metadata
func (s *Source) Meta() component.Metadata {
	return component.Metadata{
		Name:        "notify-source",
		Type:        "notify",
		Description: fmt.Sprintf("NATS bus consumer on %s.> feeding the notification dispatcher", s.prefix),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (s *Source) Health() component.HealthStatus {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	healthy := running && s.client != nil && s.client.IsHealthy()

	return component.HealthStatus{
		Healthy:    healthy,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errorCount.Load()),
		Uptime:     time.Since(s.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (s *Source) DataFlow() component.FlowMetrics {
	received := s.received.Load()

	var perSecond float64
	if uptime := time.Since(s.startTime).Seconds(); uptime > 0 {
		perSecond = float64(received) / uptime
	}

	var errorRate float64
	if received > 0 {
		errorRate = float64(s.errorCount.Load()) / float64(received)
	}

	lastActive, _ := s.lastActive.Load().(time.Time)

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActive,
	}
}

// Initialize validates source dependencies
func (s *Source) Initialize() error {
	if s.client == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Source", "Initialize",
			"NATS client is required")
	}
	if s.dispatcher == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Source", "Initialize",
			"dispatcher is required")
	}
	return nil
}

// Start subscribes to the notification subject tree, backing off and
// retrying while the broker connection settles.
func (s *Source) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	subject := s.prefix + ".>"
	err := retry.Do(ctx, s.retryCfg.ToRetryConfig(), func() error {
		return s.client.Subscribe(ctx, subject, s.handleMessage)
	})
	if err != nil {
		return errors.WrapTransient(err, "Source", "Start",
			fmt.Sprintf("subscribe to subject %s", subject))
	}

	s.running = true
	s.startTime = time.Now()
	s.logger.Info("notification source started", "subject", subject)
	return nil
}

// Stop marks the source stopped. Subscription cleanup happens when the
// shared NATS client drains on shutdown.
func (s *Source) Stop(_ time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	return nil
}
