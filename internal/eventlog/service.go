package eventlog

import (
	"context"
	"sync"
	"time"

	"leadflow/internal/common/config"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/models"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// Repository is the durable side of the event log. *Store implements it.
type Repository interface {
	Insert(ctx context.Context, eventType string, data map[string]interface{}, status models.EventStatus, errorMessage, teamID string) (models.EventLog, error)
	Update(ctx context.Context, id int64, status models.EventStatus, errorMessage string, data map[string]interface{}) (models.EventLog, error)
	Recent(ctx context.Context, limit int, teamID string) ([]models.EventLog, error)
	ExpireProcessing(ctx context.Context, cutoff time.Time, message string) ([]models.EventLog, error)
}

type Options struct {
	BufferSize      int
	Timeout         time.Duration
	MonitorInterval time.Duration
	InitialEvents   int
}

func DefaultOptions() Options {
	return Options{
		BufferSize:      DefaultBufferSize,
		Timeout:         5 * time.Minute,
		MonitorInterval: time.Minute,
		InitialEvents:   20,
	}
}

func OptionsFromConfig(cfg config.EventLogConfig) Options {
	opts := DefaultOptions()
	if cfg.BufferSize > 0 {
		opts.BufferSize = cfg.BufferSize
	}
	if cfg.Timeout > 0 {
		opts.Timeout = config.GetDuration(cfg.Timeout)
	}
	if cfg.MonitorInterval > 0 {
		opts.MonitorInterval = config.GetDuration(cfg.MonitorInterval)
	}
	if cfg.InitialEvents > 0 {
		opts.InitialEvents = cfg.InitialEvents
	}
	return opts
}

// TimeoutConfig is reported by the timeout-config endpoint.
type TimeoutConfig struct {
	TimeoutMinutes int  `json:"timeout_minutes"`
	MonitorRunning bool `json:"monitor_running"`
}

// Service ties the repository, the in-memory buffer and the websocket hub
// together and runs the timeout monitor.
type Service struct {
	repo   Repository
	buffer *Buffer
	hub    *Hub
	opts   Options
	logger logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewService(repo Repository, hub *Hub, opts Options, log logger.Logger) *Service {
	if opts.InitialEvents <= 0 {
		opts.InitialEvents = DefaultOptions().InitialEvents
	}
	return &Service{
		repo:   repo,
		buffer: NewBuffer(opts.BufferSize),
		hub:    hub,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "eventlog"}),
		now:    time.Now,
	}
}

func (s *Service) Hub() *Hub {
	return s.hub
}

// Log records a new event and returns its id.
func (s *Service) Log(ctx context.Context, eventType string, data map[string]interface{}, status models.EventStatus, teamID string) (int64, error) {
	e, err := s.repo.Insert(ctx, eventType, data, status, "", teamID)
	if err != nil {
		s.logger.Error("failed to insert event", map[string]interface{}{"error": err.Error(), "teamId": teamID})
		return 0, apperrors.NewEventLogFailedError("insert", err)
	}

	s.buffer.Push(e)
	s.publish(e)
	return e.ID, nil
}

// Update changes an event's status. Empty errorMessage and nil data leave
// the stored values untouched.
func (s *Service) Update(ctx context.Context, id int64, status models.EventStatus, errorMessage string, data map[string]interface{}) error {
	e, err := s.repo.Update(ctx, id, status, errorMessage, data)
	if err != nil {
		s.logger.Error("failed to update event", map[string]interface{}{"error": err.Error(), "eventId": id})
		return apperrors.NewEventLogFailedError("update", err)
	}

	s.buffer.Replace(e)
	s.publish(e)
	return nil
}

// Recent reads the newest events from the database.
func (s *Service) Recent(ctx context.Context, limit int, teamID string) ([]models.EventLog, error) {
	return s.repo.Recent(ctx, clampLimit(limit), teamID)
}

// Live reads the newest buffered events.
func (s *Service) Live(limit int, teamID string) []models.EventLog {
	return s.buffer.Snapshot(limit, teamID)
}

// CheckTimeouts runs one sweep and returns how many events expired.
func (s *Service) CheckTimeouts(ctx context.Context) (int, error) {
	minutes := s.timeoutMinutes()
	msg := apperrors.NewEventTimeoutError(minutes).Message

	expired, err := s.repo.ExpireProcessing(ctx, s.now().Add(-s.opts.Timeout), msg)
	if err != nil {
		return 0, apperrors.NewEventLogFailedError("expire", err)
	}

	for _, e := range expired {
		s.buffer.Replace(e)
		s.publish(e)
	}
	if n := len(expired); n > 0 {
		metrics.EventLogTimeouts.Add(float64(n))
		s.logger.Warn("events timed out", map[string]interface{}{"count": n, "timeoutMinutes": minutes})
	}
	return len(expired), nil
}

func (s *Service) TimeoutConfig() TimeoutConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TimeoutConfig{TimeoutMinutes: s.timeoutMinutes(), MonitorRunning: s.running}
}

// Start launches the timeout monitor. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.monitor(ctx, s.done)

	s.logger.Info("event timeout monitor started", map[string]interface{}{
		"interval": s.opts.MonitorInterval.String(),
		"timeout":  s.opts.Timeout.String(),
	})
}

// Stop halts the monitor and waits for it to exit. Safe to call when not
// running.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("event timeout monitor stopped", nil)
}

func (s *Service) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.opts.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CheckTimeouts(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("timeout sweep failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func (s *Service) publish(e models.EventLog) {
	if s.hub != nil {
		s.hub.Broadcast(e)
	}
}

func (s *Service) timeoutMinutes() int {
	return int(s.opts.Timeout / time.Minute)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}
