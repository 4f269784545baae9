package zeebeingress

import (
	"sync"

	"leadflow/internal/capability"
	"leadflow/internal/common/camunda"
	"leadflow/internal/common/config"
	"leadflow/internal/common/logger"
)

// Manager owns the Zeebe connection and every job worker opened on it.
type Manager struct {
	client   *camunda.Client
	cfg      *config.Config
	registry *capability.Registry
	runner   Runner
	logger   logger.Logger

	mu      sync.Mutex
	workers []*camunda.Worker
}

func NewManager(client *camunda.Client, cfg *config.Config, reg *capability.Registry, runner Runner, log logger.Logger) *Manager {
	return &Manager{
		client:   client,
		cfg:      cfg,
		registry: reg,
		runner:   runner,
		logger:   log.WithFields(map[string]interface{}{"component": "zeebe-ingress"}),
	}
}

// Start opens the message worker and one worker per registered capability.
// Task types disabled under workers.<type>.enabled are skipped.
func (m *Manager) Start() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var started []string
	open := func(taskType string, handler camunda.JobHandler) {
		wc := config.GetWorkerConfig(m.cfg, taskType)
		if !wc.Enabled {
			m.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
			return
		}
		w := camunda.OpenWorker(m.client.Zeebe(), camunda.WorkerOptions{
			TaskType:      taskType,
			MaxJobsActive: wc.MaxJobsActive,
			Timeout:       config.GetDuration(wc.Timeout),
		}, handler, m.logger)
		m.workers = append(m.workers, w)
		started = append(started, taskType)
	}

	runTimeout := config.GetDuration(m.cfg.Agent.RunTimeout)
	open(ProcessMessageTaskType, NewMessageHandler(m.runner, m.client, runTimeout, m.logger))

	for _, name := range m.registry.Names() {
		c, _ := m.registry.Lookup(name)
		timeout := config.GetDuration(config.GetWorkerConfig(m.cfg, name).Timeout)
		open(name, NewCapabilityHandler(c, m.client, timeout, m.logger))
	}

	m.logger.Info("zeebe workers started", map[string]interface{}{"taskTypes": started})
	return started
}

// Close stops every worker, then the client.
func (m *Manager) Close() {
	m.mu.Lock()
	workers := m.workers
	m.workers = nil
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *camunda.Worker) {
			defer wg.Done()
			w.Close()
		}(w)
	}
	wg.Wait()

	if err := m.client.Close(); err != nil {
		m.logger.Warn("failed to close zeebe client", map[string]interface{}{"error": err.Error()})
	}
}
