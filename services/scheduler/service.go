// Package scheduler runs recurring catalog maintenance tasks (crawls and
// exports) on the intervals configured in settings.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"anisync/config"
	"anisync/models"
)

// Catalog is the subset of the sync service the scheduler drives.
type Catalog interface {
	Crawl(ctx context.Context, t models.MediaType) error
	Export(ctx context.Context, t models.MediaType) (string, error)
}

// Service manages scheduled task execution
type Service struct {
	configManager *config.Manager
	catalog       Catalog

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Task state tracking (in-memory, not persisted)
	taskMu      sync.Mutex
	taskRunning map[string]bool
}

func NewService(configManager *config.Manager, catalog Catalog) *Service {
	return &Service{
		configManager: configManager,
		catalog:       catalog,
		taskRunning:   make(map[string]bool),
	}
}

// Start begins the scheduler background loop
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.schedulerLoop()

	log.Println("[scheduler] started")
	return nil
}

// Stop gracefully stops the scheduler
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] stopped gracefully")
	case <-ctx.Done():
		log.Println("[scheduler] stopped (timeout)")
	}

	s.running = false
	return nil
}

func (s *Service) schedulerLoop() {
	defer s.wg.Done()

	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] failed to load settings: %v", err)
		return
	}

	checkInterval := time.Duration(settings.ScheduledTasks.CheckIntervalSeconds) * time.Second
	if checkInterval < time.Second {
		checkInterval = 60 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	// Run check immediately on start
	s.checkAndRunTasks()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRunTasks()
		}
	}
}

func (s *Service) checkAndRunTasks() {
	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] failed to load settings: %v", err)
		return
	}

	for _, task := range settings.ScheduledTasks.Tasks {
		if !task.Enabled {
			continue
		}
		if s.shouldRun(task) {
			s.wg.Add(1)
			go func(t config.ScheduledTask) {
				defer s.wg.Done()
				s.executeTask(t)
			}(task)
		}
	}
}

// shouldRun checks if a task is due to run
func (s *Service) shouldRun(task config.ScheduledTask) bool {
	s.taskMu.Lock()
	running := s.taskRunning[task.ID]
	s.taskMu.Unlock()
	if running {
		return false
	}

	if task.LastRunAt == nil {
		return true
	}
	return time.Since(*task.LastRunAt) >= interval(task.Frequency)
}

func interval(freq config.ScheduledTaskFrequency) time.Duration {
	switch freq {
	case config.ScheduledTaskFrequencyHourly:
		return time.Hour
	case config.ScheduledTaskFrequency6Hours:
		return 6 * time.Hour
	case config.ScheduledTaskFrequency12Hours:
		return 12 * time.Hour
	case config.ScheduledTaskFrequencyDaily:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func (s *Service) executeTask(task config.ScheduledTask) {
	s.taskMu.Lock()
	s.taskRunning[task.ID] = true
	s.taskMu.Unlock()

	defer func() {
		s.taskMu.Lock()
		delete(s.taskRunning, task.ID)
		s.taskMu.Unlock()
	}()

	log.Printf("[scheduler] executing task %s (%s)", task.Name, task.Type)

	mediaType := models.MediaType(task.MediaType)
	var err error
	switch task.Type {
	case config.ScheduledTaskTypeCrawl:
		err = s.catalog.Crawl(s.ctx, mediaType)
	case config.ScheduledTaskTypeExport:
		_, err = s.catalog.Export(s.ctx, mediaType)
	default:
		log.Printf("[scheduler] unknown task type %q", task.Type)
		return
	}

	if err != nil {
		log.Printf("[scheduler] task %s failed: %v", task.Name, err)
	}
	s.updateTaskStatus(task.ID, err)
}

// updateTaskStatus records the run time and last error in the settings file.
func (s *Service) updateTaskStatus(taskID string, runErr error) {
	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] failed to load settings to update task status: %v", err)
		return
	}

	now := time.Now().UTC()
	for i := range settings.ScheduledTasks.Tasks {
		if settings.ScheduledTasks.Tasks[i].ID != taskID {
			continue
		}
		settings.ScheduledTasks.Tasks[i].LastRunAt = &now
		settings.ScheduledTasks.Tasks[i].LastError = ""
		if runErr != nil {
			settings.ScheduledTasks.Tasks[i].LastError = runErr.Error()
		}
	}

	if err := s.configManager.Save(settings); err != nil {
		log.Printf("[scheduler] failed to persist task status: %v", err)
	}
}
