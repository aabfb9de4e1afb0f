package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-rules/app/cfg"
	"github.com/lysyi3m/rss-rules/app/channel"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	deps        *Deps
	definitions []channel.Entry
	interval    time.Duration
	workerCount int
	taskTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewScheduler creates the worker pool. definitions are channels to seed
// on startup; stored channels with the same name are left untouched.
func NewScheduler(deps *Deps, definitions []channel.Entry) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		deps:        deps,
		definitions: definitions,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		taskTimeout: 5 * time.Minute,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		inFlight:    make(map[string]bool),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for workers to exit. Pending
// retries are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func taskKey(task TaskInterface) string {
	return string(task.GetType()) + ":" + task.GetChannelName()
}

// EnqueueTask queues a task unless a task of the same type for the same
// channel is already queued or running.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	key := taskKey(task)

	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		slog.Debug("Task already in flight, skipping", "type", string(task.GetType()), "channel", task.GetChannelName())
		return nil
	}
	s.inFlight[key] = true
	s.mu.Unlock()

	if err := s.enqueue(task); err != nil {
		s.release(task)
		return err
	}
	return nil
}

func (s *Scheduler) enqueue(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		s.deps.Metrics.TaskQueueDepth.Set(float64(len(s.taskQueue)))
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) release(task TaskInterface) {
	s.mu.Lock()
	delete(s.inFlight, taskKey(task))
	s.mu.Unlock()
}

// RefreshChannel queues an immediate poll of the channel.
func (s *Scheduler) RefreshChannel(name string) error {
	return s.EnqueueTask(NewProcessChannelTask(name, s.deps))
}

func (s *Scheduler) enqueueStartupTasks() {
	if len(s.definitions) > 0 {
		slog.Debug("Seeding channel definitions", "count", len(s.definitions))
	}

	for _, entry := range s.definitions {
		syncTask := NewSyncChannelDefinitionTask(entry, s.deps)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncChannelDefinitionTask", "channel", entry.Name, "error", err)
		}
	}

	s.enqueueTasks()
}

func (s *Scheduler) enqueueTasks() {
	due, err := s.deps.Channels.GetChannelsDueForRefresh(time.Now())
	if err != nil {
		slog.Error("Failed to get channels due for refresh", "error", err)
		return
	}

	slog.Debug("Scheduling channel refreshes", "count", len(due))

	for _, c := range due {
		if err := s.EnqueueTask(NewProcessChannelTask(c.Name, s.deps)); err != nil {
			slog.Warn("Failed to enqueue ProcessChannelTask", "channel", c.Name, "error", err)
		}
	}

	channels, err := s.deps.Channels.ListChannels()
	if err != nil {
		slog.Error("Failed to list channels", "error", err)
		return
	}

	for _, c := range channels {
		if !c.Settings.ExtractContent {
			continue
		}
		if err := s.EnqueueTask(NewExtractContentTask(c.Name, s.deps)); err != nil {
			slog.Warn("Failed to enqueue ExtractContentTask", "channel", c.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.deps.Metrics.TaskQueueDepth.Set(float64(len(s.taskQueue)))
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	taskType := string(task.GetType())
	s.deps.Metrics.TaskDurationSeconds.WithLabelValues(taskType).Observe(task.GetDuration().Seconds())

	if err == nil {
		s.deps.Metrics.TasksExecutedTotal.WithLabelValues(taskType, "success").Inc()
		s.release(task)
		return
	}

	s.deps.Metrics.TasksExecutedTotal.WithLabelValues(taskType, "error").Inc()
	slog.Error("Worker task execution failed", "worker_id", workerID, "type", taskType, "id", task.GetID(), "channel", task.GetChannelName(), "retry_count", task.GetRetryCount(), "error", err)

	if isPermanent(err) {
		slog.Error("Task failed permanently", "type", taskType, "channel", task.GetChannelName(), "error", err)
		s.release(task)
		return
	}

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", taskType, "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.release(task)
		return
	}

	task.IncrementRetryCount()
	delay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", taskType, "channel", task.GetChannelName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	go func() {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", taskType, "id", task.GetID())
			s.release(task)
		case <-time.After(delay):
			if retryErr := s.enqueue(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", taskType, "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.release(task)
			}
		}
	}()
}
