package core

import (
	"sync"
	"time"
)

// periodicTask runs fn every period on its own goroutine until stopped.
// Stop does not wait for a running fn, so a task may stop itself.
type periodicTask struct {
	name   string
	period time.Duration
	fn     func()

	mu   sync.Mutex
	stop chan struct{}
}

func newPeriodicTask(name string, period time.Duration, fn func()) *periodicTask {
	return &periodicTask{name: name, period: period, fn: fn}
}

// Start is a no-op when the task is already running.
func (t *periodicTask) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return
	}
	stop := make(chan struct{})
	t.stop = stop
	go t.run(stop)
}

func (t *periodicTask) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
}

func (t *periodicTask) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *periodicTask) run(stop chan struct{}) {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			t.fn()
		}
	}
}
