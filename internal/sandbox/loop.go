package sandbox

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// loop runs posted jobs one at a time on a single goroutine.
type loop struct {
	mu     sync.Mutex
	jobs   []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}

	logger *zap.Logger
}

func newLoop(logger *zap.Logger) *loop {
	return &loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Post schedules fn. It reports false once the loop is stopping.
func (l *loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.jobs = append(l.jobs, fn)
	l.mu.Unlock()

	l.signal()
	return true
}

// run drains jobs until stop is called and the queue is empty.
func (l *loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		jobs := l.jobs
		l.jobs = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range jobs {
			l.exec(fn)
		}
		if len(jobs) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

func (l *loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("sandbox job panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// stop rejects further posts. Jobs already queued still run.
func (l *loop) stop() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

func (l *loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
