package mosaic

import (
	"errors"
	"sync"
)

// ErrClosed is returned once the engine has been closed.
var ErrClosed = errors.New("engine closed")

// scheduler runs batches one at a time, in submission order, on a single
// goroutine. The queue is unbounded so submit never blocks.
type scheduler struct {
	mu     sync.Mutex
	queue  []*PendingBatch
	closed bool

	wake    chan struct{}
	stopped chan struct{}
	run     func(*PendingBatch)
}

func newScheduler(run func(*PendingBatch)) *scheduler {
	s := &scheduler{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		run:     run,
	}
	go s.loop()
	return s
}

func (s *scheduler) submit(b *PendingBatch) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.queue = append(s.queue, b)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// close rejects new batches and waits until the queued ones have run.
func (s *scheduler) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-s.stopped
}

func (s *scheduler) loop() {
	defer close(s.stopped)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.wake
			s.mu.Lock()
		}
		b := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.run(b)
	}
}
