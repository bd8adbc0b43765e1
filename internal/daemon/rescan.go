package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/hyprpier/hyprpier/internal/eventbus"
)

// rescanService periodically re-checks hardware as a safety net for
// hotplug events the udev rule missed.
type rescanService struct {
	interval time.Duration
	loop     *controlLoop

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRescanService(interval time.Duration, loop *controlLoop) *rescanService {
	return &rescanService{interval: interval, loop: loop}
}

func (s *rescanService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.loop.Trigger(eventbus.SourceRescan, "periodic rescan")
			case <-runCtx.Done():
				return
			}
		}
	}()
	return nil
}

func (s *rescanService) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
