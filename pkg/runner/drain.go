package runner

import (
	"context"
	"sync"
	"time"
)

// Hanger is the slice of a call session the drainer needs.
type Hanger interface {
	Hangup(ctx context.Context) error
}

// SessionDrainer tracks live call sessions and hangs them all up on
// shutdown so every call gets its disposition written before exit.
type SessionDrainer struct {
	mu       sync.Mutex
	sessions map[string]Hanger
	timeout  time.Duration
}

func NewSessionDrainer(timeout time.Duration) *SessionDrainer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SessionDrainer{
		sessions: make(map[string]Hanger),
		timeout:  timeout,
	}
}

func (d *SessionDrainer) Track(callSID string, s Hanger) {
	d.mu.Lock()
	d.sessions[callSID] = s
	d.mu.Unlock()
}

func (d *SessionDrainer) Forget(callSID string) {
	d.mu.Lock()
	delete(d.sessions, callSID)
	d.mu.Unlock()
}

func (d *SessionDrainer) Drain() error {
	d.mu.Lock()
	pending := make([]Hanger, 0, len(d.sessions))
	for _, s := range d.sessions {
		pending = append(pending, s)
	}
	d.sessions = make(map[string]Hanger)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(pending))
	for _, s := range pending {
		wg.Add(1)
		go func(h Hanger) {
			defer wg.Done()
			if err := h.Hangup(ctx); err != nil {
				errs <- err
			}
		}(s)
	}
	wg.Wait()
	close(errs)
	return <-errs
}

var _ Drainer = (*SessionDrainer)(nil)
