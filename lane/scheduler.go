package lane

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// KillToken is a cooperative-cancellation handle: an atomic boolean
// shared across lanes and polled at task boundaries. Kill is
// idempotent; Killed is safe to call concurrently from any goroutine.
type KillToken struct {
	flag atomic.Bool
}

// NewKillToken returns a fresh, unset KillToken.
func NewKillToken() *KillToken { return &KillToken{} }

// Kill sets the token. Once set it never clears.
func (k *KillToken) Kill() { k.flag.Store(true) }

// Killed reports whether Kill has been called.
func (k *KillToken) Killed() bool { return k.flag.Load() }

// WorkItem is one unit of a kernel's per-vertex (or per-class, or
// per-edge) workload. Key assigns the item to lane Key mod lanes, so a
// vertex's mutations stay single-owner for the whole kernel; Run is the
// task body itself.
type WorkItem struct {
	Key uint64
	Run func(ctx context.Context) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogf installs an optional progress logger, nil-checked before
// every call. A Scheduler is silent by default.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Scheduler) { s.logf = logf }
}

// Scheduler is the fixed lane pool: lanes goroutines, each draining its
// own FIFO queue, bounded via errgroup.SetLimit.
type Scheduler struct {
	lanes int
	logf  func(format string, args ...any)
}

// NewScheduler returns a Scheduler with the given lane count; lanes<=0
// means one lane per hardware thread and resolves to runtime.NumCPU().
func NewScheduler(lanes int, opts ...Option) *Scheduler {
	if lanes <= 0 {
		lanes = runtime.NumCPU()
	}
	s := &Scheduler{lanes: lanes}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Lanes reports the resolved lane count.
func (s *Scheduler) Lanes() int { return s.lanes }

func (s *Scheduler) log(format string, args ...any) {
	if s.logf != nil {
		s.logf(format, args...)
	}
}

// Run partitions items across the scheduler's lanes and executes each
// item's Run function, short-circuiting on the first error and on
// kill.Killed() becoming true. Returns:
//
//   - (OK, nil) if every item completed without error and kill was never
//     set;
//   - (Killed, ctx.Err()) if the kill token was set or the context was
//     cancelled/timed-out before all items completed;
//   - (UserError, err) if an item returned a non-nil error for any other
//     reason.
//
// Ordering: within one lane, items assigned to it run in the order they
// were enqueued; across lanes, ordering is unspecified except at the
// barrier Run itself provides by waiting for every goroutine to finish.
func (s *Scheduler) Run(ctx context.Context, items []WorkItem, kill *KillToken) (ErrorKind, error) {
	if len(items) == 0 {
		return OK, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.lanes)

	// Partition items into per-lane FIFO queues up front so that, within
	// one lane, enqueue order is preserved exactly.
	queues := make([][]WorkItem, s.lanes)
	for _, it := range items {
		lane := int(it.Key % uint64(s.lanes))
		queues[lane] = append(queues[lane], it)
	}

	killed := func() bool {
		return kill != nil && kill.Killed()
	}

	for lane, queue := range queues {
		if len(queue) == 0 {
			continue
		}
		lane, queue := lane, queue
		g.Go(func() error {
			s.log("lane %d: starting %d items", lane, len(queue))
			for _, it := range queue {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				if killed() {
					return context.Canceled
				}
				if err := it.Run(gctx); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		if killed() {
			return Killed, context.Canceled
		}
		return OK, nil
	}
	if killed() || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Killed, err
	}
	return UserError, err
}
