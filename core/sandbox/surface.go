package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/canvas/core/metrics"
)

// Surface is one preview surface. Sessions begun on it are totally ordered
// and at most one of them has a mounted tree at any time.
type Surface struct {
	id      string
	runner  *Runner
	logger  *slog.Logger
	metrics *metrics.Metrics

	// ops serializes everything that touches the mounted realm.
	ops     sync.Mutex
	mounted *realm

	mu      sync.Mutex
	seq     uint64
	current *Outcome
	closed  bool
}

func NewSurface(id string, runner *Runner) *Surface {
	return &Surface{
		id:      id,
		runner:  runner,
		logger:  runner.logger.With("surface", id),
		metrics: runner.metrics,
	}
}

func (sf *Surface) ID() string {
	return sf.id
}

// Begin creates the next session. Every session begun earlier is
// superseded from this point on, including ones still waiting on a provider.
func (sf *Surface) Begin(source string, tokens Snapshot) *Session {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	sf.seq++
	return &Session{
		ID:        uuid.NewString(),
		Surface:   sf.id,
		Seq:       sf.seq,
		Source:    source,
		Tokens:    tokens,
		CreatedAt: time.Now(),
	}
}

// Latest returns the sequence number of the newest session.
func (sf *Surface) Latest() uint64 {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.seq
}

func (sf *Surface) check(s *Session) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.closed {
		return ErrSessionClosed
	}
	if s.Surface != sf.id || s.Seq != sf.seq {
		return ErrSessionSuperseded
	}
	return nil
}

// Render mounts s if it is still the newest session. The previous tree is
// torn down before the new one mounts. A session superseded before or while
// it renders yields ErrSessionSuperseded and its outcome is dropped.
func (sf *Surface) Render(ctx context.Context, s *Session) (Outcome, error) {
	sf.ops.Lock()
	defer sf.ops.Unlock()

	if err := sf.check(s); err != nil {
		sf.dropped(s, err)
		return Outcome{}, err
	}

	sf.unmount(ctx, "superseded")
	rl, out := sf.runner.mount(ctx, s)

	if err := sf.check(s); err != nil {
		if rl != nil {
			sf.teardown(ctx, rl, "superseded during render")
		}
		sf.setCurrent(nil)
		sf.dropped(s, err)
		return Outcome{}, err
	}

	sf.mounted = rl
	sf.setCurrent(&out)
	sf.logger.Debug("session rendered", "session", s.ID, "seq", s.Seq, "ok", out.OK(), "duration", out.Duration)
	return out, nil
}

func (sf *Surface) dropped(s *Session, err error) {
	if errors.Is(err, ErrSessionSuperseded) {
		sf.metrics.Superseded()
	}
	sf.logger.Debug("render dropped", "session", s.ID, "seq", s.Seq, "reason", err)
}

func (sf *Surface) setCurrent(out *Outcome) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.current = out
}

// Current returns the visible outcome, if any.
func (sf *Surface) Current() (Outcome, bool) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.current == nil {
		return Outcome{}, false
	}
	return *sf.current, true
}

// Show records an outcome that did not come from a mount, such as a compile
// error, as the visible state without touching the mounted tree.
func (sf *Surface) Show(s *Session, out Outcome) error {
	if err := sf.check(s); err != nil {
		return err
	}
	sf.setCurrent(&out)
	return nil
}

// Dispatch delivers ev to a handler of the mounted tree and re-renders.
// A handler that throws leaves the tree mounted; a render that throws
// unmounts it.
func (sf *Surface) Dispatch(ctx context.Context, sessionID, handlerID string, ev Event) (Outcome, error) {
	return sf.interact(ctx, sessionID, func(rl *realm) error {
		return rl.invoke(ctx, handlerID, ev)
	})
}

// RunTimers fires the queued timers of the mounted tree once and re-renders.
func (sf *Surface) RunTimers(ctx context.Context, sessionID string) (Outcome, error) {
	return sf.interact(ctx, sessionID, func(rl *realm) error {
		n, err := rl.fireTimers(ctx)
		sf.logger.Debug("timers fired", "session", sessionID, "count", n, "pending", rl.pendingTimers())
		return err
	})
}

// PendingTimers reports how many timers the mounted tree has queued.
func (sf *Surface) PendingTimers() int {
	sf.ops.Lock()
	defer sf.ops.Unlock()
	if sf.mounted == nil {
		return 0
	}
	return sf.mounted.pendingTimers()
}

// interact runs fn against the mounted tree of sessionID and re-renders.
// Only the newest session may interact: a tree left mounted under a newer
// session that failed to compile is stale.
func (sf *Surface) interact(ctx context.Context, sessionID string, fn func(*realm) error) (Outcome, error) {
	sf.ops.Lock()
	defer sf.ops.Unlock()

	if err := sf.checkMounted(sessionID); err != nil {
		return Outcome{}, err
	}
	rl := sf.mounted
	start := time.Now()
	out := Outcome{SessionID: rl.session.ID, Seq: rl.session.Seq}

	if err := fn(rl); err != nil {
		out.HTML = wrapRoot(rl.session.Tokens, rl.html)
		out.Err = asRuntimeError(err, sf.runner.limits.ExecutionTimeout)
		out.Duration = time.Since(start)
		sf.logger.Info("artifact handler error", "session", sessionID, "err", out.Err.Message)
		return sf.publish(rl.session, out)
	}

	if err := rl.render(ctx); err != nil {
		out.Err = asRuntimeError(err, sf.runner.limits.ExecutionTimeout)
		out.Duration = time.Since(start)
		sf.logger.Info("artifact runtime error", "session", sessionID, "err", out.Err.Message)
		sf.unmount(ctx, "render failed")
		return sf.publish(rl.session, out)
	}

	out.HTML = wrapRoot(rl.session.Tokens, rl.html)
	out.Duration = time.Since(start)
	return sf.publish(rl.session, out)
}

// publish makes out the visible outcome unless a newer session began while
// it was produced.
func (sf *Surface) publish(s *Session, out Outcome) (Outcome, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	switch {
	case sf.closed:
		return Outcome{}, ErrSessionClosed
	case s.Seq != sf.seq:
		sf.metrics.Superseded()
		return Outcome{}, fmt.Errorf("%w: session %s", ErrSessionSuperseded, s.ID)
	}
	sf.current = &out
	return out, nil
}

func (sf *Surface) checkMounted(sessionID string) error {
	sf.mu.Lock()
	closed, latest := sf.closed, sf.seq
	sf.mu.Unlock()

	switch {
	case closed:
		return ErrSessionClosed
	case sf.mounted == nil:
		return ErrNothingMounted
	case sf.mounted.session.ID != sessionID, sf.mounted.session.Seq != latest:
		return fmt.Errorf("%w: session %s is not the mounted newest session", ErrSessionSuperseded, sessionID)
	}
	return nil
}

// unmount tears down the mounted tree, if any. Callers hold ops.
func (sf *Surface) unmount(ctx context.Context, reason string) {
	if sf.mounted == nil {
		return
	}
	rl := sf.mounted
	sf.mounted = nil
	sf.teardown(ctx, rl, reason)
}

func (sf *Surface) teardown(ctx context.Context, rl *realm, reason string) {
	if err := rl.teardown(ctx); err != nil {
		sf.logger.Warn("teardown failed", "session", rl.session.ID, "reason", reason, "err", err)
		return
	}
	sf.logger.Debug("session torn down", "session", rl.session.ID, "reason", reason)
}

// Close tears down the mounted tree. Later calls on the surface fail with
// ErrSessionClosed.
func (sf *Surface) Close() {
	sf.ops.Lock()
	defer sf.ops.Unlock()

	sf.mu.Lock()
	if sf.closed {
		sf.mu.Unlock()
		return
	}
	sf.closed = true
	sf.current = nil
	sf.mu.Unlock()

	sf.unmount(context.Background(), "surface closed")
}
