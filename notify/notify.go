/*Package notify provides completion notification for asynchronous stepper
motor operations.

Motion commands on a stepper controller are fire-and-forget: the driver
accepts the operation and returns immediately, and the motor reaches its
target some time later.  A Signal is the rendezvous between the two; the
dispatcher arms it before issuing the operation and the driver fires it when
motion completes.

A Notifier owns one Signal shared by every device it serves, plus a single
listener goroutine that is started lazily the first time an asynchronous
command is issued.  The listener blocks on the Signal, reports each
completion through the Notifier's report function, resets the Signal, and
waits again.  Because the Signal is shared, only one outstanding completion
is tracked at a time; arming it again before the previous completion has
been reported aliases the earlier wait.
*/
package notify

import (
	"context"
	"errors"
	"sync"
)

// Result codes delivered on a Signal when it fires.
const (
	// StepsCompleted indicates the motor reached its target.
	StepsCompleted = 0

	// Stalled indicates motion stopped before the target was reached.
	Stalled = 1
)

// ErrNotificationUnavailable is generated when the completion listener cannot
// be started; the command may still be issued, but its completion will not be
// reported.
var ErrNotificationUnavailable = errors.New("completion listener unavailable")

// Signal is a reusable one-slot completion signal.  Its lifecycle is
// idle -> armed -> fired -> idle.  The zero value is not usable; create
// Signals with NewSignal.
//
// Fire may be called from any goroutine; the buffered channel underneath
// provides the atomicity between the arming write and the waiting read, no
// additional locking is layered on top.
type Signal struct {
	mu    sync.Mutex
	armed bool
	ch    chan int
}

// NewSignal returns a Signal in the idle state.
func NewSignal() *Signal {
	return &Signal{ch: make(chan int, 1)}
}

// Arm marks the signal as having an outstanding wait.  Arming an already
// armed signal does not error; it aliases the outstanding wait, since only
// one completion fits in the slot.
func (s *Signal) Arm() {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
}

// Armed reports whether a wait is outstanding.
func (s *Signal) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Fire records completion with the given result code.  If the slot already
// holds an unconsumed completion, the new result is dropped.
func (s *Signal) Fire(result int) {
	select {
	case s.ch <- result:
	default:
	}
}

// Wait blocks until the signal fires, then returns the result code and
// resets the signal to idle.  If ctx is canceled first, the signal is left
// as-is and the context's error is returned.
func (s *Signal) Wait(ctx context.Context) (int, error) {
	select {
	case result := <-s.ch:
		s.mu.Lock()
		s.armed = false
		s.mu.Unlock()
		return result, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ReportFunc consumes a completion result code and relays it to the operator.
type ReportFunc func(result int)

// Notifier owns the shared completion Signal and the singleton listener
// goroutine that reports completions.  Create Notifiers with New; pass one
// by reference to anything that issues asynchronous commands.
type Notifier struct {
	sig    *Signal
	report ReportFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	starts   int
	shutDown bool
}

// New returns a Notifier that relays completions to report.  The listener
// goroutine is not started until the first call to EnsureListening.
func New(report ReportFunc) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		sig:    NewSignal(),
		report: report,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Signal returns the shared completion signal.
func (n *Notifier) Signal() *Signal {
	return n.sig
}

// Arm readies the signal for one completion and returns it for handing to a
// driver call.
func (n *Notifier) Arm() *Signal {
	n.sig.Arm()
	return n.sig
}

// EnsureListening starts the listener goroutine if it is not already
// running.  It is safe to call before every asynchronous command; only the
// first call starts anything.  After Close, ErrNotificationUnavailable is
// returned and no listener is started.
func (n *Notifier) EnsureListening() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.shutDown {
		return ErrNotificationUnavailable
	}
	if n.starts > 0 {
		return nil
	}
	n.starts++
	go n.listen()
	return nil
}

// Listening reports whether the listener goroutine has been started.
func (n *Notifier) Listening() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.starts > 0 && !n.shutDown
}

func (n *Notifier) listen() {
	for {
		result, err := n.sig.Wait(n.ctx)
		if err != nil {
			return
		}
		n.report(result)
	}
}

// Close stops the listener goroutine.  The Notifier cannot be restarted;
// subsequent EnsureListening calls return ErrNotificationUnavailable.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.shutDown = true
	n.mu.Unlock()
	n.cancel()
}
