// Package round is the generic round-driver / state-machine runtime spec.md
// §4.G describes: each protocol phase is a Round that declares which
// messages it still needs, consumes them one at a time, and finalizes into
// either the next Round or a terminal outcome.
//
// This merges two things from the reference pack: the teacher's
// pkg/tss.StateMachine contract (Update(msg) -> (next, out, err), a single
// flat interface with no generics) and original_source's much more
// fine-grained state-machine/src/types.rs State<T> trait (separate
// start/is_message_expected/is_input_complete/consume/timeout/
// timeout_outcome methods, plus an explicit Transition::NewState|FinalState
// enum). We take the latter's separation of concerns -- it is what lets a
// single driver implement the teacher's duplicate-message and
// unexpected-round rejection logic ONCE instead of once per protocol round
// file, which is what the teacher's internal/protocol/{keygen,sign,reshare}
// state.go files currently do by hand -- and express it with Go generics
// parameterized over the round's message-body type T and the protocol's
// final result type R.
package round

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/vaultmesh/threshold-ecdsa/party"
)

// Sentinel errors, mirroring the teacher's pkg/tss error variables.
var (
	ErrProtocolDone     = errors.New("round: protocol already finished")
	ErrUnexpectedSender = errors.New("round: message from unexpected sender")
	ErrDuplicateSender  = errors.New("round: duplicate message from sender")
	ErrTimeout          = errors.New("round: round timed out waiting for input")
	// ErrInternalInvariant marks a state the driver should never reach if
	// every Round implementation honors its contract; seeing it means a
	// round's Finalize is buggy, not that a peer misbehaved.
	ErrInternalInvariant = errors.New("round: internal invariant violated")
	// ErrCancelled is the fault wrapped when Terminate is called: the
	// caller's transport decided to stop the protocol, not a peer.
	ErrCancelled = errors.New("round: protocol cancelled")
)

// Zeroizer is implemented by a Round that buffers secret material (a VSS
// polynomial, a Paillier private key, a nonce scalar). Terminate calls it
// before dropping the round so a cancelled run leaves nothing recoverable
// behind.
type Zeroizer interface {
	Zeroize()
}

// Msg is an envelope around a round's message body: who sent it, who it is
// addressed to (ignored when Broadcast is true), and which round it belongs
// to.
type Msg[T any] struct {
	From      party.Index
	To        party.Index
	Broadcast bool
	Round     int
	Body      T
}

// FinalState wraps a protocol's terminal result.
type FinalState[R any] struct {
	Result R
}

// Fault describes one or more parties blamed for a round failure, following
// the teacher's pkg/tss.Blame pattern but allowing more than one culprit at
// once (spec.md §4.G's "CryptoValidationFailure" can name multiple
// offenders when several Feldman shares fail verification in the same
// round).
type Fault struct {
	Culprits []party.Index
	Err      error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("round: fault attributed to %v: %v", f.Culprits, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault builds a Fault, combining multiple underlying errors (one per
// culprit) with go-multierror when more than one is given.
func NewFault(errs ...error) *Fault {
	switch len(errs) {
	case 0:
		return &Fault{Err: errors.New("round: fault with no recorded errors")}
	case 1:
		return &Fault{Err: errs[0]}
	default:
		var merr *multierror.Error
		for _, e := range errs {
			merr = multierror.Append(merr, e)
		}
		return &Fault{Err: merr}
	}
}

// Transition is the outcome of Round.Finalize: exactly one of Next, Final,
// or Err is set.
type Transition[T any, R any] struct {
	Next  Round[T, R]
	Final *FinalState[R]
	Err   *Fault
}

// ToNextRound wraps the round that should run next.
func ToNextRound[T, R any](next Round[T, R]) Transition[T, R] {
	return Transition[T, R]{Next: next}
}

// ToFinal wraps a terminal protocol result.
func ToFinal[T, R any](result R) Transition[T, R] {
	return Transition[T, R]{Final: &FinalState[R]{Result: result}}
}

// ToFault aborts the protocol, blaming one or more parties.
func ToFault[T, R any](fault *Fault) Transition[T, R] {
	return Transition[T, R]{Err: fault}
}

// Round is one phase of a protocol: it knows which messages it still wants,
// consumes them as they arrive, and finalizes into a Transition once its
// input is complete.
type Round[T any, R any] interface {
	// Number is this round's 1-based position, used only for logging and
	// message tagging.
	Number() int
	// Start runs the round's own computation and returns the messages it
	// broadcasts/sends as a result (spec.md §4.G: every round may produce
	// output even before consuming any input, e.g. keygen round 1's
	// Feldman commitment broadcast).
	Start() ([]Msg[T], error)
	// IsMessageExpected reports whether a message from `from` is relevant
	// to this round at all (wrong-round or already-finished parties are
	// rejected here rather than in Consume).
	IsMessageExpected(from party.Index, body T) bool
	// IsInputComplete reports whether every message this round needs has
	// been consumed.
	IsInputComplete() bool
	// Consume processes one message. An error here ends the protocol: the
	// driver wraps it in a Fault naming the sender as culprit.
	Consume(from party.Index, body T) error
	// Finalize runs once IsInputComplete is true, producing the next round,
	// a terminal result, or a Fault.
	Finalize() (Transition[T, R], error)
	// Timeout bounds how long the driver should wait for this round's
	// input before calling TimeoutOutcome; zero means "no timeout".
	Timeout() time.Duration
	// TimeoutOutcome is invoked if Timeout elapses before IsInputComplete.
	TimeoutOutcome() Transition[T, R]
}

// Driver runs a sequence of Rounds for a single local party, mirroring the
// teacher's StateMachine.Update contract but split so duplicate/unexpected
// rejection and fault logging happen once, centrally, instead of per round.
type Driver[T any, R any] struct {
	self    party.Index
	logger  *zap.Logger
	current Round[T, R]
	seen    map[party.Index]struct{}
	outbox  []Msg[T]
	result  *R
	err     error
}

// NewDriver starts a protocol at the given initial round.
func NewDriver[T any, R any](self party.Index, initial Round[T, R], logger *zap.Logger) (*Driver[T, R], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver[T, R]{self: self, logger: logger, current: initial, seen: map[party.Index]struct{}{}}
	msgs, err := initial.Start()
	if err != nil {
		return nil, fmt.Errorf("round: starting round %d: %w", initial.Number(), err)
	}
	d.outbox = msgs
	d.logger.Info("round started", zap.Int("round", initial.Number()))
	if initial.IsInputComplete() {
		if err := d.advance(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Outbox drains and returns the messages queued for sending since the last
// call.
func (d *Driver[T, R]) Outbox() []Msg[T] {
	out := d.outbox
	d.outbox = nil
	return out
}

// Done reports whether the protocol has finished (successfully or not).
func (d *Driver[T, R]) Done() bool {
	return d.result != nil || d.err != nil
}

// Result returns the final output once Done reports true after a
// successful run.
func (d *Driver[T, R]) Result() (R, bool) {
	if d.result == nil {
		var zero R
		return zero, false
	}
	return *d.result, true
}

// Err returns the fault that ended the protocol, if any.
func (d *Driver[T, R]) Err() error { return d.err }

// CurrentRound exposes the round currently being driven, for logging and
// Details()-style introspection.
func (d *Driver[T, R]) CurrentRound() int {
	if d.current == nil {
		return -1
	}
	return d.current.Number()
}

// HandleMessage feeds one incoming message into the driver.
func (d *Driver[T, R]) HandleMessage(msg Msg[T]) error {
	if d.Done() {
		return ErrProtocolDone
	}
	if msg.From == d.self {
		return nil
	}
	if _, dup := d.seen[msg.From]; dup {
		d.logger.Warn("dropping duplicate message", zap.String("from", string(msg.From)), zap.Int("round", d.current.Number()))
		return fmt.Errorf("%w: %s", ErrDuplicateSender, msg.From)
	}
	if !d.current.IsMessageExpected(msg.From, msg.Body) {
		d.logger.Warn("dropping unexpected message", zap.String("from", string(msg.From)), zap.Int("round", d.current.Number()))
		return fmt.Errorf("%w: %s", ErrUnexpectedSender, msg.From)
	}
	if err := d.current.Consume(msg.From, msg.Body); err != nil {
		fault := NewFault(err)
		fault.Culprits = []party.Index{msg.From}
		d.err = fault
		d.logger.Error("round consume failed", zap.String("from", string(msg.From)), zap.Error(err))
		return fault
	}
	d.seen[msg.From] = struct{}{}

	if d.current.IsInputComplete() {
		return d.advance()
	}
	return nil
}

// Terminate handles the transport's Instruction::Terminate variant (spec.md
// §4.G): it drops whatever partial round state is buffered, zeroizing it
// when the round retains secrets, and ends the protocol with a terminal
// ErrCancelled fault rather than a result. Calling it after the protocol has
// already finished is a no-op error, same as HandleMessage.
func (d *Driver[T, R]) Terminate() error {
	if d.Done() {
		return ErrProtocolDone
	}
	if z, ok := d.current.(Zeroizer); ok {
		z.Zeroize()
	}
	fault := NewFault(ErrCancelled)
	d.err = fault
	d.current = nil
	d.outbox = nil
	d.logger.Warn("round terminated", zap.Error(ErrCancelled))
	return fault
}

// CheckTimeout should be called periodically by the caller's event loop; if
// the current round declares a non-zero Timeout and input is still
// incomplete, it triggers TimeoutOutcome.
func (d *Driver[T, R]) CheckTimeout(elapsed time.Duration) error {
	if d.Done() || d.current.IsInputComplete() {
		return nil
	}
	timeout := d.current.Timeout()
	if timeout == 0 || elapsed < timeout {
		return nil
	}
	d.logger.Warn("round timed out", zap.Int("round", d.current.Number()), zap.Duration("elapsed", elapsed))
	return d.applyTransition(d.current.TimeoutOutcome())
}

func (d *Driver[T, R]) advance() error {
	transition, err := d.current.Finalize()
	if err != nil {
		d.err = err
		return err
	}
	return d.applyTransition(transition)
}

func (d *Driver[T, R]) applyTransition(transition Transition[T, R]) error {
	switch {
	case transition.Err != nil:
		d.err = transition.Err
		d.logger.Error("round aborted", zap.Error(transition.Err))
		return transition.Err
	case transition.Final != nil:
		d.result = &transition.Final.Result
		d.logger.Info("protocol finished")
		return nil
	case transition.Next != nil:
		d.current = transition.Next
		d.seen = map[party.Index]struct{}{}
		msgs, err := d.current.Start()
		if err != nil {
			d.err = fmt.Errorf("round: starting round %d: %w", d.current.Number(), err)
			return d.err
		}
		d.outbox = append(d.outbox, msgs...)
		d.logger.Info("round transition", zap.Int("round", d.current.Number()))
		// Some rounds (e.g. a final verification pass that needs no new
		// messages) are complete as soon as they start; cascade through
		// those immediately rather than waiting for a message that will
		// never arrive.
		if d.current.IsInputComplete() {
			return d.advance()
		}
		return nil
	default:
		return fmt.Errorf("%w: Finalize returned an empty Transition", ErrInternalInvariant)
	}
}
