package round_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// fakeRound is a minimal Round[int, int] that never completes on its own,
// so Terminate is the only way its driver ever finishes.
type fakeRound struct {
	zeroized bool
}

func (r *fakeRound) Number() int                                      { return 1 }
func (r *fakeRound) Start() ([]round.Msg[int], error)                 { return nil, nil }
func (r *fakeRound) IsMessageExpected(party.Index, int) bool          { return true }
func (r *fakeRound) IsInputComplete() bool                            { return false }
func (r *fakeRound) Consume(party.Index, int) error                   { return nil }
func (r *fakeRound) Finalize() (round.Transition[int, int], error)    { return round.Transition[int, int]{}, nil }
func (r *fakeRound) Timeout() time.Duration                           { return 0 }
func (r *fakeRound) TimeoutOutcome() round.Transition[int, int]       { return round.Transition[int, int]{} }
func (r *fakeRound) Zeroize()                                         { r.zeroized = true }

func TestTerminateWrapsCancelled(t *testing.T) {
	r := &fakeRound{}
	d, err := round.NewDriver[int, int]("a", r, nil)
	require.NoError(t, err)

	require.False(t, d.Done())
	err = d.Terminate()
	require.Error(t, err)
	require.True(t, errors.Is(err, round.ErrCancelled))

	var fault *round.Fault
	require.True(t, errors.As(err, &fault))

	require.True(t, d.Done())
	require.True(t, r.zeroized, "Terminate should zeroize the in-flight round")
	require.Equal(t, -1, d.CurrentRound())
}

func TestTerminateThenHandleMessageIsDone(t *testing.T) {
	r := &fakeRound{}
	d, err := round.NewDriver[int, int]("a", r, nil)
	require.NoError(t, err)
	require.ErrorIs(t, d.Terminate(), round.ErrCancelled)

	err = d.HandleMessage(round.Msg[int]{From: "b", Body: 1})
	require.ErrorIs(t, err, round.ErrProtocolDone)
}

func TestTerminateAfterDoneIsProtocolDone(t *testing.T) {
	r := &fakeRound{}
	d, err := round.NewDriver[int, int]("a", r, nil)
	require.NoError(t, err)
	require.ErrorIs(t, d.Terminate(), round.ErrCancelled)

	err = d.Terminate()
	require.ErrorIs(t, err, round.ErrProtocolDone)
}
