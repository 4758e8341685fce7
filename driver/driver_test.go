package driver

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dkgcore/chilldkg/chilldkg"
	"github.com/dkgcore/chilldkg/encpedpop"
	"github.com/dkgcore/chilldkg/internal/curve"
	"github.com/dkgcore/chilldkg/internal/dkgerr"
	"github.com/dkgcore/chilldkg/simplpedpop"
)

func driverSeeds(n int, tag string) [][]byte {
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = []byte(tag + string(rune('A'+i)) + "-0123456789012345678901234567")
	}
	return out
}

func newDriverSession(t *testing.T, seeds [][]byte, thr int) *chilldkg.SessionParams {
	t.Helper()
	n := len(seeds)
	hostpubkeys := make([][32]byte, n)
	for i := 0; i < n; i++ {
		_, hpk, err := chilldkg.DeriveHostKey(seeds[i])
		require.NoError(t, err)
		hostpubkeys[i] = hpk
	}
	params, err := chilldkg.NewSessionParams(hostpubkeys, thr, []byte("driver test context"))
	require.NoError(t, err)
	return params
}

func TestDriverHappyPathFullSession(t *testing.T) {
	n, thr := 4, 3
	seeds := driverSeeds(n, "driver-happy-")
	params := newDriverSession(t, seeds, thr)

	participants := make([]*chilldkg.Participant, n)
	enckeys := make([]curve.Point, n)
	for i := 0; i < n; i++ {
		p, err := chilldkg.NewParticipant(seeds[i], params, i)
		require.NoError(t, err)
		participants[i] = p
		enckeys[i] = p.EncKey()
	}

	q := NewQueues(n)
	clock := clockwork.NewFakeClock()
	timeout := time.Minute

	type coordResult struct {
		err error
	}
	coordDone := make(chan coordResult, 1)
	go func() {
		_, _, err := RunCoordinator(params, q, clock, timeout, log.New(io.Discard, "", 0))
		coordDone <- coordResult{err: err}
	}()

	type partResult struct {
		out    simplpedpop.DKGOutput
		backup chilldkg.Backup
		err    error
	}
	partDone := make([]chan partResult, n)
	for i := 0; i < n; i++ {
		partDone[i] = make(chan partResult, 1)
		i := i
		go func() {
			out, backup, err := RunParticipant(participants[i], enckeys, q, clock, timeout)
			partDone[i] <- partResult{out: out, backup: backup, err: err}
		}()
	}

	cr := <-coordDone
	require.NoError(t, cr.err)

	results := make([]partResult, n)
	for i := 0; i < n; i++ {
		results[i] = <-partDone[i]
		require.NoError(t, results[i].err)
	}

	for i := 1; i < n; i++ {
		require.True(t, results[0].out.GroupPK.Equal(results[i].out.GroupPK))
	}
	for i := 0; i < n; i++ {
		require.True(t, curve.ScalarBaseMul(*results[i].out.ShareSum).Equal(results[i].out.Pubshares[i]))
		require.Equal(t, results[0].backup.Eta, results[i].backup.Eta)
	}
}

func TestDriverCoordinatorAbortsOnTimeout(t *testing.T) {
	n, thr := 3, 2
	seeds := driverSeeds(n, "driver-timeout-")
	params := newDriverSession(t, seeds, thr)

	participants := make([]*chilldkg.Participant, n)
	enckeys := make([]curve.Point, n)
	for i := 0; i < n; i++ {
		p, err := chilldkg.NewParticipant(seeds[i], params, i)
		require.NoError(t, err)
		participants[i] = p
		enckeys[i] = p.EncKey()
	}

	q := NewQueues(n)
	clock := clockwork.NewFakeClock()
	timeout := 5 * time.Second

	// Only participants 0 and 1 deal; participant 2 never does, so the
	// coordinator's first collect() call can never reach n messages. Both
	// envelopes are enqueued before the coordinator starts (the channel is
	// buffered to n), so every clock.After waiter the coordinator creates
	// exists before the fake clock advances.
	for i := 0; i < 2; i++ {
		msg, err := participants[i].DealerStep(enckeys)
		require.NoError(t, err)
		q.ToCoordinatorDealer <- DealerEnvelope{From: i, Msg: msg}
	}

	coordErr := make(chan error, 1)
	go func() {
		_, _, err := RunCoordinator(params, q, clock, timeout, nil)
		coordErr <- err
	}()

	// One After waiter per collect iteration: two satisfied by the queued
	// envelopes, the third blocking for the missing dealer.
	clock.BlockUntil(3)
	clock.Advance(timeout + time.Second)

	err := <-coordErr
	require.Error(t, err)
	unattr, ok := err.(*dkgerr.Unattributed)
	require.True(t, ok)
	require.Equal(t, dkgerr.KindTimeout, unattr.Kind())
}

func TestDriverParticipantAbortsOnTimeout(t *testing.T) {
	n, thr := 2, 2
	seeds := driverSeeds(n, "driver-part-timeout-")
	params := newDriverSession(t, seeds, thr)

	p0, err := chilldkg.NewParticipant(seeds[0], params, 0)
	require.NoError(t, err)
	p1, err := chilldkg.NewParticipant(seeds[1], params, 1)
	require.NoError(t, err)
	enckeys := []curve.Point{p0.EncKey(), p1.EncKey()}

	q := NewQueues(n)
	clock := clockwork.NewFakeClock()
	timeout := 5 * time.Second

	// No coordinator runs, so the aggregated message never arrives.
	errCh := make(chan error, 1)
	go func() {
		_, _, err := RunParticipant(p0, enckeys, q, clock, timeout)
		errCh <- err
	}()

	clock.BlockUntil(1)
	clock.Advance(timeout + time.Second)

	err = <-errCh
	require.Error(t, err)
	unattr, ok := err.(*dkgerr.Unattributed)
	require.True(t, ok)
	require.Equal(t, dkgerr.KindTimeout, unattr.Kind())
	require.Equal(t, chilldkg.StateAborted, p0.State)

	// A late aggregated message must be refused: ABORTED is terminal.
	require.Error(t, p0.PreFinalize(encpedpop.CoordinatorMessage{}))
}

type recordingLogger struct{ lines []string }

func (r *recordingLogger) Printf(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestCollectDropsDuplicatesAndRejectsBadIndices(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := &recordingLogger{}

	ch := make(chan DealerEnvelope, 3)
	ch <- DealerEnvelope{From: 0}
	ch <- DealerEnvelope{From: 0}
	ch <- DealerEnvelope{From: 1}
	seen := make([]bool, 2)
	err := collect(2, ch, clock, time.Minute, rl, "dealer message",
		func(e DealerEnvelope) int { return e.From },
		func(e DealerEnvelope) { seen[e.From] = true },
	)
	require.NoError(t, err)
	require.True(t, seen[0] && seen[1])
	require.Len(t, rl.lines, 1)

	ch2 := make(chan CertEnvelope, 1)
	ch2 <- CertEnvelope{From: 7}
	err = collect(2, ch2, clock, time.Minute, rl, "cert share",
		func(e CertEnvelope) int { return e.From },
		func(CertEnvelope) {},
	)
	require.Error(t, err)
}
