// Package driver implements the interactive message pump around
// ChillDKG. The coordinator and each of the n participants are modelled
// as cooperative tasks communicating over per-peer FIFO queues (Go
// channels standing in for an external message-queue transport). The
// protocol steps themselves (chilldkg.Participant's methods) stay purely
// functional; this package only supplies the suspension points and
// ordering/duplicate-rejection glue around them.
//
// The round shape is collect-then-broadcast: the coordinator waits for n
// contributions, then fans a single aggregated message back out. The
// clock is injectable so timeout paths are deterministic in tests.
package driver

import (
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/jonboulle/clockwork"

	"github.com/dkgcore/chilldkg/chilldkg"
	"github.com/dkgcore/chilldkg/encpedpop"
	"github.com/dkgcore/chilldkg/internal/curve"
	"github.com/dkgcore/chilldkg/internal/dkgerr"
	"github.com/dkgcore/chilldkg/simplpedpop"
)

// DealerEnvelope carries a participant's round-1 dealer message to the
// coordinator, tagged with its sender so the coordinator can detect
// duplicates and order-independently assemble the n-sized slice.
type DealerEnvelope struct {
	From int
	Msg  encpedpop.DealerMessage
}

// CertEnvelope carries a participant's certifying signature share to the
// coordinator.
type CertEnvelope struct {
	From  int
	Share chilldkg.CertShare
}

// Queues is the full set of per-peer FIFO channels for one session: n
// participants each get a dedicated inbound channel for the aggregated
// message and for the assembled certificate, while the two channels
// toward the coordinator are shared (each envelope is self-identifying
// via From).
type Queues struct {
	ToCoordinatorDealer chan DealerEnvelope
	ToCoordinatorCert   chan CertEnvelope
	ToParticipant       []chan encpedpop.CoordinatorMessage
	ToParticipantCert   []chan chilldkg.Certificate
}

// NewQueues allocates the FIFO channels for an n-participant session.
// Within a single participant-coordinator channel, buffering by n keeps
// emission order the only order imposed: a sender never blocks on a slow
// coordinator/participant, and no cross-channel ordering is assumed or
// needed.
func NewQueues(n int) *Queues {
	q := &Queues{
		ToCoordinatorDealer: make(chan DealerEnvelope, n),
		ToCoordinatorCert:   make(chan CertEnvelope, n),
		ToParticipant:       make([]chan encpedpop.CoordinatorMessage, n),
		ToParticipantCert:   make([]chan chilldkg.Certificate, n),
	}
	for i := 0; i < n; i++ {
		q.ToParticipant[i] = make(chan encpedpop.CoordinatorMessage, 1)
		q.ToParticipantCert[i] = make(chan chilldkg.Certificate, 1)
	}
	return q
}

// Logger is the minimal structured-logging surface the driver needs;
// *log.Logger from the standard library satisfies it trivially.
type Logger interface {
	Printf(format string, args ...any)
}

// RunCoordinator collects n dealer messages, aggregates them, broadcasts
// the result, collects n certificate shares, assembles the certificate,
// and broadcasts it. A second message from an index already seen this
// session is logged and dropped. A message from an out-of-range index, or
// no message within timeout, ends the session with an error (the
// coordinator keeps no session state to roll back).
func RunCoordinator(
	params *chilldkg.SessionParams,
	q *Queues,
	clock clockwork.Clock,
	timeout time.Duration,
	log Logger,
) (encpedpop.CoordinatorMessage, chilldkg.Certificate, error) {
	n := params.N()
	coord := &chilldkg.Coordinator{Params: params}

	dealerMsgs := make([]encpedpop.DealerMessage, n)
	if err := collect(n, q.ToCoordinatorDealer, clock, timeout, log, "dealer message",
		func(e DealerEnvelope) int { return e.From },
		func(e DealerEnvelope) { dealerMsgs[e.From] = e.Msg },
	); err != nil {
		return encpedpop.CoordinatorMessage{}, nil, err
	}

	cm, err := coord.Aggregate(dealerMsgs)
	if err != nil {
		if log != nil {
			log.Printf("aborting session: aggregation failed: %v", err)
		}
		return encpedpop.CoordinatorMessage{}, nil, err
	}
	if log != nil {
		log.Printf("aggregated %d dealer messages, broadcasting", n)
	}
	for i := 0; i < n; i++ {
		q.ToParticipant[i] <- cm
	}

	certShares := make([]chilldkg.CertShare, n)
	if err := collect(n, q.ToCoordinatorCert, clock, timeout, log, "cert share",
		func(e CertEnvelope) int { return e.From },
		func(e CertEnvelope) { certShares[e.From] = e.Share },
	); err != nil {
		return cm, nil, err
	}

	cert := coord.AssembleCertificate(certShares)
	if log != nil {
		log.Printf("assembled certificate from %d shares, broadcasting", n)
	}
	for i := 0; i < n; i++ {
		q.ToParticipantCert[i] <- cert
	}
	return cm, cert, nil
}

// collect reads exactly n distinct-sender envelopes off ch, rejecting
// duplicates and aborting on timeout.
func collect[E any](
	n int,
	ch chan E,
	clock clockwork.Clock,
	timeout time.Duration,
	log Logger,
	what string,
	indexOf func(E) int,
	store func(E),
) error {
	seen := bitset.New(uint(n))
	received := 0
	for received < n {
		select {
		case e := <-ch:
			idx := indexOf(e)
			if idx < 0 || idx >= n {
				return dkgerr.NewUnattributed(dkgerr.KindInvalidSize, "%s from out-of-range index %d", what, idx)
			}
			if seen.Test(uint(idx)) {
				if log != nil {
					log.Printf("dropping duplicate %s from index %d", what, idx)
				}
				continue
			}
			seen.Set(uint(idx))
			store(e)
			received++
		case <-clock.After(timeout):
			return dkgerr.NewUnattributed(dkgerr.KindTimeout,
				"timed out waiting for %s (%d/%d received)", what, received, n)
		}
	}
	return nil
}

// RunParticipant drives one participant through DEALT -> PRE_FINAL ->
// SIGNED -> DONE: send the dealer message, await the aggregated message,
// send the cert share, await the certificate, finalize.
func RunParticipant(
	p *chilldkg.Participant,
	enckeys []curve.Point,
	q *Queues,
	clock clockwork.Clock,
	timeout time.Duration,
) (simplpedpop.DKGOutput, chilldkg.Backup, error) {
	var zero [32]byte

	msg, err := p.DealerStep(enckeys)
	if err != nil {
		return simplpedpop.DKGOutput{}, chilldkg.Backup{}, err
	}
	q.ToCoordinatorDealer <- DealerEnvelope{From: p.Idx, Msg: msg}

	var cm encpedpop.CoordinatorMessage
	select {
	case cm = <-q.ToParticipant[p.Idx]:
	case <-clock.After(timeout):
		p.Abort()
		return simplpedpop.DKGOutput{}, chilldkg.Backup{}, dkgerr.NewUnattributed(
			dkgerr.KindTimeout, "timed out awaiting aggregated message")
	}
	if err := p.PreFinalize(cm); err != nil {
		return simplpedpop.DKGOutput{}, chilldkg.Backup{}, err
	}

	share, err := p.SignCertShare(zero)
	if err != nil {
		return simplpedpop.DKGOutput{}, chilldkg.Backup{}, err
	}
	q.ToCoordinatorCert <- CertEnvelope{From: p.Idx, Share: share}

	var cert chilldkg.Certificate
	select {
	case cert = <-q.ToParticipantCert[p.Idx]:
	case <-clock.After(timeout):
		p.Abort()
		return simplpedpop.DKGOutput{}, chilldkg.Backup{}, dkgerr.NewUnattributed(
			dkgerr.KindTimeout, "timed out awaiting certificate")
	}
	return p.Finalize(cert)
}

// NewRealClock returns the production clockwork.Clock (wall-clock time);
// tests use clockwork.NewFakeClock() instead to make timeout paths
// deterministic.
func NewRealClock() clockwork.Clock {
	return clockwork.NewRealClock()
}
