package chilldkg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkgcore/chilldkg/encpedpop"
	"github.com/dkgcore/chilldkg/internal/curve"
	"github.com/dkgcore/chilldkg/internal/dkgerr"
)

func hostSeeds(n int, tag string) [][]byte {
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = []byte(tag + string(rune('A'+i)) + "-0123456789012345678901234567")
	}
	return out
}

func newSession(t *testing.T, seeds [][]byte, thr int) *SessionParams {
	t.Helper()
	n := len(seeds)
	hostpubkeys := make([][32]byte, n)
	for i := 0; i < n; i++ {
		_, hpk, err := DeriveHostKey(seeds[i])
		require.NoError(t, err)
		hostpubkeys[i] = hpk
	}
	params, err := NewSessionParams(hostpubkeys, thr, []byte("test session context"))
	require.NoError(t, err)
	return params
}

// runSession drives a full honest ChillDKG session to completion and
// returns every participant plus the final outputs and backups.
func runSession(t *testing.T, seeds [][]byte, thr int) ([]*Participant, []Backup) {
	t.Helper()
	n := len(seeds)
	params := newSession(t, seeds, thr)

	participants := make([]*Participant, n)
	enckeys := make([]curve.Point, n)
	for i := 0; i < n; i++ {
		p, err := NewParticipant(seeds[i], params, i)
		require.NoError(t, err)
		participants[i] = p
		enckeys[i] = p.EncKey()
	}

	dealerMsgs := make([]encpedpop.DealerMessage, n)
	for i, p := range participants {
		msg, err := p.DealerStep(enckeys)
		require.NoError(t, err)
		dealerMsgs[i] = msg
	}

	coord := &Coordinator{Params: params}
	cm, err := coord.Aggregate(dealerMsgs)
	require.NoError(t, err)

	certShares := make([]CertShare, n)
	for i, p := range participants {
		require.NoError(t, p.PreFinalize(cm))
		var aux [32]byte
		share, err := p.SignCertShare(aux)
		require.NoError(t, err)
		certShares[i] = share
	}

	cert := coord.AssembleCertificate(certShares)

	backups := make([]Backup, n)
	for i, p := range participants {
		_, backup, err := p.Finalize(cert)
		require.NoError(t, err)
		backups[i] = backup
	}
	return participants, backups
}

func TestSessionParamsIDStableUnderContentEquality(t *testing.T) {
	seeds := hostSeeds(3, "paramsid-")
	p1 := newSession(t, seeds, 2)
	p2 := newSession(t, seeds, 2)
	require.Equal(t, p1.ParamsID(), p2.ParamsID())

	p3 := newSession(t, seeds, 3)
	require.NotEqual(t, p1.ParamsID(), p3.ParamsID())
}

func TestDeriveHostKeyRejectsShortSeed(t *testing.T) {
	_, _, err := DeriveHostKey([]byte("too-short"))
	require.Error(t, err)
	unattr, ok := err.(*dkgerr.Unattributed)
	require.True(t, ok)
	require.Equal(t, dkgerr.KindRandomnessFailure, unattr.Kind())
}

func TestNewSessionParamsRejectsBadThreshold(t *testing.T) {
	hostpubkeys := make([][32]byte, 3)
	_, err := NewSessionParams(hostpubkeys, 0, nil)
	require.Error(t, err)
	_, err = NewSessionParams(hostpubkeys, 4, nil)
	require.Error(t, err)
}

func TestNewParticipantRejectsWrongIndex(t *testing.T) {
	seeds := hostSeeds(3, "wrongidx-")
	params := newSession(t, seeds, 2)
	_, err := NewParticipant(seeds[0], params, 1)
	require.Error(t, err)
	attr, ok := err.(*dkgerr.Attributed)
	require.True(t, ok)
	require.Equal(t, dkgerr.KindSessionMismatch, attr.Kind())
}

func TestFullSessionAgreementAndBackupRoundTrip(t *testing.T) {
	cases := []struct{ t, n int }{{1, 1}, {2, 3}, {3, 5}}
	for _, c := range cases {
		seeds := hostSeeds(c.n, "full-")
		_, backups := runSession(t, seeds, c.t)

		for i := 1; i < c.n; i++ {
			recoveredI, err := Recover(backups[i], c.n)
			require.NoError(t, err)
			recovered0, err := Recover(backups[0], c.n)
			require.NoError(t, err)
			require.True(t, recoveredI.GroupPK.Equal(recovered0.GroupPK))
		}

		for i := 0; i < c.n; i++ {
			recovered, err := Recover(backups[i], c.n)
			require.NoError(t, err)
			require.True(t, curve.ScalarBaseMul(*recovered.ShareSum).Equal(recovered.Pubshares[i]))

			roundtrip, err := ParseBackup(backups[i].Bytes())
			require.NoError(t, err)
			require.Equal(t, backups[i].Eta, roundtrip.Eta)
			require.True(t, backups[i].ShareSum.Equal(roundtrip.ShareSum))
		}
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	seeds := hostSeeds(2, "idem-")
	params := newSession(t, seeds, 2)
	participants := make([]*Participant, 2)
	enckeys := make([]curve.Point, 2)
	for i := 0; i < 2; i++ {
		p, err := NewParticipant(seeds[i], params, i)
		require.NoError(t, err)
		participants[i] = p
		enckeys[i] = p.EncKey()
	}
	dealerMsgs := make([]encpedpop.DealerMessage, 2)
	for i, p := range participants {
		msg, err := p.DealerStep(enckeys)
		require.NoError(t, err)
		dealerMsgs[i] = msg
	}
	coord := &Coordinator{Params: params}
	cm, err := coord.Aggregate(dealerMsgs)
	require.NoError(t, err)

	certShares := make([]CertShare, 2)
	for i, p := range participants {
		require.NoError(t, p.PreFinalize(cm))
		var aux [32]byte
		share, err := p.SignCertShare(aux)
		require.NoError(t, err)
		certShares[i] = share
	}
	cert := coord.AssembleCertificate(certShares)

	out1, backup1, err := participants[0].Finalize(cert)
	require.NoError(t, err)
	require.Equal(t, StateDone, participants[0].State)

	out2, backup2, err := participants[0].Finalize(cert)
	require.NoError(t, err)
	require.Equal(t, StateDone, participants[0].State)

	require.True(t, out1.GroupPK.Equal(out2.GroupPK))
	require.True(t, (*out1.ShareSum).Equal(*out2.ShareSum))
	require.Equal(t, backup1, backup2)
}

func TestCertificateTamperInvalidatesVerification(t *testing.T) {
	seeds := hostSeeds(3, "tamper-")
	params := newSession(t, seeds, 2)
	participants := make([]*Participant, 3)
	enckeys := make([]curve.Point, 3)
	for i := 0; i < 3; i++ {
		p, err := NewParticipant(seeds[i], params, i)
		require.NoError(t, err)
		participants[i] = p
		enckeys[i] = p.EncKey()
	}
	dealerMsgs := make([]encpedpop.DealerMessage, 3)
	for i, p := range participants {
		msg, err := p.DealerStep(enckeys)
		require.NoError(t, err)
		dealerMsgs[i] = msg
	}
	coord := &Coordinator{Params: params}
	cm, err := coord.Aggregate(dealerMsgs)
	require.NoError(t, err)

	certShares := make([]CertShare, 3)
	for i, p := range participants {
		require.NoError(t, p.PreFinalize(cm))
		var aux [32]byte
		share, err := p.SignCertShare(aux)
		require.NoError(t, err)
		certShares[i] = share
	}
	cert := coord.AssembleCertificate(certShares)
	cert[1][0] ^= 0xff

	_, _, err = participants[0].Finalize(cert)
	require.Error(t, err)
	attr, ok := err.(*dkgerr.Attributed)
	require.True(t, ok)
	require.Equal(t, dkgerr.KindCertificateInvalid, attr.Kind())
	require.Equal(t, 1, attr.Index)
	require.Equal(t, StateAborted, participants[0].State)
}

func TestStateMachineRejectsOutOfOrderCalls(t *testing.T) {
	seeds := hostSeeds(2, "stateorder-")
	params := newSession(t, seeds, 2)
	p, err := NewParticipant(seeds[0], params, 0)
	require.NoError(t, err)

	_, err = p.SignCertShare([32]byte{})
	require.Error(t, err)
	stateErr, ok := err.(*dkgerr.Attributed)
	require.True(t, ok)
	require.Equal(t, dkgerr.KindStateError, stateErr.Kind())

	_, _, err = p.Finalize(Certificate{})
	require.Error(t, err)

	err = p.PreFinalize(encpedpop.CoordinatorMessage{})
	require.Error(t, err)
}
