package pop

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkgcore/chilldkg/internal/curve"
)

func TestProveVerifyRoundTrip(t *testing.T) {
	a0 := mustDerive(t, "pop-seed-aaaaaaaaaaaaaaaaaaaaaaaa")
	commit := curve.ScalarBaseMul(a0)

	var aux [32]byte
	sig, err := Prove(a0, 3, aux)
	require.NoError(t, err)
	require.True(t, Verify(sig, commit, 3))
}

func TestVerifyRejectsWrongIndex(t *testing.T) {
	a0 := mustDerive(t, "pop-seed-bbbbbbbbbbbbbbbbbbbbbbbb")
	commit := curve.ScalarBaseMul(a0)
	var aux [32]byte
	sig, err := Prove(a0, 1, aux)
	require.NoError(t, err)
	require.False(t, Verify(sig, commit, 2))
}

func TestVerifyRejectsInfinityCommitment(t *testing.T) {
	inf := curve.ScalarBaseMul(curve.ScalarFromUint32(0))
	var sig [64]byte
	require.False(t, Verify(sig, inf, 0))
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	a0 := mustDerive(t, "pop-seed-cccccccccccccccccccccccc")
	commit := curve.ScalarBaseMul(a0)
	var aux [32]byte
	sig, err := Prove(a0, 5, aux)
	require.NoError(t, err)
	sig[0] ^= 0xff
	require.False(t, Verify(sig, commit, 5))
}

func mustDerive(t *testing.T, seed string) curve.Scalar {
	t.Helper()
	s, err := curve.DeriveScalar([]byte(seed), "test", 0)
	require.NoError(t, err)
	return s
}
