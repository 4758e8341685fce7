package vss

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkgcore/chilldkg/internal/curve"
)

func TestVSSCorrectness(t *testing.T) {
	for thr := 1; thr <= 3; thr++ {
		for n := thr; n <= 2*thr+1; n++ {
			seed := []byte("vss-correctness-seed-0123456789-" + string(rune('a'+thr)) + string(rune('a'+n)))
			poly, commit, err := Generate(seed, thr)
			require.NoError(t, err)
			require.Equal(t, thr, commit.Threshold())

			shares := poly.Shares(n)
			require.Len(t, shares, n)
			for i := 0; i < n; i++ {
				require.True(t, Verify(i+1, shares[i], commit), "share %d must verify for t=%d n=%d", i, thr, n)
			}
		}
	}
}

func TestVerifyRejectsTamperedShare(t *testing.T) {
	_, commit, err := Generate([]byte("tamper-seed-aaaaaaaaaaaaaaaaaaaa"), 2)
	require.NoError(t, err)
	bad := curve.ScalarFromUint32(12345)
	require.False(t, Verify(1, bad, commit))
}

func TestRecoverSecret(t *testing.T) {
	poly, commit, err := Generate([]byte("recover-secret-seed-aaaaaaaaaaaa"), 2)
	require.NoError(t, err)
	shares := poly.Shares(3)

	subsets := [][]int{{1, 2}, {1, 3}, {2, 3}}
	var secrets []curve.Point
	for _, s := range subsets {
		idx := []int{s[0], s[1]}
		sh := []curve.Scalar{shares[s[0]-1], shares[s[1]-1]}
		recovered := RecoverSecret(idx, sh)
		secrets = append(secrets, curve.ScalarBaseMul(recovered))
	}
	for _, s := range secrets {
		require.True(t, s.Equal(commit.CommitmentToSecret()))
	}
}

func TestCommitmentInfinityEncoding(t *testing.T) {
	inf := curve.ScalarBaseMul(curve.ScalarFromUint32(0))
	require.True(t, inf.IsInfinity())
	b := inf.Bytes()
	for _, c := range b {
		require.Equal(t, byte(0), c)
	}
	parsed, err := curve.PointFromBytes(b[:])
	require.NoError(t, err)
	require.True(t, parsed.IsInfinity())
}
