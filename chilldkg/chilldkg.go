// Package chilldkg layers host long-term keys, session-parameter binding,
// and a certifying equality check on top of EncPedPop, turning its
// non-interactive dealer round into a full agreement protocol with
// per-participant recoverability via a canonical backup.
package chilldkg

import (
	"encoding/binary"

	"github.com/dkgcore/chilldkg/encpedpop"
	"github.com/dkgcore/chilldkg/internal/bip340"
	"github.com/dkgcore/chilldkg/internal/curve"
	"github.com/dkgcore/chilldkg/internal/dkgerr"
	"github.com/dkgcore/chilldkg/simplpedpop"
	"github.com/dkgcore/chilldkg/vss"
)

// SessionParams is the tuple (hostpubkeys, t, context) every participant
// must agree on before any dealer work happens.
type SessionParams struct {
	HostPubkeys [][32]byte
	T           int
	Context     []byte
}

// NewSessionParams validates the shape of a session parameter tuple
// (1 <= t <= n) before any cryptographic work begins.
func NewSessionParams(hostpubkeys [][32]byte, t int, context []byte) (*SessionParams, error) {
	n := len(hostpubkeys)
	if t <= 0 || t > n {
		return nil, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"threshold %d out of range for %d participants", t, n)
	}
	return &SessionParams{HostPubkeys: hostpubkeys, T: t, Context: append([]byte(nil), context...)}, nil
}

// N is the number of participants implied by the hostpubkey list.
func (p *SessionParams) N() int { return len(p.HostPubkeys) }

// ParamsID computes params_id = tagged_hash("params_id", be16(n) ‖
// hostpubkeys ‖ be32(t) ‖ context).
func (p *SessionParams) ParamsID() [32]byte {
	n := len(p.HostPubkeys)
	buf := make([]byte, 2, 2+n*32+4+len(p.Context))
	binary.BigEndian.PutUint16(buf, uint16(n))
	for _, hk := range p.HostPubkeys {
		buf = append(buf, hk[:]...)
	}
	var be4 [4]byte
	binary.BigEndian.PutUint32(be4[:], uint32(p.T))
	buf = append(buf, be4[:]...)
	buf = append(buf, p.Context...)
	return bip340.TaggedHash("params_id", buf)
}

// VerifyOwnIndex checks that a participant's own hostpubkey appears at
// its declared index. A participant must refuse to proceed otherwise.
func (p *SessionParams) VerifyOwnIndex(myHostPubkey [32]byte, myIdx int) error {
	if myIdx < 0 || myIdx >= len(p.HostPubkeys) {
		return dkgerr.NewAttributed(dkgerr.KindSessionMismatch, myIdx, "index out of range")
	}
	if p.HostPubkeys[myIdx] != myHostPubkey {
		return dkgerr.NewAttributed(dkgerr.KindSessionMismatch, myIdx,
			"own hostpubkey does not match session params at declared index")
	}
	return nil
}

// DeriveHostKey derives a participant's long-term host keypair from its
// seed: hostseckey = KDF(seed, "hostseckey"), hostpubkey = x-only
// encoding of hostseckey*G.
func DeriveHostKey(seed []byte) (curve.Scalar, [32]byte, error) {
	if len(seed) < simplpedpop.MinSeedLen {
		return curve.Scalar{}, [32]byte{}, dkgerr.NewUnattributed(dkgerr.KindRandomnessFailure,
			"seed is %d bytes, want at least %d", len(seed), simplpedpop.MinSeedLen)
	}
	raw := curve.KDF(seed, "hostseckey")
	sk, _ := curve.ScalarFromBytes(raw[:])
	pk := curve.ScalarBaseMul(sk)
	xonly, err := pk.XOnly()
	if err != nil {
		return curve.Scalar{}, [32]byte{}, err
	}
	return sk, xonly, nil
}

// EqMsg computes eq_msg = tagged_hash("eq_msg", params_id ‖ η), the
// message every honest participant's certificate share signs.
func EqMsg(paramsID [32]byte, eta []byte) [32]byte {
	return bip340.TaggedHash("eq_msg", paramsID[:], eta)
}

// CertShare is one participant's 64-byte signature over the eq_msg for
// this session.
type CertShare [64]byte

// SignCertShare produces cert_share_i = Schnorr-Sign(hostseckey_i,
// eq_msg).
func SignCertShare(hostSeckey curve.Scalar, paramsID [32]byte, eta []byte, auxRand [32]byte) (CertShare, error) {
	sig, err := bip340.Sign(hostSeckey, EqMsg(paramsID, eta), auxRand)
	return CertShare(sig), err
}

// Certificate is the concatenation of all n cert_share_i in participant
// order (64·n bytes). It is self-authenticating: anyone holding (η,
// certificate, hostpubkeys) can confirm every honest-hostkey holder
// accepted the same transcript, with no further interaction.
type Certificate []CertShare

// Bytes serializes the certificate as 64*n concatenated bytes.
func (c Certificate) Bytes() []byte {
	out := make([]byte, 0, len(c)*64)
	for _, s := range c {
		out = append(out, s[:]...)
	}
	return out
}

// ParseCertificate decodes a 64*n-byte certificate.
func ParseCertificate(b []byte, n int) (Certificate, error) {
	if len(b) != n*64 {
		return nil, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"certificate is %d bytes, want %d", len(b), n*64)
	}
	cert := make(Certificate, n)
	for i := 0; i < n; i++ {
		copy(cert[i][:], b[i*64:(i+1)*64])
	}
	return cert, nil
}

// VerifyCertificate checks that every cert share verifies under its
// corresponding hostpubkey over this session's eq_msg. It returns a
// CertificateInvalid error attributed to the first failing index; a
// single flipped byte anywhere in the certificate invalidates it.
func VerifyCertificate(cert Certificate, hostpubkeys [][32]byte, paramsID [32]byte, eta []byte) error {
	if len(cert) != len(hostpubkeys) {
		return dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"certificate has %d shares, want %d", len(cert), len(hostpubkeys))
	}
	msg := EqMsg(paramsID, eta)
	for i, share := range cert {
		if !bip340.Verify(share, hostpubkeys[i], msg) {
			return dkgerr.NewAttributed(dkgerr.KindCertificateInvalid, i,
				"certificate share failed verification")
		}
	}
	return nil
}

// Backup is the canonical per-participant recovery record: the
// transcript η plus the raw share sum, sufficient to reconstruct the DKG
// output given the participant's long-term seed.
type Backup struct {
	Eta      []byte
	ShareSum curve.Scalar
}

// Bytes serializes the backup as η ‖ share_sum (32 bytes).
func (b Backup) Bytes() []byte {
	sb := b.ShareSum.Bytes()
	out := make([]byte, 0, len(b.Eta)+32)
	out = append(out, b.Eta...)
	out = append(out, sb[:]...)
	return out
}

// ParseBackup decodes a backup record, taking the last 32 bytes as the
// share sum and everything before it as η.
func ParseBackup(b []byte) (Backup, error) {
	if len(b) < 32 {
		return Backup{}, dkgerr.NewUnattributed(dkgerr.KindInvalidSize, "backup too short")
	}
	eta := append([]byte(nil), b[:len(b)-32]...)
	shareSum, err := curve.ScalarFromBytes(b[len(b)-32:])
	if err != nil {
		return Backup{}, err
	}
	return Backup{Eta: eta, ShareSum: shareSum}, nil
}

// ParseTranscript splits η = be32(t) ‖ serialize(sum_commitment) back
// into the threshold and the sum VSS commitment it carries, letting a
// participant reconstruct pubshares/group key from a saved backup alone.
func ParseTranscript(eta []byte) (int, vss.Commitment, error) {
	if len(eta) < 4 {
		return 0, vss.Commitment{}, dkgerr.NewUnattributed(dkgerr.KindInvalidSize, "transcript too short")
	}
	t := int(binary.BigEndian.Uint32(eta[:4]))
	rest := eta[4:]
	if len(rest) != t*33 {
		return 0, vss.Commitment{}, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"transcript commitment length %d does not match t=%d", len(rest), t)
	}
	a := make([]curve.Point, t)
	for j := 0; j < t; j++ {
		p, err := curve.PointFromBytes(rest[j*33 : (j+1)*33])
		if err != nil {
			return 0, vss.Commitment{}, err
		}
		a[j] = p
	}
	return t, vss.Commitment{A: a}, nil
}

// Recover reconstructs a participant's DKG output from a canonical
// backup and the session size n: recover(backup_i, n) == (share_sum_i,
// group_pk, pubshares).
func Recover(backup Backup, n int) (simplpedpop.DKGOutput, error) {
	_, sumCommit, err := ParseTranscript(backup.Eta)
	if err != nil {
		return simplpedpop.DKGOutput{}, err
	}
	groupPK, pubshares := simplpedpop.GroupPubKeyAndPubshares(sumCommit, n)
	shareSum := backup.ShareSum
	return simplpedpop.DKGOutput{ShareSum: &shareSum, GroupPK: groupPK, Pubshares: pubshares}, nil
}

// State is a participant's position in the ChillDKG state machine.
type State int

const (
	StateInit State = iota
	StateDealt
	StatePreFinal
	StateSigned
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateDealt:
		return "DEALT"
	case StatePreFinal:
		return "PRE_FINAL"
	case StateSigned:
		return "SIGNED"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Participant drives one party through the ChillDKG state machine:
// INIT -> DEALT -> PRE_FINAL -> SIGNED -> DONE, with ABORTED reachable
// (and irreversible) from any state on invalid input. It composes
// encpedpop for the dealer/pre-finalize steps and this package for the
// session-parameter and certifying equality check layers.
type Participant struct {
	Seed       []byte
	Params     *SessionParams
	Idx        int
	HostSeckey curve.Scalar
	HostPubkey [32]byte
	State      State

	simplState    simplpedpop.SignerState
	dealerEnckeys []curve.Point
	eta           []byte
	dkgOutput     simplpedpop.DKGOutput
}

// NewParticipant creates a participant for params at index idx, deriving
// its host keypair from seed and refusing to proceed if its hostpubkey
// does not appear at idx.
func NewParticipant(seed []byte, params *SessionParams, idx int) (*Participant, error) {
	hostSeckey, hostPubkey, err := DeriveHostKey(seed)
	if err != nil {
		return nil, err
	}
	if err := params.VerifyOwnIndex(hostPubkey, idx); err != nil {
		return nil, err
	}
	return &Participant{
		Seed:       seed,
		Params:     params,
		Idx:        idx,
		HostSeckey: hostSeckey,
		HostPubkey: hostPubkey,
		State:      StateInit,
	}, nil
}

// EncKey returns the participant's EncPedPop static encryption key,
// published alongside its hostpubkey at session setup.
func (p *Participant) EncKey() curve.Point {
	_, enckey := encpedpop.DeriveKeys(p.Seed)
	return enckey
}

// DealerStep runs the dealer half of the protocol (INIT -> DEALT),
// given every participant's published enckeys in session order.
func (p *Participant) DealerStep(enckeys []curve.Point) (encpedpop.DealerMessage, error) {
	if p.State != StateInit {
		return encpedpop.DealerMessage{}, dkgerr.NewAttributed(dkgerr.KindStateError, p.Idx,
			"DealerStep called from state %s, want INIT", p.State)
	}
	state, msg, err := encpedpop.DealerStep(p.Seed, p.Params.T, p.Params.N(), p.Idx, enckeys)
	if err != nil {
		p.State = StateAborted
		return encpedpop.DealerMessage{}, err
	}
	p.simplState = state
	p.dealerEnckeys = enckeys
	p.State = StateDealt
	return msg, nil
}

// PreFinalize consumes the coordinator's aggregated message (DEALT ->
// PRE_FINAL), decrypting this participant's share sum and deriving η.
func (p *Participant) PreFinalize(cm encpedpop.CoordinatorMessage) error {
	if p.State != StateDealt {
		return dkgerr.NewAttributed(dkgerr.KindStateError, p.Idx,
			"PreFinalize called from state %s, want DEALT", p.State)
	}
	deckey, _ := encpedpop.DeriveKeys(p.Seed)
	out, eta, err := encpedpop.PreFinalize(p.simplState, cm, deckey, p.dealerEnckeys)
	if err != nil {
		p.State = StateAborted
		return err
	}
	p.dkgOutput = out
	p.eta = eta
	p.State = StatePreFinal
	return nil
}

// SignCertShare produces this participant's certifying signature over η
// (PRE_FINAL -> SIGNED).
func (p *Participant) SignCertShare(auxRand [32]byte) (CertShare, error) {
	if p.State != StatePreFinal {
		return CertShare{}, dkgerr.NewAttributed(dkgerr.KindStateError, p.Idx,
			"SignCertShare called from state %s, want PRE_FINAL", p.State)
	}
	share, err := SignCertShare(p.HostSeckey, p.Params.ParamsID(), p.eta, auxRand)
	if err != nil {
		p.State = StateAborted
		return CertShare{}, err
	}
	p.State = StateSigned
	return share, nil
}

// Abort transitions the participant to ABORTED. Callers invoke it when
// the transport reports an expected message as not received; ABORTED is
// irreversible and the participant refuses further messages for the
// session.
func (p *Participant) Abort() {
	p.State = StateAborted
}

// Finalize verifies the assembled certificate and, on success, transitions
// SIGNED -> DONE and returns the DKG output plus the canonical backup.
// Calling Finalize again with the same certificate after reaching DONE is
// idempotent and returns identical output.
func (p *Participant) Finalize(cert Certificate) (simplpedpop.DKGOutput, Backup, error) {
	if p.State != StateSigned && p.State != StateDone {
		return simplpedpop.DKGOutput{}, Backup{}, dkgerr.NewAttributed(dkgerr.KindStateError, p.Idx,
			"Finalize called from state %s, want SIGNED", p.State)
	}
	if err := VerifyCertificate(cert, p.Params.HostPubkeys, p.Params.ParamsID(), p.eta); err != nil {
		p.State = StateAborted
		return simplpedpop.DKGOutput{}, Backup{}, err
	}
	p.State = StateDone
	return p.dkgOutput, Backup{Eta: p.eta, ShareSum: *p.dkgOutput.ShareSum}, nil
}

// Coordinator aggregates dealer messages and assembles the certificate
// for a session; it never holds a secret share.
type Coordinator struct {
	Params *SessionParams
}

// Aggregate runs EncPedPop's coordinator step over n dealer messages.
func (c *Coordinator) Aggregate(msgs []encpedpop.DealerMessage) (encpedpop.CoordinatorMessage, error) {
	return encpedpop.CoordinatorStep(msgs, c.Params.T, c.Params.N())
}

// AssembleCertificate concatenates cert shares in participant order.
func (c *Coordinator) AssembleCertificate(shares []CertShare) Certificate {
	cert := make(Certificate, len(shares))
	copy(cert, shares)
	return cert
}
