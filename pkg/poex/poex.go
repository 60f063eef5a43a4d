// Copyright 2025 Certen Protocol
//
// Proof of Execution: a Schnorr-style cryptographic accumulator over the
// Bandersnatch twisted-Edwards curve (embedded in the BLS12-381 scalar
// field). Every call an executor appends to its accumulator contributes a
// point Y = s*beta for a fresh per-call secret s, and a challenge-weighted
// term c*Y folded into a running commitment T, where c is derived by
// hashing beta, Y and the executor's public key. The running scalar sum r
// of the secrets is kept alongside T so that two checkpoints of the same
// accumulator satisfy:
//
//	T_n - T_m == (r_n - r_m)*beta + sum(c_i * Y_i)
//
// for the calls appended between checkpoints m and n. A peer that only
// ever sees the Y_i values (never the secrets) can recompute the right-hand
// sum independently and check a claimed pair of checkpoints without trusting
// the prover.

package poex

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
	"golang.org/x/crypto/sha3"
)

// domainTag separates this accumulator's hash-to-scalar calls from any
// other use of SHA3-512 elsewhere in the system.
const domainTag = "certen.poex.v1"

// Point is the curve point type every accumulator value is expressed in.
type Point = twistededwards.PointAffine

var curve = twistededwards.GetEdwardsCurve()

// historyEntry records one add_to_proof call so PopFromProof can undo it.
type historyEntry struct {
	secret fr.Element
	y      Point
	c      fr.Element
}

// ProofOfExecution is the per-executor accumulator state. Every method
// takes the accumulator's own mutex, so it may be called from more than
// one goroutine.
type ProofOfExecution struct {
	mu sync.Mutex

	pubKey Point

	t Point
	r fr.Element

	checkpointT Point
	checkpointR fr.Element

	history []historyEntry

	// history of accepted per-batch verification info, keyed by batch
	// index, as gossiped opinions arrive from peers. Consumed by
	// VerifyProof to reconstruct a range sum without re-deriving secrets
	// it never had.
	verificationInfo map[uint64]VerificationInfo
}

// VerificationInfo is the ordered set of Y values a single batch
// contributed to the accumulator, one per call in the batch.
type VerificationInfo struct {
	BatchIndex uint64
	Ys         []Point
}

// New creates an accumulator bound to the given executor public key: the
// Bandersnatch accumulator key (see PublicKey), not the ed25519 key that
// signs opinions. It is folded into every challenge hash, so the same Y
// yields a different challenge c under each executor's key; Y itself
// depends only on the secret.
func New(pubKey Point) *ProofOfExecution {
	return &ProofOfExecution{
		pubKey:           pubKey,
		verificationInfo: make(map[uint64]VerificationInfo),
	}
}

// Proofs is the public (T, r) checkpoint pair exchanged between peers as
// part of an opinion.
type Proofs struct {
	T Point
	R fr.Element
}

// Equal reports whether two Proofs carry the same accumulator state.
func (p Proofs) Equal(other Proofs) bool {
	return p.T.Equal(&other.T) && p.R.Equal(&other.R)
}

// hashToScalar derives a challenge scalar from the domain tag and an
// arbitrary list of marshaled curve points / byte strings, the Go
// equivalent of the original SDK's Sha3_512_Builder-based derivation.
func hashToScalar(parts ...[]byte) fr.Element {
	h := sha3.New512()
	h.Write([]byte(domainTag))
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	var out fr.Element
	out.SetBytes(sum)
	return out
}

func challenge(y *Point, pubKey *Point) fr.Element {
	return hashToScalar(curve.Base.X.Marshal(), curve.Base.Y.Marshal(), y.X.Marshal(), y.Y.Marshal(), pubKey.X.Marshal(), pubKey.Y.Marshal())
}

// AddToProof folds one more executed call into the accumulator and returns
// the public point Y that must be gossiped to peers as this call's
// verification info. secret is the proof-of-execution secret the VM drew
// while executing the call (CallOutcome.ProofOfExecutionSecret); it is not
// generated here because two executors replaying the same call must arrive
// at the same Y, which is only possible if the secret comes from the
// deterministic execution itself rather than from this accumulator's own
// randomness.
func (p *ProofOfExecution) AddToProof(secret uint64) (Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s fr.Element
	s.SetUint64(secret)
	return p.addSecretLocked(s), nil
}

func (p *ProofOfExecution) addSecretLocked(secret fr.Element) Point {
	secretBig := secret.BigInt(new(big.Int))

	var y Point
	y.ScalarMultiplication(&curve.Base, secretBig)

	c := challenge(&y, &p.pubKey)

	var cY Point
	cY.ScalarMultiplication(&y, c.BigInt(new(big.Int)))

	var sBeta Point
	sBeta.ScalarMultiplication(&curve.Base, secretBig)

	var contribution Point
	contribution.Add(&cY, &sBeta)

	p.t.Add(&p.t, &contribution)
	p.r.Add(&p.r, &secret)

	p.history = append(p.history, historyEntry{secret: secret, y: y, c: c})
	return y
}

// PopFromProof undoes the most recent AddToProof call, restoring the
// accumulator to its state beforehand. Returns ErrEmptyHistory if there is
// nothing to pop.
func (p *ProofOfExecution) PopFromProof() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.history) == 0 {
		return ErrEmptyHistory
	}
	last := p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]

	secretBig := last.secret.BigInt(new(big.Int))

	var cY Point
	cY.ScalarMultiplication(&last.y, last.c.BigInt(new(big.Int)))
	var sBeta Point
	sBeta.ScalarMultiplication(&curve.Base, secretBig)
	var contribution Point
	contribution.Add(&cY, &sBeta)

	var negContribution Point
	negContribution.Neg(&contribution)
	p.t.Add(&p.t, &negContribution)

	var negSecret fr.Element
	negSecret.Neg(&last.secret)
	p.r.Add(&p.r, &negSecret)

	return nil
}

// BuildActualProof returns the current checkpoint (T, r).
func (p *ProofOfExecution) BuildActualProof() Proofs {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Proofs{T: p.t, R: p.r}
}

// BuildPreviousProof returns the checkpoint (T, r) as of the last call to
// AdvanceCheckpoint, i.e. the accumulator state before the batch currently
// in flight.
func (p *ProofOfExecution) BuildPreviousProof() Proofs {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Proofs{T: p.checkpointT, R: p.checkpointR}
}

// AdvanceCheckpoint moves the "previous proof" marker up to the current
// accumulator state. BatchExecutionTask calls this once a batch's outcome
// is durably agreed (chain-confirmed), so the next batch's
// BuildPreviousProof reflects exactly the calls already accounted for.
func (p *ProofOfExecution) AdvanceCheckpoint() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkpointT = p.t
	p.checkpointR = p.r
}

// Reset discards all accumulator state (T, r, the checkpoint and the pop
// history) and drops stored verification info for batches after
// batchIndex. BatchExecutionTask calls it when the chain publishes a
// successful batch whose drive state differs from its own; a
// chain-reported failure instead pops the task's contributions one by one.
func (p *ProofOfExecution) Reset(batchIndex uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.t = Point{}
	p.r = fr.Element{}
	p.checkpointT = Point{}
	p.checkpointR = fr.Element{}
	p.history = nil
	for idx := range p.verificationInfo {
		if idx > batchIndex {
			delete(p.verificationInfo, idx)
		}
	}
}

// AddBatchVerificationInformation records a peer's per-batch verification
// info (the Y values that batch contributed) for later use reconstructing
// a range sum in VerifyProof.
func (p *ProofOfExecution) AddBatchVerificationInformation(info VerificationInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verificationInfo[info.BatchIndex] = info
}

// BatchProofVerification checks the batch-range equation
// (n.T - m.T) == (n.R - m.R)*beta + cY for an explicitly supplied cY, the
// sum of challenge-weighted Y contributions between checkpoints m and n.
func BatchProofVerification(n, m Proofs, cY Point) bool {
	var deltaT Point
	var negMT Point
	negMT.Neg(&m.T)
	deltaT.Add(&n.T, &negMT)

	var deltaR fr.Element
	deltaR.Sub(&n.R, &m.R)

	var rBeta Point
	rBeta.ScalarMultiplication(&curve.Base, deltaR.BigInt(new(big.Int)))

	var rhs Point
	rhs.Add(&rBeta, &cY)

	return deltaT.Equal(&rhs)
}

// VerifyProof reconstructs the challenge-weighted range sum from stored
// per-batch verification info between the checkpoint's NextBatchToApprove
// and lastBatchIndex-1, folds in the explicitly supplied latest
// verification info for lastBatchIndex, and checks the batch-range
// equation against the submitted proofs and the checkpoint's recorded
// proof.
func (p *ProofOfExecution) VerifyProof(peerPubKey Point, checkpointProof Proofs, nextBatchToApprove uint64, submitted Proofs, lastBatchIndex uint64, latest VerificationInfo) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var cY Point
	for idx := nextBatchToApprove; idx < lastBatchIndex; idx++ {
		info, ok := p.verificationInfo[idx]
		if !ok {
			return false, fmt.Errorf("%w: missing verification info for batch %d", ErrMissingVerificationInfo, idx)
		}
		cY = accumulateChallengeSum(cY, info, peerPubKey)
	}
	if latest.BatchIndex != 0 || len(latest.Ys) != 0 {
		cY = accumulateChallengeSum(cY, latest, peerPubKey)
	}

	return BatchProofVerification(submitted, checkpointProof, cY), nil
}

func accumulateChallengeSum(acc Point, info VerificationInfo, pubKey Point) Point {
	for i := range info.Ys {
		y := info.Ys[i]
		c := challenge(&y, &pubKey)
		var cY Point
		cY.ScalarMultiplication(&y, c.BigInt(new(big.Int)))
		acc.Add(&acc, &cY)
	}
	return acc
}
