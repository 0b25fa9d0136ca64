package paymaster

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verdict is a dispute resolution outcome.
type Verdict uint8

const (
	VerdictNone Verdict = iota
	VerdictSlashed
	VerdictSuccessful
)

func (v Verdict) String() string {
	switch v {
	case VerdictSlashed:
		return "SLASHED"
	case VerdictSuccessful:
		return "SUCCESSFUL"
	default:
		return "NONE"
	}
}

// DisputeVerifier checks an external proof of what happened on the
// destination chain and yields a verdict. Deployments plug their own
// implementation; proofs are opaque bytes to the engine.
type DisputeVerifier interface {
	Verify(ctx context.Context, requestID common.Hash, proof []byte) (Verdict, error)
}

// OutcomeVerifier is the bundled verifier: a trusted oracle signs the
// verdict byte together with the request id, and the proof carries the
// verdict followed by the 65-byte signature.
type OutcomeVerifier struct {
	Oracle common.Address
}

// verdictDigest binds the verdict, the request and the protocol name so
// the oracle's signature cannot be reused for anything else.
func verdictDigest(requestID common.Hash, verdict Verdict) common.Hash {
	msg := make([]byte, 0, 32+32+1)
	msg = append(msg, []byte("CrossPayDisputeVerdict")...)
	msg = append(msg, requestID[:]...)
	msg = append(msg, byte(verdict))
	return crypto.Keccak256Hash(msg)
}

// SignVerdict produces a proof for a verdict with the oracle's key.
func SignVerdict(requestID common.Hash, verdict Verdict, oracleKey *ecdsa.PrivateKey) ([]byte, error) {
	digest := verdictDigest(requestID, verdict)
	sig, err := crypto.Sign(digest[:], oracleKey)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	proof := make([]byte, 0, 1+65)
	proof = append(proof, byte(verdict))
	proof = append(proof, sig...)
	return proof, nil
}

func (o OutcomeVerifier) Verify(_ context.Context, requestID common.Hash, proof []byte) (Verdict, error) {
	if len(proof) != 1+65 {
		return VerdictNone, fmt.Errorf("proof must be 66 bytes, got %d", len(proof))
	}
	verdict := Verdict(proof[0])
	if verdict != VerdictSlashed && verdict != VerdictSuccessful {
		return VerdictNone, fmt.Errorf("unknown verdict byte %d", proof[0])
	}
	digest := verdictDigest(requestID, verdict)
	sig := make([]byte, 65)
	copy(sig, proof[1:])
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return VerdictNone, fmt.Errorf("recover oracle signature: %w", err)
	}
	if crypto.PubkeyToAddress(*pub) != o.Oracle {
		return VerdictNone, fmt.Errorf("proof not signed by oracle %s", o.Oracle.Hex())
	}
	return verdict, nil
}
