// Package bridge carries settlement facts between chain instances. A
// fact is published on the source chain and applied on the destination
// chain; delivery is at least once, ordered within one (source,
// destination, type) stream and unordered across streams, so every
// application must be idempotent.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xlplabs/crosspay/internal/paymaster"
	"github.com/xlplabs/crosspay/internal/swap"
)

// Redis key formats. One list per (src, dst, type) stream keeps
// per-stream ordering; the DLQ mirrors the stream key.
const (
	FactStreamKeyFmt = "bridge:facts:%d-%d:%s" // src chain, dst chain, fact type
	FactDLQKeyFmt    = "bridge:dlq:%d-%d:%s"
)

// FactType names the settlement facts that cross chains.
type FactType string

const (
	FactXlpRegistration FactType = "xlp_registration"
	FactDisputeOutcome  FactType = "dispute_outcome"
)

// Fact is the wire envelope for one cross-chain settlement fact.
type Fact struct {
	Type       FactType        `json:"type"`
	SrcChainID uint64          `json:"src_chain_id"`
	DstChainID uint64          `json:"dst_chain_id"`
	SentAt     int64           `json:"sent_at"`
	Payload    json.RawMessage `json:"payload"`
}

// XlpRegistrationFact admits an XLP into the destination registry.
type XlpRegistrationFact struct {
	L1Address common.Address `json:"l1_address"`
	L2Address common.Address `json:"l2_address"`
}

// DisputeOutcomeFact settles a disputed swap on the destination chain.
// The verdict byte follows paymaster.Verdict.
type DisputeOutcomeFact struct {
	Request swap.Request `json:"request"`
	Verdict uint8        `json:"verdict"`
}

// Connector publishes facts toward a destination chain. The redis
// variant queues them for a relayer; the direct variant applies them
// in-process for single-binary deployments.
type Connector interface {
	Publish(ctx context.Context, fact Fact) error
}

// Applier is the destination side of the bridge. *paymaster.Paymaster
// satisfies it.
type Applier interface {
	ApplyXlpRegistration(l1, l2 common.Address) error
	ApplyDisputeOutcome(req swap.Request, verdict paymaster.Verdict) error
}

// FactStreamKey returns the redis list key for one fact stream.
func FactStreamKey(src, dst uint64, t FactType) string {
	return fmt.Sprintf(FactStreamKeyFmt, src, dst, t)
}

// FactDLQKey returns the dead-letter key for one fact stream.
func FactDLQKey(src, dst uint64, t FactType) string {
	return fmt.Sprintf(FactDLQKeyFmt, src, dst, t)
}

// NewXlpRegistrationFact wraps an XLP registration for the wire.
func NewXlpRegistrationFact(src, dst uint64, l1, l2 common.Address, now int64) (Fact, error) {
	payload, err := json.Marshal(XlpRegistrationFact{L1Address: l1, L2Address: l2})
	if err != nil {
		return Fact{}, fmt.Errorf("marshal xlp registration: %w", err)
	}
	return Fact{Type: FactXlpRegistration, SrcChainID: src, DstChainID: dst, SentAt: now, Payload: payload}, nil
}

// NewDisputeOutcomeFact wraps a dispute verdict for the wire.
func NewDisputeOutcomeFact(src, dst uint64, req swap.Request, verdict paymaster.Verdict, now int64) (Fact, error) {
	payload, err := json.Marshal(DisputeOutcomeFact{Request: req, Verdict: uint8(verdict)})
	if err != nil {
		return Fact{}, fmt.Errorf("marshal dispute outcome: %w", err)
	}
	return Fact{Type: FactDisputeOutcome, SrcChainID: src, DstChainID: dst, SentAt: now, Payload: payload}, nil
}

// ApplyFact decodes a fact and hands it to the destination applier.
func ApplyFact(a Applier, fact Fact) error {
	switch fact.Type {
	case FactXlpRegistration:
		var p XlpRegistrationFact
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			return fmt.Errorf("decode xlp registration: %w", err)
		}
		return a.ApplyXlpRegistration(p.L1Address, p.L2Address)
	case FactDisputeOutcome:
		var p DisputeOutcomeFact
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			return fmt.Errorf("decode dispute outcome: %w", err)
		}
		return a.ApplyDisputeOutcome(p.Request, paymaster.Verdict(p.Verdict))
	default:
		return fmt.Errorf("unknown fact type %q", fact.Type)
	}
}
