package swap

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ID returns the deterministic request identifier: keccak256 over a fixed
// 32-byte-slot encoding of every field of both legs. Asset lists hash in
// declared order; the allowed-XLP set is sorted first so that set-equal
// requests share an id.
func (r Request) ID() common.Hash {
	return crypto.Keccak256Hash(r.Origination.encode(), r.Destination.encode())
}

func (t OriginTerms) encode() []byte {
	buf := make([]byte, 0, 7*32)
	buf = appendUint64Slot(buf, t.ChainID)
	buf = appendAddressSlot(buf, t.Paymaster)
	buf = appendAddressSlot(buf, t.Sender)
	buf = append(buf, hashAssets(t.Assets).Bytes()...)
	buf = append(buf, t.Fee.hash().Bytes()...)
	buf = appendUint64Slot(buf, t.Nonce)
	buf = append(buf, hashAddressSet(t.AllowedXlps).Bytes()...)
	return buf
}

// Hash digests the destination terms. Vouchers sign this digest, so any
// tampering with the delivery terms invalidates the signature.
func (t DestTerms) Hash() common.Hash {
	return crypto.Keccak256Hash(t.encode())
}

// Equal reports field-for-field equality of two destination legs.
func (t DestTerms) Equal(o DestTerms) bool {
	return t.Hash() == o.Hash()
}

func (t DestTerms) encode() []byte {
	buf := make([]byte, 0, 6*32)
	buf = appendUint64Slot(buf, t.ChainID)
	buf = appendAddressSlot(buf, t.Paymaster)
	buf = appendAddressSlot(buf, t.Recipient)
	buf = append(buf, hashAssets(t.Assets).Bytes()...)
	buf = appendBigSlot(buf, t.MaxUserOpCost)
	buf = appendUint64Slot(buf, uint64(t.ExpiresAt))
	return buf
}

func (f FeeRule) hash() common.Hash {
	buf := make([]byte, 0, 4*32)
	buf = appendUint64Slot(buf, uint64(f.StartFeeBps))
	buf = appendUint64Slot(buf, uint64(f.MaxFeeBps))
	buf = appendUint64Slot(buf, uint64(f.FeeIncreaseBpsPerSec))
	buf = appendUint64Slot(buf, uint64(f.UnspentVoucherFeeBps))
	return crypto.Keccak256Hash(buf)
}

// hashAssets digests an ordered asset list, length-prefixed so adjacent
// lists cannot collide.
func hashAssets(assets []Asset) common.Hash {
	buf := make([]byte, 0, (1+2*len(assets))*32)
	buf = appendUint64Slot(buf, uint64(len(assets)))
	for _, a := range assets {
		buf = appendAddressSlot(buf, a.Token)
		buf = appendBigSlot(buf, a.Amount)
	}
	return crypto.Keccak256Hash(buf)
}

// hashAddressSet digests an address set: sorted, length-prefixed. Order
// of the input slice does not affect the digest.
func hashAddressSet(addrs []common.Address) common.Hash {
	sorted := make([]common.Address, len(addrs))
	copy(sorted, addrs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	buf := make([]byte, 0, (1+len(sorted))*32)
	buf = appendUint64Slot(buf, uint64(len(sorted)))
	for _, a := range sorted {
		buf = appendAddressSlot(buf, a)
	}
	return crypto.Keccak256Hash(buf)
}

func appendUint64Slot(buf []byte, v uint64) []byte {
	var slot [32]byte
	binary.BigEndian.PutUint64(slot[24:], v)
	return append(buf, slot[:]...)
}

func appendAddressSlot(buf []byte, a common.Address) []byte {
	var slot [32]byte
	copy(slot[12:], a.Bytes())
	return append(buf, slot[:]...)
}

// appendBigSlot packs a non-negative integer into one slot. Values that
// fail Validate (nil, negative, >256 bits) pack as zero.
func appendBigSlot(buf []byte, v *big.Int) []byte {
	var slot [32]byte
	if v != nil && v.Sign() > 0 && v.BitLen() <= 256 {
		v.FillBytes(slot[:])
	}
	return append(buf, slot[:]...)
}
