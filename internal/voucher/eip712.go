package voucher

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var swapVoucherTypeHash = crypto.Keccak256Hash([]byte(
	"SwapVoucher(bytes32 requestId,address xlp,bytes32 destHash,uint64 expiresAt,uint8 voucherType)",
))

// domainSeparator computes the EIP-712 domain separator, binding vouchers
// to one chain and one paymaster deployment.
func domainSeparator(chainID *big.Int, paymaster common.Address) [32]byte {
	domainTypeHash := crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))
	nameHash := crypto.Keccak256Hash([]byte("CrossPay Paymaster"))
	versionHash := crypto.Keccak256Hash([]byte("1"))

	// ABI-encode: (bytes32, bytes32, bytes32, uint256, address)
	// Each element padded to 32 bytes; addresses right-aligned in their slot
	encoded := make([]byte, 5*32)
	copy(encoded[0:32], domainTypeHash[:])
	copy(encoded[32:64], nameHash[:])
	copy(encoded[64:96], versionHash[:])
	chainID.FillBytes(encoded[96:128])
	copy(encoded[140:160], paymaster.Bytes())

	return crypto.Keccak256Hash(encoded)
}

// Digest returns the EIP-712 digest an XLP signs for this voucher. The
// destination terms enter through their slot-encoded hash, so every field
// of the delivery leg is covered by the signature.
func Digest(v *Voucher, chainID *big.Int, paymaster common.Address) [32]byte {
	// structHash = keccak256(typeHash || abi.encode(fields))
	encoded := make([]byte, 6*32)
	copy(encoded[0:32], swapVoucherTypeHash[:])
	copy(encoded[32:64], v.RequestID[:])
	copy(encoded[76:96], v.Xlp.Bytes())
	destHash := v.Dest.Hash()
	copy(encoded[96:128], destHash[:])
	new(big.Int).SetUint64(uint64(v.ExpiresAt)).FillBytes(encoded[128:160])
	encoded[191] = v.VoucherType

	structHash := crypto.Keccak256Hash(encoded)
	sep := domainSeparator(chainID, paymaster)

	// Final digest: keccak256(0x1901 || domainSeparator || structHash)
	msg := make([]byte, 2+32+32)
	msg[0] = 0x19
	msg[1] = 0x01
	copy(msg[2:34], sep[:])
	copy(msg[34:66], structHash[:])
	return crypto.Keccak256Hash(msg)
}

// Sign signs the voucher in-place with the XLP's private key.
func Sign(v *Voucher, privKey *ecdsa.PrivateKey, chainID *big.Int, paymaster common.Address) error {
	digest := Digest(v, chainID, paymaster)
	sig, err := crypto.Sign(digest[:], privKey)
	if err != nil {
		return err
	}
	// Convert V from 0/1 to 27/28 for ecrecover compatibility
	sig[64] += 27
	v.Signature = sig
	return nil
}

// Verify recovers the signer address from a signed voucher. Vouchers
// arrive over the network, so the signature length is checked before
// recovery.
func Verify(v *Voucher, chainID *big.Int, paymaster common.Address) (common.Address, error) {
	if len(v.Signature) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(v.Signature))
	}
	digest := Digest(v, chainID, paymaster)
	sig := make([]byte, 65)
	copy(sig, v.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
