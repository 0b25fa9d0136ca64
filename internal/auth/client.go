package auth

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

const defaultRequestTTL = 2 * time.Minute

// BuildHeaders signs one request envelope and returns the three auth
// headers a crosspay service expects. payload may be nil.
func BuildHeaders(key *ecdsa.PrivateKey, action, resourceID string, payload any, ttl time.Duration) (map[string]string, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		raw = b
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultRequestTTL
	}

	msg := SignedRequest{
		Action:     action,
		ExpiresAt:  time.Now().Add(ttl).Unix(),
		Nonce:      hex.EncodeToString(nonce),
		Payload:    raw,
		ResourceID: resourceID,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal signed request: %w", err)
	}
	sig, err := Sign(msgBytes, key)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		HeaderWalletAddress: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		HeaderSignedMessage: base64.StdEncoding.EncodeToString(msgBytes),
		HeaderSignature:     "0x" + hex.EncodeToString(sig),
	}, nil
}
