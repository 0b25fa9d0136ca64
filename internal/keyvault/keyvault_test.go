package keyvault

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe512961708279f5d3c96ec6c6d5a0c1"

func resetCache() {
	once = sync.Once{}
	cachedKey = nil
	cachedErr = nil
}

func TestGet_MockKey(t *testing.T) {
	resetCache()
	t.Setenv("MOCK_KEY_VAULT", "1")
	t.Setenv("MOCK_XLP_PRIVATE_KEY", "0x"+testKeyHex)

	key, err := Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if key.PrivateKeyHex != testKeyHex {
		t.Errorf("PrivateKeyHex = %q, want %q", key.PrivateKeyHex, testKeyHex)
	}
	if _, err := crypto.HexToECDSA(key.PrivateKeyHex); err != nil {
		t.Errorf("returned key does not parse: %v", err)
	}

	again, err := Get(context.Background())
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if again != key {
		t.Error("successful result must be cached")
	}
}

func TestGet_MockKeyMissing(t *testing.T) {
	resetCache()
	t.Setenv("MOCK_KEY_VAULT", "1")
	t.Setenv("MOCK_XLP_PRIVATE_KEY", "")

	if _, err := Get(context.Background()); err == nil {
		t.Fatal("expected an error with no mock key set")
	}

	// Errors are not cached: fixing the environment fixes the next call.
	t.Setenv("MOCK_XLP_PRIVATE_KEY", testKeyHex)
	key, err := Get(context.Background())
	if err != nil {
		t.Fatalf("Get after fixing env: %v", err)
	}
	if key.PrivateKeyHex != testKeyHex {
		t.Errorf("PrivateKeyHex = %q, want %q", key.PrivateKeyHex, testKeyHex)
	}
}

func TestGet_MockKeyBadLength(t *testing.T) {
	resetCache()
	t.Setenv("MOCK_KEY_VAULT", "1")
	t.Setenv("MOCK_XLP_PRIVATE_KEY", "abcd")

	_, err := Get(context.Background())
	if err == nil || !strings.Contains(err.Error(), "32-byte") {
		t.Fatalf("expected a length error, got %v", err)
	}
}
