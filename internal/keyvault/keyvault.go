// Package keyvault retrieves the XLP voucher-signing key.
//
// In production the key never leaves the operator's signer-vault daemon
// except over its local gRPC endpoint (signer.v1.SignerVault/GetSigningKey).
// Outside a vault deployment the MOCK_XLP_PRIVATE_KEY environment variable
// is used instead.
package keyvault

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xlplabs/crosspay/internal/keyvault/signerpb"
)

// SigningKey holds the key material returned by the vault.
type SigningKey struct {
	// PrivateKeyHex is the secp256k1 private key as a lowercase hex string
	// without the "0x" prefix.
	PrivateKeyHex string
	// EthAddressHex is the derived Ethereum address ("0x…").
	EthAddressHex string
}

// cached result, one fetch per process.
var (
	once      sync.Once
	cachedKey *SigningKey
	cachedErr error
)

// Get returns the signing key.
//
// Decision tree:
//  1. MOCK_KEY_VAULT env var set → use MOCK_XLP_PRIVATE_KEY (error if absent)
//  2. Otherwise → gRPC call to the vault at KEY_VAULT_HOST:KEY_VAULT_PORT
//
// The result is cached after the first successful call; errors are NOT
// cached so the caller can retry after a transient failure.
func Get(ctx context.Context) (*SigningKey, error) {
	once.Do(func() {
		cachedKey, cachedErr = fetch(ctx)
		if cachedErr != nil {
			// Errors are not cached, the next call retries.
			once = sync.Once{}
		}
	})
	return cachedKey, cachedErr
}

func fetch(ctx context.Context) (*SigningKey, error) {
	if os.Getenv("MOCK_KEY_VAULT") != "" {
		return fetchMock()
	}
	return fetchGRPC(ctx)
}

// fetchMock returns the key from environment variables (development / CI).
func fetchMock() (*SigningKey, error) {
	raw := os.Getenv("MOCK_XLP_PRIVATE_KEY")
	if raw == "" {
		return nil, fmt.Errorf("keyvault: MOCK_KEY_VAULT is set but MOCK_XLP_PRIVATE_KEY is empty")
	}
	keyHex := strings.TrimPrefix(raw, "0x")
	if len(keyHex) != 64 {
		return nil, fmt.Errorf("keyvault: MOCK_XLP_PRIVATE_KEY must be a 32-byte hex string (got %d chars)", len(keyHex))
	}
	addr := os.Getenv("MOCK_XLP_ETH_ADDRESS")
	return &SigningKey{PrivateKeyHex: keyHex, EthAddressHex: addr}, nil
}

// fetchGRPC calls the signer vault to retrieve the signing key.
//
// Required env vars:
//
//	KEY_VAULT_HOST      host of the vault daemon  (default: 127.0.0.1)
//	KEY_VAULT_PORT      port of the vault daemon  (default: 9090)
//	KEY_VAULT_KEY_NAME  vault entry identifier
func fetchGRPC(ctx context.Context) (*SigningKey, error) {
	host := envOrDefault("KEY_VAULT_HOST", "127.0.0.1")
	port := envOrDefault("KEY_VAULT_PORT", "9090")
	keyName := os.Getenv("KEY_VAULT_KEY_NAME")
	target := host + ":" + port

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("keyvault: grpc dial %s: %w", target, err)
	}
	defer conn.Close()

	client := signerpb.NewSignerVaultClient(conn)
	resp, err := client.GetSigningKey(ctx, &signerpb.SigningKeyRequest{
		KeyName: keyName,
		KeyType: "ethereum",
	})
	if err != nil {
		return nil, fmt.Errorf("keyvault: GetSigningKey: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("keyvault: GetSigningKey failed: %s", resp.Message)
	}
	if len(resp.PrivateKey) == 0 {
		return nil, fmt.Errorf("keyvault: GetSigningKey returned empty private key")
	}

	privHex := hex.EncodeToString(resp.PrivateKey)
	ethAddr := "0x" + hex.EncodeToString(resp.EthAddress)

	return &SigningKey{PrivateKeyHex: privHex, EthAddressHex: ethAddr}, nil
}

func envOrDefault(key, dflt string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return dflt
}
