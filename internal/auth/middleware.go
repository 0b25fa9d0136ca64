package auth

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Auth header names shared by the service and its clients.
const (
	HeaderWalletAddress = "X-Wallet-Address"
	HeaderSignedMessage = "X-Signed-Message"
	HeaderSignature     = "X-Wallet-Signature"
)

const (
	ctxWalletKey = "wallet_address"
	ctxSignedKey = "signed_request"

	nonceKeyPrefix  = "auth:nonce:"
	maxFutureWindow = 5 * time.Minute
)

// SignedRequest is the JSON payload inside X-Signed-Message (fields
// sorted so clients produce one canonical encoding).
type SignedRequest struct {
	Action     string          `json:"action"`
	ExpiresAt  int64           `json:"expires_at"`
	Nonce      string          `json:"nonce"`
	Payload    json.RawMessage `json:"payload"`
	ResourceID string          `json:"resource_id"`
}

// Verifier validates EIP-191 signed requests. Nonces are deduplicated
// through redis so each signed message is accepted exactly once.
type Verifier struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewVerifier(rdb *redis.Client, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{rdb: rdb, log: log}
}

// Middleware rejects requests without a valid, unexpired, unreplayed
// wallet signature and stores the caller identity on the context.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		walletAddr := c.GetHeader(HeaderWalletAddress)
		signedMsgB64 := c.GetHeader(HeaderSignedMessage)
		sigHex := c.GetHeader(HeaderSignature)

		if walletAddr == "" || signedMsgB64 == "" || sigHex == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing auth headers"})
			return
		}

		msgBytes, err := base64.StdEncoding.DecodeString(signedMsgB64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid X-Signed-Message encoding"})
			return
		}

		var req SignedRequest
		if err := json.Unmarshal(msgBytes, &req); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signed message JSON"})
			return
		}

		now := time.Now().Unix()
		if req.ExpiresAt <= now {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "request expired"})
			return
		}
		if req.ExpiresAt > now+int64(maxFutureWindow.Seconds()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "expires_at too far in future"})
			return
		}

		sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature hex"})
			return
		}

		recovered, err := Recover(msgBytes, sig)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		if !strings.EqualFold(recovered.Hex(), walletAddr) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		// Nonce dedup via Redis SET NX, expiring with the message.
		ttl := time.Duration(req.ExpiresAt-now) * time.Second
		set, err := v.rdb.SetNX(context.Background(), nonceKeyPrefix+req.Nonce, 1, ttl).Result()
		if err != nil {
			v.log.Error("auth nonce check failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !set {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "nonce already used"})
			return
		}

		c.Set(ctxWalletKey, recovered)
		c.Set(ctxSignedKey, req)
		c.Next()
	}
}

// RequireAction gates a route on the action named inside the signed
// message, so a signature for one operation cannot drive another.
func RequireAction(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := Signed(c)
		if !ok || req.Action != action {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "action mismatch"})
			return
		}
		c.Next()
	}
}

// Wallet returns the authenticated caller set by Middleware.
func Wallet(c *gin.Context) (common.Address, bool) {
	val, ok := c.Get(ctxWalletKey)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := val.(common.Address)
	return addr, ok
}

// Signed returns the decoded signed message set by Middleware.
func Signed(c *gin.Context) (SignedRequest, bool) {
	val, ok := c.Get(ctxSignedKey)
	if !ok {
		return SignedRequest{}, false
	}
	req, ok := val.(SignedRequest)
	return req, ok
}
