package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// HeaderRunID carries the run id on workflow endpoint requests.
	HeaderRunID = "Workflow-Run-Id"
	// HeaderSignature carries the signed request token.
	HeaderSignature = "Workflow-Signature"

	signatureTTL = 5 * time.Minute
)

// ErrInvalidSignature is returned when a workflow request token does not match its run or body.
var ErrInvalidSignature = errors.New("invalid workflow signature")

type requestClaims struct {
	BodySHA256 string `json:"body_sha256"`
	jwt.RegisteredClaims
}

// Signer signs and verifies workflow endpoint requests with an HS256 token
// binding the run id (subject) to the body hash.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Enabled reports whether a signing secret is configured.
func (s *Signer) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Sign returns the signature token for runID and body.
func (s *Signer) Sign(runID string, body []byte, now time.Time) (string, error) {
	claims := requestClaims{
		BodySHA256: bodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   runID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(signatureTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign workflow request: %w", err)
	}
	return signed, nil
}

// Verify checks tokenString against runID and body.
func (s *Signer) Verify(tokenString, runID string, body []byte) error {
	if tokenString == "" {
		return ErrInvalidSignature
	}
	claims := &requestClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidSignature
	}
	if claims.Subject != runID || claims.BodySHA256 != bodyHash(body) {
		return ErrInvalidSignature
	}
	return nil
}
