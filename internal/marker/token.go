package marker

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "mirra-bridge"

// tokenClaims binds a marker's routing identity so hook processes can reject
// markers edited outside the bridge.
type tokenClaims struct {
	SessionID string `json:"sid"`
	GroupID   string `json:"gid"`
	MessageID string `json:"mid,omitempty"`
	jwt.RegisteredClaims
}

// signer signs and verifies marker tokens with a key derived from the
// machine secret.
type signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// newSigner derives an Ed25519 keypair from the machine secret.
func newSigner(machineSecret []byte) *signer {
	seed := sha256.Sum256(machineSecret)
	privateKey := ed25519.NewKeyFromSeed(seed[:])
	return &signer{
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
	}
}

// sign creates the integrity token for a marker.
func (s *signer) sign(m Marker) (string, error) {
	claims := tokenClaims{
		SessionID: m.SessionID,
		GroupID:   m.GroupID,
		MessageID: m.MessageID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// verify checks the token and that its claims match the marker fields.
func (s *signer) verify(m Marker) error {
	token, err := jwt.ParseWithClaims(m.Token, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return fmt.Errorf("failed to parse marker token: %w", err)
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid marker token")
	}
	if claims.SessionID != m.SessionID || claims.GroupID != m.GroupID || claims.MessageID != m.MessageID {
		return fmt.Errorf("marker token does not match marker contents")
	}
	return nil
}
