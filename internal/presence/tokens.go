package presence

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuerName = "constructa-presence"
	roomAudience    = "constructa-presence-room"
	sessionAudience = "constructa-presence-session"
	defaultTokenTTL = 24 * time.Hour
)

var (
	errMissingSigningSecret = errors.New("presence: signing secret must be provided")
	errMissingTokenSubject  = errors.New("presence: token subject must be provided")
)

// TokenIssuerConfig configures the presence token signer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer mints and validates the opaque room and session tokens the
// presence API hands back from heartbeats. Room tokens authorize roster
// reads for one room; session tokens authorize disconnecting one session.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

func NewTokenIssuer(cfg TokenIssuerConfig) *TokenIssuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{secret: cfg.SigningSecret, ttl: ttl, clock: clock}
}

// IssueRoomToken signs a token whose subject is the room identifier.
func (i *TokenIssuer) IssueRoomToken(roomID string) (string, error) {
	return i.issue(roomID, roomAudience)
}

// ValidateRoomToken returns the room identifier carried by the token.
func (i *TokenIssuer) ValidateRoomToken(token string) (string, error) {
	return i.validate(token, roomAudience)
}

// IssueSessionToken signs a token whose subject is the stored presence
// session row identifier.
func (i *TokenIssuer) IssueSessionToken(sessionRowID string) (string, error) {
	return i.issue(sessionRowID, sessionAudience)
}

// ValidateSessionToken returns the presence session row identifier carried
// by the token.
func (i *TokenIssuer) ValidateSessionToken(token string) (string, error) {
	return i.validate(token, sessionAudience)
}

func (i *TokenIssuer) issue(subject, audience string) (string, error) {
	if len(i.secret) == 0 {
		return "", errMissingSigningSecret
	}
	if subject == "" {
		return "", errMissingTokenSubject
	}

	now := i.clock().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuerName,
		Audience:  []string{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *TokenIssuer) validate(tokenString, audience string) (string, error) {
	if len(i.secret) == 0 {
		return "", errMissingSigningSecret
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.secret, nil
		},
		jwt.WithAudience(audience),
		jwt.WithIssuer(tokenIssuerName),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingTokenSubject
	}
	return claims.Subject, nil
}
