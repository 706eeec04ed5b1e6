package broker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skillswap/realtime/pkg/errors"
)

// Authenticator issues and verifies the short-lived connection
// credentials presented at websocket connect time. Each token is meant to
// be used exactly once; the short TTL limits the blast radius of a leak.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthenticator creates an authenticator with the given HMAC secret
func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue signs a credential bound to the given user identity
func (a *Authenticator) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeAuth, "TOKEN_SIGN", "failed to sign credential")
	}
	return signed, nil
}

// Verify validates a credential and returns the bound user identity
func (a *Authenticator) Verify(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New(errors.ErrorTypeAuth, "TOKEN_ALG", "unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeAuth, "TOKEN_INVALID", "invalid credential")
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New(errors.ErrorTypeAuth, "TOKEN_INVALID", "invalid credential")
	}
	return claims.Subject, nil
}

// TokenHandler serves the credential endpoint. The user identity comes
// from the ambient session; this reference broker reads it from the
// X-User-ID header the platform gateway sets after authentication.
func (a *Authenticator) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		token, err := a.Issue(userID)
		if err != nil {
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}
