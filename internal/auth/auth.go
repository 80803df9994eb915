package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid management token")
	ErrTokenExpired = errors.New("management token expired")
)

// ManagementClaims identifies the tournament a token was issued for.
type ManagementClaims struct {
	TournamentID int64
	ExpiresAt    time.Time
}

type contextKey string

const claimsKey contextKey = "management"

// managementTokenPayload is the JSON payload embedded in a management token.
type managementTokenPayload struct {
	Tournament int64 `json:"tid"`
	Exp        int64 `json:"exp"`
}

// Tokens issues and verifies management tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) sign(payloadB64 string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(payloadB64))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue creates an HMAC-signed token bound to one tournament.
// Format: mgmt.<base64url(json-payload)>.<base64url(hmac-sha256)>
func (t *Tokens) Issue(tournamentID int64) (string, error) {
	payload := managementTokenPayload{
		Tournament: tournamentID,
		Exp:        t.now().Add(t.ttl).Unix(),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadBytes)
	return "mgmt." + payloadB64 + "." + t.sign(payloadB64), nil
}

// Validate verifies and decodes a management token.
func (t *Tokens) Validate(token string) (*ManagementClaims, error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || parts[0] != "mgmt" {
		return nil, fmt.Errorf("%w: bad format", ErrInvalidToken)
	}
	payloadB64, sigB64 := parts[1], parts[2]

	if !hmac.Equal([]byte(sigB64), []byte(t.sign(payloadB64))) {
		return nil, fmt.Errorf("%w: bad signature", ErrInvalidToken)
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad payload", ErrInvalidToken)
	}
	var payload managementTokenPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("%w: bad payload", ErrInvalidToken)
	}
	if t.now().Unix() > payload.Exp {
		return nil, ErrTokenExpired
	}

	return &ManagementClaims{
		TournamentID: payload.Tournament,
		ExpiresAt:    time.Unix(payload.Exp, 0).UTC(),
	}, nil
}

// GenerateSecret creates a random hex secret for signing tokens when none is
// configured. Tokens do not survive a restart in that case.
func GenerateSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GetClaims extracts the management claims placed by RequireManagement.
func GetClaims(ctx context.Context) *ManagementClaims {
	claims, _ := ctx.Value(claimsKey).(*ManagementClaims)
	return claims
}

func forbidden(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RequireManagement returns 403 unless the request carries a valid bearer
// token for the tournament named by the {id} path value. When enabled is
// false requests pass through untouched.
func RequireManagement(tokens *Tokens, enabled bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if !enabled {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				forbidden(w, "missing management token")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				forbidden(w, "invalid authorization format, use Bearer token")
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				forbidden(w, err.Error())
				return
			}
			id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
			if err != nil || id != claims.TournamentID {
				forbidden(w, "management token is for another tournament")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next(w, r.WithContext(ctx))
		}
	}
}
