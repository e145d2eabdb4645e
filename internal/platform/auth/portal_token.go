package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const portalTokenPrefix = "rugtrack_portal_v1"

var (
	ErrPortalTokenInvalid = errors.New("portal token is invalid")
	ErrPortalTokenExpired = errors.New("portal token is expired")
)

// PortalTokenClaims binds a client portal session to a single job within a
// single company. A portal token never grants access beyond that job.
type PortalTokenClaims struct {
	TenantID      string `json:"tenant_id"`
	JobID         string `json:"job_id"`
	Email         string `json:"email,omitempty"`
	IssuedAtUnix  int64  `json:"iat"`
	ExpiresAtUnix int64  `json:"exp"`
}

func PortalTokenSubject(claims PortalTokenClaims) string {
	subject := "portal:" + strings.TrimSpace(claims.JobID)
	if strings.TrimSpace(claims.Email) != "" {
		subject += ":" + strings.TrimSpace(claims.Email)
	}
	return subject
}

func ParsePortalTokenSubject(subject string) (jobID string, email string, ok bool) {
	subject = strings.TrimSpace(subject)
	if !strings.HasPrefix(subject, "portal:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(subject, "portal:")
	parts := strings.SplitN(rest, ":", 2)
	jobID = strings.TrimSpace(parts[0])
	if jobID == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		email = strings.TrimSpace(parts[1])
	}
	return jobID, email, true
}

func GeneratePortalToken(secret string, claims PortalTokenClaims, now time.Time) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errors.New("secret is required")
	}
	claims.TenantID = strings.TrimSpace(claims.TenantID)
	claims.JobID = strings.TrimSpace(claims.JobID)
	claims.Email = strings.TrimSpace(claims.Email)
	if claims.TenantID == "" {
		return "", errors.New("tenant_id is required")
	}
	if claims.JobID == "" {
		return "", errors.New("job_id is required")
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	if claims.IssuedAtUnix == 0 {
		claims.IssuedAtUnix = now.UTC().Unix()
	}
	if claims.ExpiresAtUnix == 0 {
		return "", errors.New("exp is required")
	}
	if claims.ExpiresAtUnix <= now.UTC().Unix() {
		return "", errors.New("exp must be in the future")
	}

	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadJSON)
	sigB64, err := computePortalTokenSignature(secret, payloadB64)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{portalTokenPrefix, payloadB64, sigB64}, "."), nil
}

func VerifyPortalToken(secret string, token string, now time.Time) (PortalTokenClaims, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return PortalTokenClaims{}, errors.New("secret is required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}
	if parts[0] != portalTokenPrefix {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}
	payloadB64 := strings.TrimSpace(parts[1])
	sigB64 := strings.TrimSpace(parts[2])
	if payloadB64 == "" || sigB64 == "" {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}

	expectedB64, err := computePortalTokenSignature(secret, payloadB64)
	if err != nil {
		return PortalTokenClaims{}, err
	}
	expectedSig, err := base64.RawURLEncoding.DecodeString(expectedB64)
	if err != nil {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}
	gotSig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}
	if !hmac.Equal(expectedSig, gotSig) {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}
	var claims PortalTokenClaims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}
	claims.TenantID = strings.TrimSpace(claims.TenantID)
	claims.JobID = strings.TrimSpace(claims.JobID)
	claims.Email = strings.TrimSpace(claims.Email)
	if claims.TenantID == "" || claims.JobID == "" || claims.ExpiresAtUnix == 0 {
		return PortalTokenClaims{}, ErrPortalTokenInvalid
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	if claims.ExpiresAtUnix <= now.UTC().Unix() {
		return PortalTokenClaims{}, ErrPortalTokenExpired
	}

	return claims, nil
}

func computePortalTokenSignature(secret string, payloadB64 string) (string, error) {
	payloadB64 = strings.TrimSpace(payloadB64)
	if payloadB64 == "" {
		return "", errors.New("payload is required")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write([]byte("rugtrack-portal-token-v1\n")); err != nil {
		return "", err
	}
	if _, err := mac.Write([]byte(payloadB64)); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}
