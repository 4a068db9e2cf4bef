// ABOUTME: Tenant credential generation and verification for bearer-token auth.
// ABOUTME: Credentials are stored in cleartext (see spec §9 open question 3) — a known, flagged weakness, not an oversight.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// CredentialPrefix is the human-readable prefix on every generated
// fluxqueue tenant credential.
const CredentialPrefix = "fq_"

// GenerateCredential creates a new bearer token for a tenant, shaped
// "<tenant_id>:fq_<random>" so the credential alone is enough to locate
// the tenant row by primary key before the constant-time comparison.
// Returns the raw token shown to the operator once; the store persists
// it verbatim (spec: "the source stores it in cleartext").
func GenerateCredential(tenantID string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate credential: %w", err)
	}
	secret := CredentialPrefix + hex.EncodeToString(b)
	return tenantID + ":" + secret, nil
}

// ParseCredential splits a bearer token into its tenant id and secret
// halves. The secret half, not the whole token, is what gets compared
// against the stored row.
func ParseCredential(token string) (tenantID, secret string, ok bool) {
	tenantID, secret, found := strings.Cut(token, ":")
	if !found || tenantID == "" || secret == "" {
		return "", "", false
	}
	return tenantID, secret, true
}

// Verify reports whether secret matches the tenant's stored credential
// secret half, in constant time. stored is the full "tenant_id:secret"
// value persisted on the tenants row.
func Verify(stored, secret string) bool {
	_, storedSecret, ok := ParseCredential(stored)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedSecret), []byte(secret)) == 1
}
