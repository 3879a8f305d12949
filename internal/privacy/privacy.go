// Package privacy derives opaque handles for reports so they can be
// logged, audited and integrity-checked without exposing their content
// or anything about the submitter.
package privacy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zombar/denuncias/internal/models"
	"github.com/zombar/denuncias/internal/reports"
)

// Sealer hashes report material together with a secret salt. Two sealers
// with different salts produce incompatible hashes on purpose.
type Sealer struct {
	salt string
}

// NewSealer creates a sealer with a random salt. Signatures from this
// sealer cannot be verified after a restart; supply a configured salt
// through NewSealerWithSalt when that matters.
func NewSealer() (*Sealer, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &Sealer{salt: hex.EncodeToString(buf)}, nil
}

// NewSealerWithSalt fixes the salt so signatures stay verifiable across
// process restarts.
func NewSealerWithSalt(salt string) *Sealer {
	return &Sealer{salt: salt}
}

// ContentHash returns a stable opaque handle for a message, usable in
// logs and audits instead of the text itself. Whitespace differences do
// not change the hash. Empty input hashes to the empty string.
func (s *Sealer) ContentHash(text string) string {
	if text == "" {
		return ""
	}
	clean := reports.Sanitize(text)
	sum := sha256.Sum256([]byte(clean + "_" + s.salt))
	return "HASH_" + hex.EncodeToString(sum[:8])
}

// Signature computes the integrity signature over the non-sensitive
// facts of a report: its category, creation time and message length.
// The message itself never enters the hash.
func (s *Sealer) Signature(categoria string, createdAt time.Time, messageLen int) string {
	payload := strings.Join([]string{
		categoria,
		createdAt.UTC().Format(time.RFC3339),
		strconv.Itoa(messageLen),
		s.salt,
	}, "_")
	sum := sha256.Sum256([]byte(payload))
	return "FIRMA_" + hex.EncodeToString(sum[:10])
}

// SignReport computes the report's integrity signature.
func (s *Sealer) SignReport(r models.Report) string {
	return s.Signature(r.Categoria, r.CreatedAt, utf8.RuneCountInString(r.Mensaje))
}

// VerifyReport reports whether the stored signature still matches the
// report's fields.
func (s *Sealer) VerifyReport(r models.Report) bool {
	return r.Firma != "" && r.Firma == s.SignReport(r)
}

// forbiddenFields are submission keys that would break anonymity.
var forbiddenFields = []string{
	"ip_address", "user_id", "email", "nombre", "apellido",
	"telefono", "direccion", "documento", "session_id",
	"browser_info", "device_id", "mac_address",
}

// ForbiddenField returns the first submission key that would identify
// the submitter, or "" when the payload is clean.
func ForbiddenField(fields map[string]json.RawMessage) string {
	for _, k := range forbiddenFields {
		if _, ok := fields[k]; ok {
			return k
		}
	}
	return ""
}
