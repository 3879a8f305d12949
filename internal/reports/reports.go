// Package reports holds the submission-side domain rules: input
// validation, text sanitization, folio generation and the report state
// machine.
package reports

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zombar/denuncias/internal/models"
)

// Category and message bounds, in runes of the trimmed input.
const (
	minCategoryLength = 3
	maxCategoryLength = 50
	maxMessageLength  = 1000
)

// Validation failures are returned verbatim to the submitter, so the
// messages are Spanish like the rest of the domain vocabulary.
var (
	ErrEmptyCategory    = errors.New("la categoría no puede estar vacía")
	ErrCategoryTooShort = fmt.Errorf("la categoría debe tener al menos %d caracteres", minCategoryLength)
	ErrCategoryTooLong  = fmt.Errorf("la categoría no puede exceder %d caracteres", maxCategoryLength)
	ErrCategoryCharset  = errors.New("la categoría solo puede contener letras y espacios")
	ErrMessageTooLong   = fmt.Errorf("el mensaje no puede exceder %d caracteres", maxMessageLength)
	ErrBlankMessage     = errors.New("el mensaje no puede contener solo espacios")
)

var (
	reCategoryChars = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑ\s]+$`)
	reWhitespace    = regexp.MustCompile(`\s+`)
	reUnsafeChars   = regexp.MustCompile(`[<>"'\\\x00-\x1f\x7f-\x9f]`)
)

// ValidateCategory checks the free-form category label of a submission.
func ValidateCategory(categoria string) error {
	trimmed := strings.TrimSpace(categoria)
	if trimmed == "" {
		return ErrEmptyCategory
	}
	n := utf8.RuneCountInString(trimmed)
	if n < minCategoryLength {
		return ErrCategoryTooShort
	}
	if n > maxCategoryLength {
		return ErrCategoryTooLong
	}
	if !reCategoryChars.MatchString(trimmed) {
		return ErrCategoryCharset
	}
	return nil
}

// ValidateMessage checks an optional message body. Empty is allowed,
// blank-only and overlong messages are not.
func ValidateMessage(mensaje string) error {
	if mensaje == "" {
		return nil
	}
	trimmed := strings.TrimSpace(mensaje)
	if trimmed == "" {
		return ErrBlankMessage
	}
	if utf8.RuneCountInString(trimmed) > maxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// Validate runs both submission checks.
func Validate(categoria, mensaje string) error {
	if err := ValidateCategory(categoria); err != nil {
		return err
	}
	return ValidateMessage(mensaje)
}

// Sanitize collapses whitespace and strips control characters and
// markup-dangerous punctuation. Accents and ñ survive.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	clean := reWhitespace.ReplaceAllString(strings.TrimSpace(text), " ")
	return reUnsafeChars.ReplaceAllString(clean, "")
}

// NewFolio issues an anonymous report identifier. The folio reveals
// nothing about the submitter: it hashes a millisecond timestamp and a
// random UUID.
func NewFolio() string {
	seed := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString())
	sum := sha256.Sum256([]byte(seed))
	return "DEN_" + strings.ToUpper(hex.EncodeToString(sum[:8]))
}

// New assembles a fresh report in estado nueva with a sanitized message
// and a newly issued folio.
func New(categoria, mensaje string) models.Report {
	now := time.Now().UTC()
	return models.Report{
		Folio:     NewFolio(),
		Categoria: strings.TrimSpace(categoria),
		Mensaje:   Sanitize(mensaje),
		Estado:    models.StatusNueva,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// statusOrder fixes the forward direction of the report lifecycle.
var statusOrder = map[string]int{
	models.StatusNueva:     0,
	models.StatusRevisada:  1,
	models.StatusEnProceso: 2,
	models.StatusResuelta:  3,
	models.StatusArchivada: 4,
}

var statusDescriptions = map[string]string{
	models.StatusNueva:     "Denuncia recibida, pendiente de revisión",
	models.StatusRevisada:  "Denuncia revisada por el equipo",
	models.StatusEnProceso: "Denuncia en proceso de investigación",
	models.StatusResuelta:  "Denuncia resuelta",
	models.StatusArchivada: "Denuncia archivada",
}

// ValidStatus reports whether s names a known report state.
func ValidStatus(s string) bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransition reports whether a report may move between two states.
// States only move forward; any active state may be archived, and
// archived reports never leave that state.
func CanTransition(from, to string) bool {
	f, okFrom := statusOrder[from]
	t, okTo := statusOrder[to]
	if !okFrom || !okTo {
		return false
	}
	if from == models.StatusArchivada {
		return false
	}
	return t > f
}

// StatusDescription returns the Spanish description shown for a state.
func StatusDescription(s string) string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}
	return "Estado desconocido"
}

// StatusNames returns the lifecycle states in forward order.
func StatusNames() []string {
	return []string{
		models.StatusNueva,
		models.StatusRevisada,
		models.StatusEnProceso,
		models.StatusResuelta,
		models.StatusArchivada,
	}
}
