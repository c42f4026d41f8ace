package extraction

import (
	"regexp"
	"strings"
	"time"

	"github.com/treinacnh/backend/internal/utils"
)

// keyFieldCount is the number of key fields the confidence heuristic is
// scored over: registration number, CPF, full name, expiry date.
const keyFieldCount = 4

var (
	// 11 contiguous digits: CNH registration number candidates
	registrationRe = regexp.MustCompile(`\b(\d{11})\b`)
	// CPF with explicit dot/dash formatting
	cpfFormattedRe = regexp.MustCompile(`\b(\d{3}\.\d{3}\.\d{3}-\d{2})\b`)
	// CPF directly after its label, formatting optional
	cpfLabeledRe = regexp.MustCompile(`(?:CPF|cpf)\s*[:.\-]?\s*(\d{3}\.?\d{3}\.?\d{3}-?\d{2})`)
	// uppercase run after the name label
	nameRe = regexp.MustCompile(`(?:NOME|Nome|nome)\s*[:\-]?\s*([A-ZÀ-Ü][A-ZÀ-Ü ]+)`)
	// DD/MM/YYYY after the validity label
	validityRe = regexp.MustCompile(`(?:VALIDADE|Validade|validade)\s*[:\-]?\s*(\d{2}/\d{2}/\d{4})`)
)

// Fields holds the structured candidates parsed out of raw OCR text. Every
// field is nil when its pattern did not match; a miss on one field never
// affects the others.
type Fields struct {
	CNHNumber *string
	CPF       *string
	FullName  *string
	Expiry    *time.Time

	// Confidence is 100 * found / 4 over the four key fields. It is a
	// coarse completeness heuristic, not a calibrated probability.
	Confidence int
}

// ParseFields extracts candidate fields from raw OCR text. Deterministic:
// the same text always yields the same fields and confidence.
func ParseFields(text string) Fields {
	var f Fields
	found := 0

	cpf := parseCPF(text)
	if cpf != "" {
		f.CPF = &cpf
		found++
	}

	if cnh := parseRegistration(text, cpf); cnh != "" {
		f.CNHNumber = &cnh
		found++
	}

	if m := nameRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		if len(name) >= 3 {
			f.FullName = &name
			found++
		}
	}

	if m := validityRe.FindStringSubmatch(text); m != nil {
		if ts, err := time.Parse("02/01/2006", m[1]); err == nil {
			f.Expiry = &ts
			found++
		}
	}

	f.Confidence = 100 * found / keyFieldCount
	return f
}

// parseCPF prefers an explicitly labeled number, then a dot/dash formatted
// one. A candidate whose normalized form is not exactly 11 digits is
// treated the same as no match.
func parseCPF(text string) string {
	if m := cpfLabeledRe.FindStringSubmatch(text); m != nil {
		if d := utils.DigitsOnly(m[1]); len(d) == 11 {
			return d
		}
	}
	if m := cpfFormattedRe.FindStringSubmatch(text); m != nil {
		if d := utils.DigitsOnly(m[1]); len(d) == 11 {
			return d
		}
	}
	return ""
}

// parseRegistration picks the first bare 11-digit run that is not the CPF.
// CNH registration numbers and CPFs share the same shape, so the CPF value
// is excluded to avoid reporting one number twice.
func parseRegistration(text, cpf string) string {
	for _, m := range registrationRe.FindAllStringSubmatch(text, -1) {
		if m[1] != cpf {
			return m[1]
		}
	}
	return ""
}
