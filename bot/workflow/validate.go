package workflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidationError rejects one input; the stage is re-prompted and nothing is stored.
type ValidationError struct {
	Field  Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Notice is the text shown to the user.
func (e *ValidationError) Notice() string {
	switch e.Field {
	case FieldPrice:
		return "Please enter the price as a non-negative number, for example 150 or 99.90."
	case FieldTitle:
		return "The title cannot be empty."
	}
	return "Invalid input."
}

const (
	reasonEmpty    = "empty"
	reasonNotNum   = "not a number"
	reasonNegative = "negative"
)

func isSkip(text string) bool {
	t := strings.TrimSpace(text)
	return strings.EqualFold(t, LabelSkip) || strings.EqualFold(t, "/skip")
}

func parseTitle(text string) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", &ValidationError{Field: FieldTitle, Reason: reasonEmpty}
	}
	return t, nil
}

// parseDescription maps the skip sentinel to an empty description.
func parseDescription(text string) (string, error) {
	if isSkip(text) {
		return "", nil
	}
	return strings.TrimSpace(text), nil
}

// parsePrice accepts a plain decimal number, with "," allowed as the
// decimal separator, and rounds it to cents.
func parsePrice(text string) (float64, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0, &ValidationError{Field: FieldPrice, Reason: reasonEmpty}
	}
	t = strings.Replace(t, ",", ".", 1)
	if !isDecimal(t) {
		return 0, &ValidationError{Field: FieldPrice, Reason: reasonNotNum}
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Field: FieldPrice, Reason: reasonNotNum}
	}
	if v < 0 {
		return 0, &ValidationError{Field: FieldPrice, Reason: reasonNegative}
	}
	rounded := math.Round(v*100) / 100
	if math.IsInf(rounded, 0) {
		rounded = v
	}
	if rounded == 0 {
		rounded = 0 // drops a negative zero
	}
	return rounded, nil
}

// isDecimal reports whether s is an optionally signed run of digits with at
// most one ".", e.g. "150", "99.90", ".5" or "-5". Hex, exponent and
// underscore forms are rejected.
func isDecimal(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "+"), "-")
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// choice is a confirm-stage answer.
type choice int

const (
	choiceNone choice = iota
	choiceConfirm
	choiceDecline
)

func parseChoice(text string) choice {
	switch t := strings.TrimSpace(text); {
	case strings.EqualFold(t, LabelConfirm):
		return choiceConfirm
	case strings.EqualFold(t, LabelDecline):
		return choiceDecline
	}
	return choiceNone
}

// IsCancel reports whether text asks to abandon the running workflow.
func IsCancel(text string) bool {
	t := strings.TrimSpace(text)
	return strings.EqualFold(t, LabelCancel) || strings.EqualFold(t, "/cancel")
}
