// Package format holds plain-text helpers for Telegram message bodies.
package format

import (
	"strconv"
	"unicode/utf8"
)

const (
	// CaptionLimit is the maximum caption length Telegram accepts for media, in characters.
	CaptionLimit = 1024
	// MessageLimit is the maximum text message length, in characters.
	MessageLimit = 4096
)

// Price renders a number with the shortest exact representation, so 150 prints as "150" and 12.5 as "12.5".
func Price(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Truncate cuts s to at most limit runes, replacing the tail with an ellipsis when shortened.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
