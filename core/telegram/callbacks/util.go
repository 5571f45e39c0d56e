package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse splits a callback into its unique key and payload.
// Raw data arrives as "\f<unique>|<payload>" when the callback reaches the generic OnCallback endpoint.
func Parse(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	key, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(key), payload
}

// CallbackKey returns the unique key of the current callback.
func CallbackKey(c tele.Context) string {
	key, _ := Parse(c.Callback())
	return key
}

// CallbackPayload returns the payload of the current callback.
func CallbackPayload(c tele.Context) string {
	_, payload := Parse(c.Callback())
	return payload
}
