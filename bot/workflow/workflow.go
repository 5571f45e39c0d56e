// Package workflow drives the per-user conversations that create, edit and
// delete ads, keeping each stored ad in step with its channel post.
package workflow

import (
	"strings"

	"github.com/m3rciful/adboard/bot/ads"
)

// Kind names a multi-step workflow.
type Kind string

const (
	KindCreate Kind = "create"
	KindEdit   Kind = "edit"
)

// Stage is a point in a workflow waiting for one kind of input.
type Stage string

const (
	StageNone Stage = ""

	AwaitTitle       Stage = "await_title"
	AwaitDescription Stage = "await_description"
	AwaitPhoto       Stage = "await_photo"
	AwaitPrice       Stage = "await_price"
	AwaitConfirm     Stage = "await_confirm"

	SelectField         Stage = "select_field"
	AwaitNewTitle       Stage = "await_new_title"
	AwaitNewDescription Stage = "await_new_description"
	AwaitNewPhoto       Stage = "await_new_photo"
	AwaitNewPrice       Stage = "await_new_price"
	AwaitEditConfirm    Stage = "await_edit_confirm"

	Published Stage = "published"
	Applied   Stage = "applied"
	Declined  Stage = "declined"
	Cancelled Stage = "cancelled"
)

// Terminal reports whether the session ends at s.
func (s Stage) Terminal() bool {
	switch s {
	case Published, Applied, Declined, Cancelled:
		return true
	}
	return false
}

// Field is the single ad field an edit session overrides.
type Field int

const (
	FieldNone Field = iota
	FieldTitle
	FieldDescription
	FieldPhoto
	FieldPrice
)

var fieldNames = map[Field]string{
	FieldTitle:       "title",
	FieldDescription: "description",
	FieldPhoto:       "photo",
	FieldPrice:       "price",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "none"
}

// ParseField matches a field name or its menu label, ignoring case.
func ParseField(s string) (Field, bool) {
	s = strings.TrimSpace(s)
	for f, name := range fieldNames {
		if strings.EqualFold(s, name) {
			return f, true
		}
	}
	return FieldNone, false
}

// stage is where an edit session waits for the new value of f.
func (f Field) stage() Stage {
	switch f {
	case FieldTitle:
		return AwaitNewTitle
	case FieldDescription:
		return AwaitNewDescription
	case FieldPhoto:
		return AwaitNewPhoto
	case FieldPrice:
		return AwaitNewPrice
	}
	return StageNone
}

// apply copies the f part of override onto base.
func (f Field) apply(base, override ads.Fields) ads.Fields {
	switch f {
	case FieldTitle:
		base.Title = override.Title
	case FieldDescription:
		base.Description = override.Description
	case FieldPhoto:
		base.Photo = override.Photo
	case FieldPrice:
		base.Price = override.Price
	}
	return base
}

// Session is the transient state of one user's workflow.
type Session struct {
	Kind  Kind
	Stage Stage
	// Draft holds the accumulated fields while creating, or the override while editing.
	Draft  ads.Fields
	AdID   int64
	Target Field
	Handle string
}

// EventKind classifies inbound user events.
type EventKind int

const (
	EventStartCreate EventKind = iota + 1
	EventText
	EventPhoto
	EventSelectEdit
	EventSelectField
	EventDeleteAd
	EventListMine
	EventRegister
	EventCancel
)

var eventNames = map[EventKind]string{
	EventStartCreate: "start_create",
	EventText:        "text",
	EventPhoto:       "photo",
	EventSelectEdit:  "select_edit",
	EventSelectField: "select_field",
	EventDeleteAd:    "delete_ad",
	EventListMine:    "list_mine",
	EventRegister:    "register",
	EventCancel:      "cancel",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one user action already decoded from the transport.
type Event struct {
	Kind   EventKind
	UserID int64
	Handle string
	Text   string
	// Photo is a Telegram file id.
	Photo string
	AdID  int64
	Field Field
}

// EffectKind classifies outbound effects.
type EffectKind int

const (
	EffectPrompt EffectKind = iota + 1
	EffectShowAd
	EffectErrorNotice
)

// Effect is a message the transport should deliver to the user.
type Effect struct {
	Kind    EffectKind
	Text    string
	Options []string
	// Photo is an optional file id shown with a prompt.
	Photo string
	Ad    *ads.Ad
}

// Prompt asks the user for input, optionally restricted to a fixed menu.
func Prompt(text string, options ...string) Effect {
	return Effect{Kind: EffectPrompt, Text: text, Options: options}
}

// ShowAd renders one ad with edit and delete controls.
func ShowAd(ad ads.Ad) Effect {
	return Effect{Kind: EffectShowAd, Ad: &ad}
}

// ErrorNotice reports a failure.
func ErrorNotice(text string) Effect {
	return Effect{Kind: EffectErrorNotice, Text: text}
}

// Outcomes recorded in logs and metrics.
const (
	OutcomeStarted    = "started"
	OutcomeAdvanced   = "advanced"
	OutcomeRejected   = "rejected"
	OutcomePublished  = "published"
	OutcomeApplied    = "applied"
	OutcomeDeclined   = "declined"
	OutcomeCancelled  = "cancelled"
	OutcomeDeleted    = "deleted"
	OutcomeListed     = "listed"
	OutcomeRegistered = "registered"
	OutcomeNotFound   = "not_found"
	OutcomeIdle       = "idle"
	OutcomeFailed     = "fail"
)

// Result is what one event produced.
type Result struct {
	Kind Kind
	// Stage is the session stage after the event, or a terminal stage.
	Stage   Stage
	Outcome string
	AdID    int64
	Effects []Effect
}
