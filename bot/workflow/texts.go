package workflow

import (
	"fmt"
	"strings"

	"github.com/m3rciful/adboard/bot/ads"
	"github.com/m3rciful/adboard/core/telegram/format"
)

// Menu labels. Matching is case-insensitive.
const (
	LabelCreate  = "Create ad"
	LabelMyAds   = "My ads"
	LabelConfirm = "Confirm"
	LabelDecline = "Decline"
	LabelCancel  = "Cancel"
	LabelSkip    = "Skip"
)

// MainMenu is offered whenever no workflow is running.
var MainMenu = []string{LabelCreate, LabelMyAds}

var (
	confirmMenu = []string{LabelConfirm, LabelDecline}
	fieldMenu   = []string{"Title", "Description", "Photo", "Price", LabelCancel}
)

const (
	textRegistered        = "You are registered!"
	textAlreadyRegistered = "You are already registered."
	textNoAds             = "You have no ads."
	textPublished         = "Your ad has been published!"
	textCreateDeclined    = "Ad discarded."
	textApplied           = "Changes saved."
	textEditDeclined      = "Changes discarded."
	textCancelled         = "Cancelled."
	textNothingToCancel   = "Nothing to cancel."
	textIdle              = "Choose an action from the menu."
	textDeleted           = "Ad deleted."
	textAdNotFound        = "Ad not found."
	textChooseConfirm     = "Please choose Confirm or Decline."
	textChooseField       = "Please choose one of the fields."
	textPhotoExpected     = "Please send a photo."
)

func prompt(stage Stage, s Session) Effect {
	switch stage {
	case AwaitTitle:
		return Prompt("Enter the ad title:", LabelCancel)
	case AwaitDescription:
		return Prompt("Enter the ad description, or Skip:", LabelSkip, LabelCancel)
	case AwaitPhoto:
		return Prompt("Send a photo for the ad, or Skip to post without one:", LabelSkip, LabelCancel)
	case AwaitPrice:
		return Prompt("Enter the ad price:", LabelCancel)
	case AwaitConfirm:
		e := Prompt(summary(s.Draft)+"\n\nPublish?", confirmMenu...)
		e.Photo = s.Draft.Photo
		return e
	case SelectField:
		return Prompt("What do you want to change?", fieldMenu...)
	case AwaitNewTitle:
		return Prompt("Enter the new title:", LabelCancel)
	case AwaitNewDescription:
		return Prompt("Enter the new description, or Skip to clear it:", LabelSkip, LabelCancel)
	case AwaitNewPhoto:
		return Prompt("Send the new photo:", LabelCancel)
	case AwaitNewPrice:
		return Prompt("Enter the new price:", LabelCancel)
	case AwaitEditConfirm:
		return Prompt(editSummary(s)+"\n\nSave changes?", confirmMenu...)
	}
	return Prompt(textIdle, MainMenu...)
}

func summary(f ads.Fields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", f.Title)
	if f.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", f.Description)
	}
	if f.Photo == "" {
		b.WriteString("Photo: none\n")
	}
	fmt.Fprintf(&b, "Price: %s", format.Price(f.Price))
	return b.String()
}

func editSummary(s Session) string {
	switch s.Target {
	case FieldTitle:
		return "New title: " + s.Draft.Title
	case FieldDescription:
		if s.Draft.Description == "" {
			return "The description will be cleared."
		}
		return "New description: " + s.Draft.Description
	case FieldPhoto:
		return "The photo will be replaced."
	case FieldPrice:
		return "New price: " + format.Price(s.Draft.Price)
	}
	return ""
}

func failure(action string, err error) string {
	return fmt.Sprintf("Could not %s: %v", action, err)
}
