// Package handlers turns telebot updates into workflow events and renders the results.
package handlers

import (
	"errors"
	"strconv"

	"github.com/m3rciful/adboard/bot/ads"
	"github.com/m3rciful/adboard/bot/workflow"
	tg "github.com/m3rciful/adboard/core/telegram"
	"github.com/m3rciful/adboard/core/telegram/callbacks"
	"github.com/m3rciful/adboard/core/telegram/format"
	tghelpers "github.com/m3rciful/adboard/core/telegram/helpers"
	"github.com/m3rciful/adboard/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Callback keys carried in inline buttons.
const (
	CallbackEdit   = "ad_edit"
	CallbackDelete = "ad_delete"
	CallbackField  = "ad_field"
	CallbackCancel = "ad_cancel"
)

const helpText = "Use \"Create ad\" to publish a listing and \"My ads\" to edit or delete yours.\n" +
	"/new starts a new ad, /my lists your ads, /cancel stops the current step."

// Handlers serves every ad related update.
type Handlers struct {
	machine *workflow.Machine
}

// New binds handlers to the machine.
func New(m *workflow.Machine) *Handlers {
	return &Handlers{machine: m}
}

// Register adds the commands, their menu aliases and the inline callbacks.
func (h *Handlers) Register(reg *tg.Registry) error {
	return errors.Join(
		reg.RegisterCommand("/start", tg.Command{Handler: h.Start, Description: "Register and show the menu"}),
		reg.RegisterCommand("/new", tg.Command{Handler: h.NewAd, Description: "Create an ad", Aliases: []string{workflow.LabelCreate}}),
		reg.RegisterCommand("/my", tg.Command{Handler: h.MyAds, Description: "List your ads", Aliases: []string{workflow.LabelMyAds}}),
		reg.RegisterCommand("/cancel", tg.Command{Handler: h.Cancel, Description: "Cancel the current step", Aliases: []string{workflow.LabelCancel}}),
		reg.RegisterCommand("/help", tg.Command{Handler: h.Help, Description: "How to use the bot"}),
		reg.RegisterCallback(CallbackEdit, h.EditAd),
		reg.RegisterCallback(CallbackDelete, h.DeleteAd),
		reg.RegisterCallback(CallbackField, h.PickField),
		reg.RegisterCallback(CallbackCancel, h.Cancel),
	)
}

// InProgress reports whether the user is inside a workflow.
func (h *Handlers) InProgress(userID int64) bool {
	return h.machine.InProgress(userID)
}

// HandleText feeds a text message to the running workflow.
func (h *Handlers) HandleText(c tele.Context) error {
	return h.handle(c, workflow.Event{Kind: workflow.EventText, Text: c.Text()})
}

// HandlePhoto feeds a photo to the running workflow. Telegram puts the largest size in Message.Photo.
func (h *Handlers) HandlePhoto(c tele.Context) error {
	ev := workflow.Event{Kind: workflow.EventPhoto}
	if msg := c.Message(); msg != nil && msg.Photo != nil {
		ev.Photo = msg.Photo.FileID
	}
	return h.handle(c, ev)
}

// Start registers the sender.
func (h *Handlers) Start(c tele.Context) error {
	return h.handle(c, workflow.Event{Kind: workflow.EventRegister})
}

// NewAd starts the creation workflow.
func (h *Handlers) NewAd(c tele.Context) error {
	return h.handle(c, workflow.Event{Kind: workflow.EventStartCreate})
}

// MyAds lists the sender's ads.
func (h *Handlers) MyAds(c tele.Context) error {
	return h.handle(c, workflow.Event{Kind: workflow.EventListMine})
}

// Cancel drops the running workflow.
func (h *Handlers) Cancel(c tele.Context) error {
	return h.handle(c, workflow.Event{Kind: workflow.EventCancel})
}

// Help explains the menu.
func (h *Handlers) Help(c tele.Context) error {
	return tghelpers.SendText(c, helpText, keyboard.ReplyGrid(workflow.MainMenu, 2))
}

// Idle answers text outside any workflow.
func (h *Handlers) Idle(c tele.Context) error {
	return tghelpers.SendText(c, "Choose an action from the menu.", keyboard.ReplyGrid(workflow.MainMenu, 2))
}

// EditAd opens an edit session for the ad in the callback payload.
func (h *Handlers) EditAd(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	return h.handle(c, workflow.Event{Kind: workflow.EventSelectEdit, AdID: id})
}

// DeleteAd deletes the ad in the callback payload.
func (h *Handlers) DeleteAd(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	return h.handle(c, workflow.Event{Kind: workflow.EventDeleteAd, AdID: id})
}

// PickField selects the field to edit from an inline button.
func (h *Handlers) PickField(c tele.Context) error {
	f, _ := workflow.ParseField(callbacks.CallbackPayload(c))
	return h.handle(c, workflow.Event{Kind: workflow.EventSelectField, Field: f})
}

func (h *Handlers) handle(c tele.Context, ev workflow.Event) error {
	ev.UserID = tghelpers.SenderID(c)
	ev.Handle = tghelpers.SenderHandle(c)
	ctx := tghelpers.BuildContext(c)

	res, err := h.machine.Handle(ctx, ev)
	if rerr := render(c, res); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

func render(c tele.Context, res workflow.Result) error {
	for _, e := range res.Effects {
		var err error
		switch e.Kind {
		case workflow.EffectShowAd:
			err = sendAd(c, *e.Ad)
		case workflow.EffectPrompt:
			if res.Stage == workflow.SelectField {
				err = tghelpers.SendText(c, e.Text, fieldKeyboard())
				break
			}
			err = send(c, e.Photo, e.Text, keyboard.ReplyGrid(e.Options, 2))
		case workflow.EffectErrorNotice:
			err = send(c, "", e.Text, keyboard.ReplyGrid(e.Options, 2))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func send(c tele.Context, photo, text string, markup *tele.ReplyMarkup) error {
	if photo != "" {
		return tghelpers.SendPhoto(c, photo, format.Truncate(text, format.CaptionLimit), markup)
	}
	return tghelpers.SendText(c, format.Truncate(text, format.MessageLimit), markup)
}

func sendAd(c tele.Context, ad ads.Ad) error {
	id := strconv.FormatInt(ad.ID, 10)
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Edit", Unique: CallbackEdit, Data: id},
		{Text: "Delete", Unique: CallbackDelete, Data: id},
	})
	return send(c, ad.Photo, ads.Caption(ad.Fields), markup)
}

func fieldKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "Title", Unique: CallbackField, Data: workflow.FieldTitle.String()},
			{Text: "Description", Unique: CallbackField, Data: workflow.FieldDescription.String()},
		},
		[]keyboard.InlineBtn{
			{Text: "Photo", Unique: CallbackField, Data: workflow.FieldPhoto.String()},
			{Text: "Price", Unique: CallbackField, Data: workflow.FieldPrice.String()},
		},
		[]keyboard.InlineBtn{
			{Text: workflow.LabelCancel, Unique: CallbackCancel},
		},
	)
}
