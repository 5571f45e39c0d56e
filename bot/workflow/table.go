package workflow

import (
	"context"
	"errors"
	"fmt"
)

type stepKey struct {
	stage Stage
	event EventKind
}

// reply is what a step decided. A terminal stage clears the session, then
// commit, if set, runs outside the per-user lock.
type reply struct {
	stage   Stage
	session Session
	outcome string
	effects []Effect
	commit  func(ctx context.Context) (Result, error)
}

type step func(m *Machine, s Session, ev Event) reply

// sessionStages lists every stage a stored session can be in.
var sessionStages = []Stage{
	AwaitTitle, AwaitDescription, AwaitPhoto, AwaitPrice, AwaitConfirm,
	SelectField, AwaitNewTitle, AwaitNewDescription, AwaitNewPhoto, AwaitNewPrice, AwaitEditConfirm,
}

func transitions() map[stepKey]step {
	return map[stepKey]step{
		{AwaitTitle, EventText}:          onTitle,
		{AwaitDescription, EventText}:    onDescription,
		{AwaitPhoto, EventPhoto}:         onPhoto,
		{AwaitPhoto, EventText}:          onPhotoText,
		{AwaitPrice, EventText}:          onPrice,
		{AwaitConfirm, EventText}:        onCreateConfirm,
		{SelectField, EventText}:         onFieldText,
		{SelectField, EventSelectField}:  onFieldSelected,
		{AwaitNewTitle, EventText}:       onNewTitle,
		{AwaitNewDescription, EventText}: onNewDescription,
		{AwaitNewPhoto, EventPhoto}:      onNewPhoto,
		{AwaitNewPrice, EventText}:       onNewPrice,
		{AwaitEditConfirm, EventText}:    onEditConfirm,
	}
}

// validateTable checks that every session stage can be left and that no
// entry names an unknown or terminal stage.
func validateTable(table map[stepKey]step) error {
	known := make(map[Stage]bool, len(sessionStages))
	for _, st := range sessionStages {
		known[st] = false
	}
	for key, fn := range table {
		if fn == nil {
			return fmt.Errorf("workflow: nil step for %s/%s", key.stage, key.event)
		}
		if _, ok := known[key.stage]; !ok {
			return fmt.Errorf("workflow: step for unknown stage %q", key.stage)
		}
		known[key.stage] = true
	}
	for _, st := range sessionStages {
		if !known[st] {
			return fmt.Errorf("workflow: stage %s has no transitions", st)
		}
	}
	return nil
}

func moveTo(s Session, next Stage) reply {
	s.Stage = next
	return reply{stage: next, session: s, outcome: OutcomeAdvanced, effects: []Effect{prompt(next, s)}}
}

func rejectWith(s Session, text string) reply {
	p := prompt(s.Stage, s)
	return reply{stage: s.Stage, session: s, outcome: OutcomeRejected, effects: []Effect{Prompt(text, p.Options...)}}
}

func reject(s Session, err error) reply {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return rejectWith(s, ve.Notice())
	}
	return rejectWith(s, err.Error())
}

// reprompt answers an event the current stage has no transition for.
func reprompt(s Session) reply {
	return reply{stage: s.Stage, session: s, outcome: OutcomeRejected, effects: []Effect{prompt(s.Stage, s)}}
}

func finish(stage Stage, outcome, text string) reply {
	return reply{stage: stage, outcome: outcome, effects: []Effect{Prompt(text, MainMenu...)}}
}

func onTitle(_ *Machine, s Session, ev Event) reply {
	title, err := parseTitle(ev.Text)
	if err != nil {
		return reject(s, err)
	}
	s.Draft.Title = title
	return moveTo(s, AwaitDescription)
}

func onDescription(_ *Machine, s Session, ev Event) reply {
	desc, err := parseDescription(ev.Text)
	if err != nil {
		return reject(s, err)
	}
	s.Draft.Description = desc
	return moveTo(s, AwaitPhoto)
}

func onPhoto(_ *Machine, s Session, ev Event) reply {
	if ev.Photo == "" {
		return rejectWith(s, textPhotoExpected)
	}
	s.Draft.Photo = ev.Photo
	return moveTo(s, AwaitPrice)
}

// onPhotoText lets the ad go out as a text post when the user skips the photo.
func onPhotoText(_ *Machine, s Session, ev Event) reply {
	if !isSkip(ev.Text) {
		return rejectWith(s, textPhotoExpected)
	}
	s.Draft.Photo = ""
	return moveTo(s, AwaitPrice)
}

func onPrice(_ *Machine, s Session, ev Event) reply {
	price, err := parsePrice(ev.Text)
	if err != nil {
		return reject(s, err)
	}
	s.Draft.Price = price
	return moveTo(s, AwaitConfirm)
}

func onCreateConfirm(m *Machine, s Session, ev Event) reply {
	switch parseChoice(ev.Text) {
	case choiceConfirm:
		return reply{stage: Published, commit: func(ctx context.Context) (Result, error) {
			return m.publishNew(ctx, ev.UserID, s)
		}}
	case choiceDecline:
		return finish(Declined, OutcomeDeclined, textCreateDeclined)
	}
	return rejectWith(s, textChooseConfirm)
}

func onFieldText(_ *Machine, s Session, ev Event) reply {
	f, ok := ParseField(ev.Text)
	if !ok {
		return rejectWith(s, textChooseField)
	}
	s.Target = f
	return moveTo(s, f.stage())
}

func onFieldSelected(_ *Machine, s Session, ev Event) reply {
	if ev.Field.stage() == StageNone {
		return rejectWith(s, textChooseField)
	}
	s.Target = ev.Field
	return moveTo(s, ev.Field.stage())
}

func onNewTitle(_ *Machine, s Session, ev Event) reply {
	title, err := parseTitle(ev.Text)
	if err != nil {
		return reject(s, err)
	}
	s.Draft.Title = title
	return moveTo(s, AwaitEditConfirm)
}

func onNewDescription(_ *Machine, s Session, ev Event) reply {
	desc, err := parseDescription(ev.Text)
	if err != nil {
		return reject(s, err)
	}
	s.Draft.Description = desc
	return moveTo(s, AwaitEditConfirm)
}

func onNewPhoto(_ *Machine, s Session, ev Event) reply {
	if ev.Photo == "" {
		return rejectWith(s, textPhotoExpected)
	}
	s.Draft.Photo = ev.Photo
	return moveTo(s, AwaitEditConfirm)
}

func onNewPrice(_ *Machine, s Session, ev Event) reply {
	price, err := parsePrice(ev.Text)
	if err != nil {
		return reject(s, err)
	}
	s.Draft.Price = price
	return moveTo(s, AwaitEditConfirm)
}

func onEditConfirm(m *Machine, s Session, ev Event) reply {
	switch parseChoice(ev.Text) {
	case choiceConfirm:
		return reply{stage: Applied, commit: func(ctx context.Context) (Result, error) {
			return m.applyEdit(ctx, ev.UserID, s)
		}}
	case choiceDecline:
		return finish(Declined, OutcomeDeclined, textEditDeclined)
	}
	return rejectWith(s, textChooseConfirm)
}
