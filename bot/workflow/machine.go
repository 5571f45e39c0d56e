package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/adboard/bot/ads"
	"github.com/m3rciful/adboard/bot/channel"
	"github.com/m3rciful/adboard/core/logger"
	"github.com/m3rciful/adboard/core/telegram/state"
)

// DefaultTimeout bounds the store and channel calls made for one event.
const DefaultTimeout = 15 * time.Second

// Observer receives the outcome of every event; *metrics.Metrics satisfies it.
type Observer interface {
	ObserveOutcome(workflow, outcome string)
}

// Options wires a Machine to its collaborators.
type Options struct {
	Store     ads.Store
	Publisher channel.Publisher
	// Sessions is created when nil.
	Sessions *state.Memory[Session]
	Timeout  time.Duration
	Observer Observer
}

// Machine interprets user events against the sender's session.
type Machine struct {
	store     ads.Store
	publisher channel.Publisher
	sessions  *state.Memory[Session]
	timeout   time.Duration
	observer  Observer
	table     map[stepKey]step
}

// New validates the transition table and returns a ready Machine.
func New(opts Options) (*Machine, error) {
	if opts.Store == nil {
		return nil, errors.New("workflow: nil store")
	}
	if opts.Publisher == nil {
		return nil, errors.New("workflow: nil publisher")
	}
	table := transitions()
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if opts.Sessions == nil {
		opts.Sessions = state.NewMemory[Session]()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Machine{
		store:     opts.Store,
		publisher: opts.Publisher,
		sessions:  opts.Sessions,
		timeout:   opts.Timeout,
		observer:  opts.Observer,
		table:     table,
	}, nil
}

// Sessions exposes the session store, e.g. for expiry and gauges.
func (m *Machine) Sessions() *state.Memory[Session] {
	return m.sessions
}

// InProgress reports whether the user has a running workflow.
func (m *Machine) InProgress(userID int64) bool {
	return m.sessions.InProgress(userID)
}

// Handle applies one event. The returned effects are always meant for the
// user, also when err reports a failed store or channel call.
func (m *Machine) Handle(ctx context.Context, ev Event) (Result, error) {
	start := time.Now()
	res, err := m.dispatch(ctx, ev)
	m.record(ctx, ev, res, err, start)
	return res, err
}

func (m *Machine) dispatch(ctx context.Context, ev Event) (Result, error) {
	switch ev.Kind {
	case EventStartCreate:
		return m.startCreate(ev), nil
	case EventSelectEdit:
		return m.startEdit(ctx, ev)
	case EventText, EventPhoto, EventSelectField:
		return m.step(ctx, ev)
	case EventCancel:
		return m.cancel(ev), nil
	case EventDeleteAd:
		return m.deleteAd(ctx, ev)
	case EventListMine:
		return m.listMine(ctx, ev)
	case EventRegister:
		return m.register(ctx, ev)
	}
	return Result{}, fmt.Errorf("workflow: unknown event kind %d", ev.Kind)
}

// step runs the transition for the session under the per-user lock. The lock
// is released before commit, so the session is gone by the time any store or
// channel call starts and a repeated confirm finds nothing to confirm.
func (m *Machine) step(ctx context.Context, ev Event) (Result, error) {
	unlock := m.sessions.Lock(ev.UserID)
	defer unlock()

	s, ok := m.sessions.Get(ev.UserID)
	if !ok {
		return Result{Outcome: OutcomeIdle, Effects: []Effect{Prompt(textIdle, MainMenu...)}}, nil
	}
	if ev.Kind == EventText && IsCancel(ev.Text) {
		m.sessions.Clear(ev.UserID)
		return Result{Kind: s.Kind, Stage: Cancelled, Outcome: OutcomeCancelled, AdID: s.AdID,
			Effects: []Effect{Prompt(textCancelled, MainMenu...)}}, nil
	}

	var r reply
	if fn, found := m.table[stepKey{stage: s.Stage, event: ev.Kind}]; found {
		r = fn(m, s, ev)
	} else {
		r = reprompt(s)
	}
	if r.stage.Terminal() {
		m.sessions.Clear(ev.UserID)
	} else {
		m.sessions.Set(ev.UserID, r.session)
	}
	unlock()

	logger.LogEvent(ctx, logger.FSM, slog.LevelDebug, "transition",
		slog.String("workflow", string(s.Kind)),
		slog.String("stage", string(s.Stage)),
		slog.String("next_stage", string(r.stage)),
		slog.String("event_kind", ev.Kind.String()),
	)

	if r.commit == nil {
		return Result{Kind: s.Kind, Stage: r.stage, Outcome: r.outcome, AdID: s.AdID, Effects: r.effects}, nil
	}
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	res, err := r.commit(cctx)
	res.Kind = s.Kind
	return res, err
}

func (m *Machine) startCreate(ev Event) Result {
	unlock := m.sessions.Lock(ev.UserID)
	defer unlock()
	s := Session{Kind: KindCreate, Stage: AwaitTitle, Handle: ev.Handle}
	m.sessions.Set(ev.UserID, s)
	return Result{Kind: KindCreate, Stage: AwaitTitle, Outcome: OutcomeStarted, Effects: []Effect{prompt(AwaitTitle, s)}}
}

// startEdit opens an edit session for an ad the user owns. Any running session is replaced.
func (m *Machine) startEdit(ctx context.Context, ev Event) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ad, err := m.ownedAd(ctx, ev.UserID, ev.AdID)
	if err != nil {
		m.clear(ev.UserID)
		if errors.Is(err, ads.ErrNotFound) {
			return notFound(KindEdit, ev.AdID), nil
		}
		return failed(KindEdit, ev.AdID, "load the ad", err), err
	}

	unlock := m.sessions.Lock(ev.UserID)
	defer unlock()
	s := Session{Kind: KindEdit, Stage: SelectField, AdID: ad.ID, Handle: ev.Handle}
	m.sessions.Set(ev.UserID, s)
	return Result{Kind: KindEdit, Stage: SelectField, Outcome: OutcomeStarted, AdID: ad.ID,
		Effects: []Effect{prompt(SelectField, s)}}, nil
}

func (m *Machine) clear(userID int64) {
	unlock := m.sessions.Lock(userID)
	defer unlock()
	m.sessions.Clear(userID)
}

func (m *Machine) cancel(ev Event) Result {
	unlock := m.sessions.Lock(ev.UserID)
	defer unlock()
	s, ok := m.sessions.Get(ev.UserID)
	if !ok {
		return Result{Outcome: OutcomeIdle, Effects: []Effect{Prompt(textNothingToCancel, MainMenu...)}}
	}
	m.sessions.Clear(ev.UserID)
	return Result{Kind: s.Kind, Stage: Cancelled, Outcome: OutcomeCancelled, AdID: s.AdID,
		Effects: []Effect{Prompt(textCancelled, MainMenu...)}}
}

// publishNew posts the draft, then stores it with the new post reference.
func (m *Machine) publishNew(ctx context.Context, userID int64, s Session) (Result, error) {
	f := s.Draft
	ref, err := m.publisher.Publish(ctx, f.Photo, ads.Caption(f))
	if err != nil {
		return failed(KindCreate, 0, "publish the ad", err), err
	}
	if _, err := m.store.AddUser(ctx, ads.User{ID: userID, Handle: s.Handle}); err != nil {
		m.withdraw(ctx, ref)
		return failed(KindCreate, 0, "save the ad", err), err
	}
	id, err := m.store.CreateAd(ctx, userID, f, ref)
	if err != nil {
		m.withdraw(ctx, ref)
		return failed(KindCreate, 0, "save the ad", err), err
	}

	logger.LogEvent(ctx, logger.SVCAds, slog.LevelInfo, "ad.published",
		slog.Int64("ad_id", id),
		slog.String("post_ref", ref),
	)
	return Result{Stage: Published, Outcome: OutcomePublished, AdID: id,
		Effects: []Effect{Prompt(textPublished, MainMenu...)}}, nil
}

// applyEdit replaces the channel post and then writes the edited fields.
// A channel failure leaves the stored ad untouched.
func (m *Machine) applyEdit(ctx context.Context, userID int64, s Session) (Result, error) {
	ad, err := m.ownedAd(ctx, userID, s.AdID)
	if errors.Is(err, ads.ErrNotFound) {
		return notFound(KindEdit, s.AdID), nil
	}
	if err != nil {
		return failed(KindEdit, s.AdID, "load the ad", err), err
	}

	next := s.Target.apply(ad.Fields, s.Draft)
	if ad.Published() {
		if err := m.publisher.Remove(ctx, ad.PostRef); err != nil {
			return failed(KindEdit, ad.ID, "update the ad", err), err
		}
	}
	ref, err := m.publisher.Publish(ctx, next.Photo, ads.Caption(next))
	if err != nil {
		return failed(KindEdit, ad.ID, "update the ad", err), err
	}
	if err := m.store.UpdateAd(ctx, ad.ID, next); err != nil {
		m.withdraw(ctx, ref)
		return failed(KindEdit, ad.ID, "save the changes", err), err
	}
	if err := m.store.SetPostRef(ctx, ad.ID, ref); err != nil {
		m.withdraw(ctx, ref)
		return failed(KindEdit, ad.ID, "save the changes", err), err
	}

	logger.LogEvent(ctx, logger.SVCAds, slog.LevelInfo, "ad.edited",
		slog.Int64("ad_id", ad.ID),
		slog.String("field", s.Target.String()),
		slog.String("post_ref", ref),
	)
	return Result{Stage: Applied, Outcome: OutcomeApplied, AdID: ad.ID,
		Effects: []Effect{Prompt(textApplied, MainMenu...)}}, nil
}

// withdraw removes a post whose ad could not be stored.
func (m *Machine) withdraw(ctx context.Context, ref string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	if err := m.publisher.Remove(ctx, ref); err != nil {
		logger.LogEvent(ctx, logger.SVCAds, slog.LevelWarn, "ad.withdraw.fail",
			slog.String("post_ref", ref),
			slog.String("err", err.Error()),
		)
	}
}

// ownedAd loads an ad and hides ads of other users behind ads.ErrNotFound.
func (m *Machine) ownedAd(ctx context.Context, userID, adID int64) (ads.Ad, error) {
	ad, err := m.store.GetAd(ctx, adID)
	if err != nil {
		return ads.Ad{}, err
	}
	if ad.OwnerID != userID {
		return ads.Ad{}, fmt.Errorf("ad %d of user %d: %w", adID, userID, ads.ErrNotFound)
	}
	return ad, nil
}

func notFound(kind Kind, adID int64) Result {
	e := ErrorNotice(textAdNotFound)
	e.Options = MainMenu
	return Result{Kind: kind, Outcome: OutcomeNotFound, AdID: adID, Effects: []Effect{e}}
}

func failed(kind Kind, adID int64, action string, err error) Result {
	e := ErrorNotice(failure(action, err))
	e.Options = MainMenu
	return Result{Kind: kind, Outcome: OutcomeFailed, AdID: adID, Effects: []Effect{e}}
}

func (m *Machine) record(ctx context.Context, ev Event, res Result, err error, start time.Time) {
	workflow := string(res.Kind)
	if workflow == "" {
		workflow = ev.Kind.String()
	}
	if m.observer != nil && res.Outcome != "" {
		m.observer.ObserveOutcome(workflow, res.Outcome)
	}

	level := slog.LevelInfo
	switch res.Outcome {
	case OutcomeAdvanced, OutcomeRejected, OutcomeIdle:
		level = slog.LevelDebug
	case OutcomeFailed:
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("workflow", workflow),
		slog.String("event_kind", ev.Kind.String()),
		slog.String("outcome", res.Outcome),
		slog.Int64("user_id", ev.UserID),
		slog.Duration("duration", logger.Took(start)),
	}
	if res.Stage != StageNone {
		attrs = append(attrs, slog.String("stage", string(res.Stage)))
	}
	if res.AdID != 0 {
		attrs = append(attrs, slog.Int64("ad_id", res.AdID))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.Sanitize(err.Error())))
	}
	logger.LogEvent(ctx, logger.FSM, level, "workflow.event", attrs...)
}
