package workflow

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/adboard/bot/ads"
	"github.com/m3rciful/adboard/bot/channel"
	"github.com/m3rciful/adboard/bot/storage"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// recordingStore logs writes and can fail them on demand.
type recordingStore struct {
	*storage.Memory
	log        *callLog
	failCreate error
	failUpdate error
}

func (s *recordingStore) AddUser(ctx context.Context, u ads.User) (bool, error) {
	s.log.add("add_user")
	return s.Memory.AddUser(ctx, u)
}

func (s *recordingStore) CreateAd(ctx context.Context, ownerID int64, f ads.Fields, postRef string) (int64, error) {
	s.log.add("create")
	if s.failCreate != nil {
		return 0, s.failCreate
	}
	return s.Memory.CreateAd(ctx, ownerID, f, postRef)
}

func (s *recordingStore) UpdateAd(ctx context.Context, id int64, f ads.Fields) error {
	s.log.add("update")
	if s.failUpdate != nil {
		return s.failUpdate
	}
	return s.Memory.UpdateAd(ctx, id, f)
}

func (s *recordingStore) SetPostRef(ctx context.Context, id int64, postRef string) error {
	s.log.add("set_post_ref:" + postRef)
	return s.Memory.SetPostRef(ctx, id, postRef)
}

func (s *recordingStore) DeleteAd(ctx context.Context, id int64) error {
	s.log.add("delete")
	return s.Memory.DeleteAd(ctx, id)
}

// recordingPublisher hands out sequential refs starting at 501.
type recordingPublisher struct {
	mu         sync.Mutex
	log        *callLog
	next       int
	captions   []string
	photos     []string
	publishErr error
	removeErr  error
	// entered and release, when set, hold Publish until the test lets it go.
	entered chan struct{}
	release chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, photo, caption string) (string, error) {
	p.log.add("publish")
	if p.entered != nil {
		p.entered <- struct{}{}
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return "", &channel.PublishError{Err: p.publishErr}
	}
	p.next++
	p.captions = append(p.captions, caption)
	p.photos = append(p.photos, photo)
	return strconv.Itoa(500 + p.next), nil
}

func (p *recordingPublisher) Remove(_ context.Context, ref string) error {
	p.log.add("remove:" + ref)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.removeErr != nil {
		return &channel.RemoveError{Ref: ref, Err: p.removeErr}
	}
	return nil
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) ObserveOutcome(workflow, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[workflow+"/"+outcome]++
}

type fixture struct {
	machine   *Machine
	store     *recordingStore
	publisher *recordingPublisher
	log       *callLog
	observer  *outcomeCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := &callLog{}
	f := &fixture{
		store:     &recordingStore{Memory: storage.NewMemory(), log: log},
		publisher: &recordingPublisher{log: log},
		log:       log,
		observer:  &outcomeCounter{},
	}
	m, err := New(Options{Store: f.store, Publisher: f.publisher, Observer: f.observer})
	require.NoError(t, err)
	f.machine = m
	return f
}

func (f *fixture) send(t *testing.T, ev Event) Result {
	t.Helper()
	res, err := f.machine.Handle(context.Background(), ev)
	require.NoError(t, err)
	return res
}

func (f *fixture) text(t *testing.T, userID int64, text string) Result {
	t.Helper()
	return f.send(t, Event{Kind: EventText, UserID: userID, Text: text})
}

func (f *fixture) session(t *testing.T, userID int64) Session {
	t.Helper()
	s, ok := f.machine.Sessions().Get(userID)
	require.True(t, ok, "session expected for user %d", userID)
	return s
}

// createBike runs the creation workflow to the confirm stage.
func (f *fixture) createBike(t *testing.T, userID int64) {
	t.Helper()
	f.send(t, Event{Kind: EventStartCreate, UserID: userID, Handle: "rider"})
	f.text(t, userID, "Bike")
	f.text(t, userID, "Red, size M")
	f.send(t, Event{Kind: EventPhoto, UserID: userID, Photo: "photo123"})
	res := f.text(t, userID, "150")
	require.Equal(t, AwaitConfirm, res.Stage)
}

// publishBike creates and confirms the bike ad and returns it.
func (f *fixture) publishBike(t *testing.T, userID int64) ads.Ad {
	t.Helper()
	f.createBike(t, userID)
	res := f.text(t, userID, "confirm")
	require.Equal(t, OutcomePublished, res.Outcome)
	ad, err := f.store.GetAd(context.Background(), res.AdID)
	require.NoError(t, err)
	return ad
}
