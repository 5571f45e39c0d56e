package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type fakeAPI struct {
	mu        sync.Mutex
	sent      []interface{}
	deleted   []tele.StoredMessage
	nextID    int
	sendErr   error
	deleteErr error
	block     chan struct{}
}

func (f *fakeAPI) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, what)
	f.nextID++
	return &tele.Message{ID: 500 + f.nextID}, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	id, chat := msg.MessageSig()
	f.deleted = append(f.deleted, tele.StoredMessage{MessageID: id, ChatID: chat})
	return nil
}

type recordRunner struct {
	calls []bool
}

func (r *recordRunner) Do(_ context.Context, _, _ string, retry bool, run func() error) error {
	r.calls = append(r.calls, retry)
	return run()
}

type countObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countObserver) ObserveChannel(op, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[op+"/"+status]++
}

func newTestPublisher(t *testing.T, api *fakeAPI, runner Runner, obs Observer) *Telegram {
	t.Helper()
	p, err := NewTelegram(Options{API: api, ChatID: -100123, Runner: runner, Observer: obs, Timeout: time.Second})
	require.NoError(t, err)
	return p
}

func TestNewTelegramValidates(t *testing.T) {
	_, err := NewTelegram(Options{ChatID: 1})
	assert.Error(t, err)
	_, err = NewTelegram(Options{API: &fakeAPI{}})
	assert.Error(t, err)
}

func TestPublishPhotoAndText(t *testing.T) {
	api := &fakeAPI{}
	runner := &recordRunner{}
	p := newTestPublisher(t, api, runner, nil)

	ref, err := p.Publish(context.Background(), "photo123", "Bike\nPrice: 150")
	require.NoError(t, err)
	assert.Equal(t, "501", ref)

	ref, err = p.Publish(context.Background(), "", "Lamp\nPrice: 5")
	require.NoError(t, err)
	assert.Equal(t, "502", ref)

	require.Len(t, api.sent, 2)
	photo, ok := api.sent[0].(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "photo123", photo.FileID)
	assert.Equal(t, "Bike\nPrice: 150", photo.Caption)
	assert.Equal(t, "Lamp\nPrice: 5", api.sent[1])

	assert.Equal(t, []bool{false, false}, runner.calls, "publish is never retried")
}

func TestPublishFailure(t *testing.T) {
	obs := &countObserver{}
	p := newTestPublisher(t, &fakeAPI{sendErr: errors.New("boom")}, nil, obs)

	_, err := p.Publish(context.Background(), "", "x")
	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "PUBLISH_FAILED", pubErr.Code())
	assert.Equal(t, 1, obs.counts["publish/fail"])
}

func TestPublishTimeout(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	defer close(api.block)
	p, err := NewTelegram(Options{API: api, ChatID: 1, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), "", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemove(t *testing.T) {
	api := &fakeAPI{}
	runner := &recordRunner{}
	obs := &countObserver{}
	p := newTestPublisher(t, api, runner, obs)

	require.NoError(t, p.Remove(context.Background(), "501"))
	require.Len(t, api.deleted, 1)
	assert.Equal(t, tele.StoredMessage{MessageID: "501", ChatID: -100123}, api.deleted[0])
	assert.Equal(t, []bool{true}, runner.calls, "remove may be retried")
	assert.Equal(t, 1, obs.counts["remove/ok"])
}

func TestRemoveMissingPost(t *testing.T) {
	api := &fakeAPI{deleteErr: errors.New("telegram: Bad Request: message to delete not found (400)")}
	p := newTestPublisher(t, api, nil, nil)

	err := p.Remove(context.Background(), "501")
	var rmErr *RemoveError
	require.ErrorAs(t, err, &rmErr)
	assert.True(t, IsPostGone(err))
	assert.Equal(t, "POST_GONE", rmErr.Code())
	assert.Equal(t, "501", rmErr.Ref)
}

func TestRemoveFailure(t *testing.T) {
	p := newTestPublisher(t, &fakeAPI{deleteErr: errors.New("forbidden (403)")}, nil, nil)

	err := p.Remove(context.Background(), "501")
	var rmErr *RemoveError
	require.ErrorAs(t, err, &rmErr)
	assert.False(t, IsPostGone(err))
	assert.Equal(t, "REMOVE_FAILED", rmErr.Code())
}

func TestRemoveInvalidRef(t *testing.T) {
	api := &fakeAPI{}
	p := newTestPublisher(t, api, nil, nil)

	err := p.Remove(context.Background(), "not-a-number")
	assert.True(t, IsPostGone(err))
	assert.Empty(t, api.deleted)
}

func TestDryRun(t *testing.T) {
	obs := &countObserver{}
	d := NewDryRun(obs)

	ref, err := d.Publish(context.Background(), "p", "caption")
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.Equal(t, 1, d.Posts())

	other, err := d.Publish(context.Background(), "", "caption")
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)

	require.NoError(t, d.Remove(context.Background(), ref))
	assert.Equal(t, 1, d.Posts())

	err = d.Remove(context.Background(), ref)
	assert.True(t, IsPostGone(err))
	assert.Equal(t, map[string]int{"publish/ok": 2, "remove/ok": 1, "remove/gone": 1}, obs.counts)
}
