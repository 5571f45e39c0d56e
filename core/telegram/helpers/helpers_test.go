package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adboard/core/logger"
)

type fakeContext struct {
	tele.Context
	sender *tele.User
	values map[string]any
	sent   []interface{}
	opts   []interface{}
}

func newFakeContext(u *tele.User) *fakeContext {
	return &fakeContext{sender: u, values: map[string]any{}}
}

func (f *fakeContext) Sender() *tele.User    { return f.sender }
func (f *fakeContext) Chat() *tele.Chat      { return &tele.Chat{ID: 77} }
func (f *fakeContext) Update() tele.Update   { return tele.Update{ID: 5} }
func (f *fakeContext) Get(key string) any    { return f.values[key] }
func (f *fakeContext) Set(key string, v any) { f.values[key] = v }

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, what)
	f.opts = append(f.opts, opts...)
	return nil
}

func TestSenderIdentity(t *testing.T) {
	c := newFakeContext(&tele.User{ID: 42, Username: "rider", FirstName: "Ann"})
	assert.Equal(t, int64(42), SenderID(c))
	assert.Equal(t, "rider", SenderHandle(c))

	c.sender = &tele.User{ID: 43, FirstName: "Ann"}
	assert.Equal(t, "Ann", SenderHandle(c))

	c.sender = nil
	assert.Zero(t, SenderID(c))
	assert.Empty(t, SenderHandle(c))
}

func TestBuildContextIsCached(t *testing.T) {
	c := newFakeContext(&tele.User{ID: 42})

	ctx := BuildContext(c)
	assert.Equal(t, "5:77:42", logger.RIDFrom(ctx))
	assert.Equal(t, int64(42), logger.UserIDFrom(ctx))
	assert.Equal(t, int64(77), logger.ChatIDFrom(ctx))

	cached, ok := ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, ctx, cached)

	withHandler := WithHandler(c, "ad_edit")
	assert.Equal(t, "ad_edit", logger.HandlerFrom(withHandler))
	again, _ := ContextFrom(c)
	assert.Equal(t, withHandler, again)
}

func TestSendWithoutDispatcherRunsInline(t *testing.T) {
	SetDispatcher(nil)
	c := newFakeContext(&tele.User{ID: 1})
	markup := &tele.ReplyMarkup{}

	require.NoError(t, SendText(c, "hello", markup))
	require.NoError(t, SendPhoto(c, "file-1", "caption"))

	require.Len(t, c.sent, 2)
	assert.Equal(t, "hello", c.sent[0])
	photo, ok := c.sent[1].(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "file-1", photo.FileID)
	assert.Equal(t, "caption", photo.Caption)

	first, ok := c.opts[0].(*tele.SendOptions)
	require.True(t, ok)
	assert.Same(t, markup, first.ReplyMarkup)
}
