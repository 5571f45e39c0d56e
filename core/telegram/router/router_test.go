package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/adboard/core/telegram"
)

type fakeContext struct {
	tele.Context
	sender *tele.User
	text   string
	values map[string]any
}

func newFakeContext(userID int64, text string) *fakeContext {
	return &fakeContext{sender: &tele.User{ID: userID}, text: text, values: map[string]any{}}
}

func (f *fakeContext) Sender() *tele.User    { return f.sender }
func (f *fakeContext) Chat() *tele.Chat      { return &tele.Chat{ID: f.sender.ID, Type: tele.ChatPrivate} }
func (f *fakeContext) Text() string          { return f.text }
func (f *fakeContext) Update() tele.Update   { return tele.Update{ID: 1, Message: &tele.Message{Text: f.text}} }
func (f *fakeContext) Get(key string) any    { return f.values[key] }
func (f *fakeContext) Set(key string, v any) { f.values[key] = v }

type fakeFSM struct {
	active map[int64]bool
	texts  []string
	photos int
}

func (f *fakeFSM) InProgress(userID int64) bool { return f.active[userID] }
func (f *fakeFSM) HandleText(c tele.Context) error {
	f.texts = append(f.texts, c.Text())
	return nil
}
func (f *fakeFSM) HandlePhoto(tele.Context) error {
	f.photos++
	return nil
}

func routeFor(routes []tg.Route, endpoint string) tele.HandlerFunc {
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	return nil
}

func TestTextRoutesPreferActiveSession(t *testing.T) {
	fsm := &fakeFSM{active: map[int64]bool{1: true}}
	reg := tg.NewRegistry()
	aliasCalls := 0
	require.NoError(t, reg.RegisterCommand("/my", tg.Command{
		Description: "My ads",
		Aliases:     []string{"My ads"},
		Handler:     func(tele.Context) error { aliasCalls++; return nil },
	}))

	routes := TextRoutes(fsm, reg, TextOptions{})
	text := routeFor(routes, tele.OnText)
	require.NotNil(t, text)

	require.NoError(t, text(newFakeContext(1, "My ads")))
	assert.Equal(t, []string{"My ads"}, fsm.texts)
	assert.Zero(t, aliasCalls)

	require.NoError(t, text(newFakeContext(2, "my ads")))
	assert.Equal(t, 1, aliasCalls)
}

func TestTextRoutesFallback(t *testing.T) {
	var got string
	routes := TextRoutes(&fakeFSM{}, tg.NewRegistry(), TextOptions{
		UnknownText: func(c tele.Context) error { got = c.Text(); return nil },
	})
	require.NoError(t, routeFor(routes, tele.OnText)(newFakeContext(5, "hello")))
	assert.Equal(t, "hello", got)
}

func TestPhotoRouteOnlyDuringSession(t *testing.T) {
	fsm := &fakeFSM{active: map[int64]bool{1: true}}
	unexpected := 0
	routes := TextRoutes(fsm, nil, TextOptions{
		UnknownPhoto: func(tele.Context) error { unexpected++; return nil },
	})
	photo := routeFor(routes, tele.OnPhoto)
	require.NoError(t, photo(newFakeContext(1, "")))
	require.NoError(t, photo(newFakeContext(2, "")))
	assert.Equal(t, 1, fsm.photos)
	assert.Equal(t, 1, unexpected)
}

type codedErr struct{}

func (codedErr) Error() string { return "publish failed" }
func (codedErr) Code() string  { return "publish failed" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", DeriveErrorCode(nil))
	assert.Equal(t, "PUBLISH_FAILED", DeriveErrorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "PLAINERR", DeriveErrorCode(&plainErr{}))
	assert.Equal(t, "ERRORSTRING", DeriveErrorCode(errors.New("x")))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "start", normalizeHandlerName("/start"))
	assert.Equal(t, "my_ads", normalizeHandlerName(" My ads "))
	assert.Equal(t, "unknown", normalizeHandlerName(""))
}
