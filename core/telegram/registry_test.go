package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func nopHandler(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", Command{Handler: nopHandler, Description: "Register"}))
	require.NoError(t, reg.RegisterCommand("/new", Command{Handler: nopHandler, Description: "Create an ad", Aliases: []string{"Create ad"}}))
	require.NoError(t, reg.RegisterCommand("/cancel", Command{Handler: nopHandler, Description: "Cancel", Hidden: true}))

	assert.Error(t, reg.RegisterCommand("/start", Command{Handler: nopHandler, Description: "again"}))
	assert.Error(t, reg.RegisterCommand("new", Command{Handler: nopHandler, Description: "x"}))
	assert.Error(t, reg.RegisterCommand("/x", Command{Description: "no handler"}))

	visible := reg.ListCommands(true)
	require.Len(t, visible, 2)
	assert.Equal(t, "new", visible[0].Text)
	assert.Equal(t, "start", visible[1].Text)
	assert.Len(t, reg.ListCommands(false), 3)
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/new", Command{Handler: nopHandler, Description: "Create", Aliases: []string{"Create ad"}}))

	for _, in := range []string{"/new", "/new@adboard_bot", "/new extra", "create AD", "  Create ad "} {
		key, _, ok := reg.LookupCommand(in)
		assert.True(t, ok, in)
		assert.Equal(t, "/new", key, in)
	}
	_, _, ok := reg.LookupCommand("Bike")
	assert.False(t, ok)
	_, _, ok = reg.LookupCommand("")
	assert.False(t, ok)
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("ad_edit", nopHandler))
	require.Error(t, reg.RegisterCallback("ad_edit", nopHandler))
	require.Error(t, reg.RegisterCallback("", nopHandler))
	require.NoError(t, reg.RegisterCallback("ad_delete", nopHandler))

	_, ok := reg.GetCallback("ad_edit")
	assert.True(t, ok)
	assert.Equal(t, []string{"ad_delete", "ad_edit"}, reg.ListCallbacks())
}

type fakeCommandSetter struct {
	got []interface{}
	err error
}

func (f *fakeCommandSetter) SetCommands(opts ...interface{}) error {
	f.got = opts
	return f.err
}

func TestSetupCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/my", Command{Handler: nopHandler, Description: "My ads"}))

	bot := &fakeCommandSetter{}
	SetupCommands(bot, reg)
	require.Len(t, bot.got, 1)
	assert.Equal(t, []tele.Command{{Text: "my", Description: "My ads"}}, bot.got[0])

	failing := &fakeCommandSetter{err: errors.New("network")}
	SetupCommands(failing, reg)
}
