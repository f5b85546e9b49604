package adapter

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startCall struct {
	name string
	args []string
}

func newTestOpener(command string, args []string, available map[string]bool, failing map[string]bool) (*Opener, *[]startCall) {
	var calls []startCall
	o := NewOpener(command, args, NullLogger())
	o.lookPath = func(name string) (string, error) {
		if available[name] {
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}
	o.start = func(name string, args ...string) error {
		calls = append(calls, startCall{name: name, args: args})
		if failing[name] {
			return errors.New("boom")
		}
		return nil
	}
	return o, &calls
}

func TestOpener_ConfiguredCommand(t *testing.T) {
	o, calls := newTestOpener("firefox", []string{"--new-tab"}, nil, nil)

	require.NoError(t, o.Open("https://music.apple.com/album/1"))
	require.Len(t, *calls, 1)
	assert.Equal(t, "firefox", (*calls)[0].name)
	assert.Equal(t, []string{"--new-tab", "https://music.apple.com/album/1"}, (*calls)[0].args)
}

func TestOpener_CandidateChain(t *testing.T) {
	candidates := []openPath{
		{command: "xdg-open"},
		{command: "gio", args: []string{"open"}},
		{command: "sensible-browser"},
	}

	t.Run("skips missing commands", func(t *testing.T) {
		o, calls := newTestOpener("", nil, map[string]bool{"gio": true}, nil)
		require.NoError(t, o.openWith(candidates, "https://x"))
		require.Len(t, *calls, 1)
		assert.Equal(t, startCall{name: "gio", args: []string{"open", "https://x"}}, (*calls)[0])
	})

	t.Run("falls through failures", func(t *testing.T) {
		o, calls := newTestOpener("",
			nil,
			map[string]bool{"xdg-open": true, "sensible-browser": true},
			map[string]bool{"xdg-open": true})
		require.NoError(t, o.openWith(candidates, "https://x"))
		require.Len(t, *calls, 2)
		assert.Equal(t, "sensible-browser", (*calls)[1].name)
	})

	t.Run("nothing available", func(t *testing.T) {
		o, calls := newTestOpener("", nil, nil, nil)
		assert.ErrorIs(t, o.openWith(candidates, "https://x"), ErrNoOpener)
		assert.Empty(t, *calls)
	})
}

func TestOpener_BlankURL(t *testing.T) {
	o, calls := newTestOpener("firefox", nil, nil, nil)
	assert.Error(t, o.Open("  "))
	assert.Empty(t, *calls)
}
