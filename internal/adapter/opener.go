package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// ErrNoOpener is returned when no command could open a URL
var ErrNoOpener = errors.New("no program found to open links")

// Opener opens album links (store pages, artwork) in an external program
type Opener struct {
	command string   // configured command, empty for auto-detection
	args    []string // extra arguments placed before the URL
	logger  *slog.Logger

	// start runs a command without waiting for it; replaced in tests
	start    func(name string, args ...string) error
	lookPath func(name string) (string, error)
}

// openPath is one way to hand a URL to the desktop
type openPath struct {
	command string
	args    []string // placed before the URL
}

// candidateOpeners lists launch paths per platform, tried in order
var candidateOpeners = map[string][]openPath{
	"darwin": {
		{command: "open"},
	},
	"linux": {
		{command: "xdg-open"},
		{command: "gio", args: []string{"open"}},
		{command: "wslview"},
		{command: "sensible-browser"},
	},
	"windows": {
		{command: "rundll32", args: []string{"url.dll,FileProtocolHandler"}},
		{command: "cmd", args: []string{"/c", "start", ""}},
	},
}

// NewOpener creates an Opener. An empty command means the platform default.
func NewOpener(command string, args []string, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{
		command:  command,
		args:     args,
		logger:   logger,
		start:    startCommand,
		lookPath: exec.LookPath,
	}
}

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start() // Start async, don't wait
}

// Open hands url to the configured command or the first available
// platform opener
func (o *Opener) Open(url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("nothing to open")
	}

	// Tier 1: user configured a specific command
	if o.command != "" {
		args := append(append([]string{}, o.args...), url)
		o.logger.Info("opening with configured command", "command", o.command, "url", url)
		return o.start(o.command, args...)
	}

	// Tier 2: candidate chain for this platform
	candidates, ok := candidateOpeners[runtime.GOOS]
	if !ok {
		candidates = candidateOpeners["linux"]
	}
	return o.openWith(candidates, url)
}

func (o *Opener) openWith(candidates []openPath, url string) error {
	for _, p := range candidates {
		if _, err := o.lookPath(p.command); err != nil {
			o.logger.Debug("opener not available", "command", p.command, "error", err)
			continue
		}
		args := append(append([]string{}, p.args...), url)
		if err := o.start(p.command, args...); err != nil {
			o.logger.Debug("opener failed", "command", p.command, "error", err)
			continue
		}
		o.logger.Info("opened link", "command", p.command, "url", url)
		return nil
	}
	return ErrNoOpener
}
