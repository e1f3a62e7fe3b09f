// Package tty provides a Host over the controlling terminal device using
// tcell's Tty abstraction, so output works even when stdout is redirected.
package tty

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
	"github.com/odvcencio/termframe/pkg/ui/backend"
)

// Host writes to a tcell.Tty.
type Host struct {
	mu      sync.Mutex
	open    func() (tcell.Tty, error)
	tty     tcell.Tty
	started bool
}

var (
	_ backend.Host           = (*Host)(nil)
	_ backend.ResizeNotifier = (*Host)(nil)
	_ backend.InputReader    = (*Host)(nil)
)

// New creates a host that opens /dev/tty on Init.
func New() *Host {
	return &Host{open: tcell.NewDevTty}
}

// NewWithTty creates a host over an existing Tty.
func NewWithTty(t tcell.Tty) *Host {
	return &Host{open: func() (tcell.Tty, error) { return t, nil }}
}

// Init opens the device and starts raw mode.
func (h *Host) Init() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}
	t, err := h.open()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTerminalIO, "open tty")
	}
	if err := t.Start(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTerminalIO, "start tty")
	}
	h.tty = t
	h.started = true
	return nil
}

// Fini drains pending output and restores the device.
func (h *Host) Fini() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}
	_ = h.tty.Drain()
	_ = h.tty.Stop()
	_ = h.tty.Close()
	h.started = false
}

// Size returns the device window size.
func (h *Host) Size() (int, int, error) {
	h.mu.Lock()
	t := h.tty
	h.mu.Unlock()

	if t == nil {
		return 0, 0, backend.NotInitialized("tty size")
	}
	ws, err := t.WindowSize()
	if err != nil {
		return 0, 0, apperrors.Wrap(err, apperrors.ErrCodeTerminalIO, "query tty size")
	}
	return ws.Width, ws.Height, nil
}

// Write sends bytes to the device.
func (h *Host) Write(p []byte) (int, error) {
	h.mu.Lock()
	t := h.tty
	h.mu.Unlock()

	if t == nil {
		return 0, backend.NotInitialized("tty write")
	}
	return t.Write(p)
}

// Read reads raw input from the device.
func (h *Host) Read(p []byte) (int, error) {
	h.mu.Lock()
	t := h.tty
	h.mu.Unlock()

	if t == nil {
		return 0, backend.NotInitialized("tty read")
	}
	return t.Read(p)
}

// NotifyResize forwards the device's SIGWINCH notifications.
func (h *Host) NotifyResize(cb func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tty != nil {
		h.tty.NotifyResize(cb)
	}
}
