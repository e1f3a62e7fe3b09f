// Package stdio provides a Host over the process's standard streams.
package stdio

import (
	"os"
	"sync"

	"golang.org/x/term"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
	"github.com/odvcencio/termframe/pkg/ui/backend"
)

// Host renders to an output file and puts the input file in raw mode.
type Host struct {
	in  *os.File
	out *os.File

	mu       sync.Mutex
	oldState *term.State
}

var (
	_ backend.Host        = (*Host)(nil)
	_ backend.InputReader = (*Host)(nil)
)

// New creates a host over stdin and stdout.
func New() *Host {
	return NewWithFiles(os.Stdin, os.Stdout)
}

// NewWithFiles creates a host over explicit files.
func NewWithFiles(in, out *os.File) *Host {
	return &Host{in: in, out: out}
}

// Init switches the input terminal to raw mode. Non-terminal input is left
// alone so output can still be piped.
func (h *Host) Init() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	fd := int(h.in.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTerminalIO, "enter raw mode")
	}
	h.oldState = state
	return nil
}

// Fini restores the saved terminal mode.
func (h *Host) Fini() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.oldState == nil {
		return
	}
	_ = term.Restore(int(h.in.Fd()), h.oldState)
	h.oldState = nil
}

// Size queries the output terminal's dimensions.
func (h *Host) Size() (int, int, error) {
	w, hgt, err := term.GetSize(int(h.out.Fd()))
	if err != nil {
		return 0, 0, apperrors.Wrap(err, apperrors.ErrCodeTerminalIO, "query terminal size")
	}
	return w, hgt, nil
}

// Write sends bytes to the output file.
func (h *Host) Write(p []byte) (int, error) {
	return h.out.Write(p)
}

// Read reads raw input from the input file.
func (h *Host) Read(p []byte) (int, error) {
	return h.in.Read(p)
}
