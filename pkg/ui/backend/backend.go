// Package backend defines the terminal host boundary for the compositor.
// A host knows how to prepare the terminal, report its size and accept raw
// bytes. Everything above the byte stream (cells, colors, cursor moves) is
// the compositor's job, which keeps hosts small enough to swap between a
// real terminal and an in-memory simulation for tests.
package backend

//go:generate mockgen -package=compositor -destination=../compositor/mock_host_test.go github.com/odvcencio/termframe/pkg/ui/backend Host

// Host is the terminal the compositor renders into.
type Host interface {
	// Init prepares the terminal (raw mode, device handles).
	Init() error

	// Fini restores the terminal to the state Init found it in.
	Fini()

	// Size returns the current terminal dimensions.
	Size() (width, height int, err error)

	// Write sends raw output to the terminal.
	Write(p []byte) (int, error)
}

// ResizeNotifier is implemented by hosts that detect size changes on their
// own. The callback may run on any goroutine.
type ResizeNotifier interface {
	NotifyResize(cb func())
}

// InputReader is implemented by hosts that can read raw terminal input.
type InputReader interface {
	Read(p []byte) (int, error)
}

// WriteAll writes p in full, retrying short writes.
func WriteAll(h Host, p []byte) error {
	for len(p) > 0 {
		n, err := h.Write(p)
		if err != nil {
			return err
		}
		if n <= 0 {
			return shortWrite(len(p))
		}
		p = p[n:]
	}
	return nil
}
