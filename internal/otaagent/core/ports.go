package core

import (
	"context"
	"io"
)

// Stream is an artifact body being downloaded.
type Stream struct {
	Body io.ReadCloser
	// Size is the declared length, -1 when unknown.
	Size int64
}

// Fetcher opens artifact byte streams.
type Fetcher interface {
	// Open requests ref without following redirects. A relocation is
	// returned as *RedirectError.
	Open(ctx context.Context, ref string) (*Stream, error)

	// FollowRedirect requests ref again and follows at most one redirect.
	FollowRedirect(ctx context.Context, ref string) (*Stream, error)
}

// SlotMeta describes the image about to be written.
type SlotMeta struct {
	Version Version
	// ExpectedSize is 0 when unknown.
	ExpectedSize int64
}

// Flasher is the flash primitive: the only code allowed to change boot slot state.
type Flasher interface {
	// BeginWrite opens the inactive slot for writing.
	BeginWrite(ctx context.Context, meta SlotMeta) (SlotWriter, error)
}

// SlotWriter is an open handle on the inactive slot.
type SlotWriter interface {
	// Write appends a chunk to the slot.
	Write(p []byte) (int, error)
	// Commit marks the written slot as the next boot target.
	Commit() error
	// Abort discards the written data. The slot is left unbootable.
	Abort() error
}

// Restarter restarts the device so the committed slot boots.
type Restarter interface {
	Restart(ctx context.Context) error
}

// InstallState is a state of the install engine.
type InstallState string

const (
	StateIdle      InstallState = "idle"
	StateFetching  InstallState = "fetching"
	StateWriting   InstallState = "writing"
	StateVerifying InstallState = "verifying"
	StateCommitted InstallState = "committed"
	StateFailed    InstallState = "failed"
)

// Progress marks a step of a running cycle.
type Progress struct {
	Cycle   string
	State   InstallState
	Path    InstallPath
	Version Version
	// Written and Total are byte counts; Total is 0 when unknown.
	Written int64
	Total   int64
}

// Sink consumes outcomes and progress markers. Implementations must return
// promptly; nothing in the update loop depends on what they do.
type Sink interface {
	Report(o Outcome)
	Progress(p Progress)
}
