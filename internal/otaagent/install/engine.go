package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	fsmutil "github.com/autopeer-io/ota-agent/internal/pkg/util/fsm"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

const (
	defaultChunkSize = 4096
	// progressStep is the byte interval between writing progress markers
	// when the total size is unknown.
	progressStep = 256 << 10
)

// Engine installs a release into the inactive slot.
type Engine struct {
	fetcher   core.Fetcher
	flasher   core.Flasher
	sink      core.Sink
	chunkSize int
}

// NewEngine creates an Engine writing chunkSize bytes per flash write.
func NewEngine(fetcher core.Fetcher, flasher core.Flasher, sink core.Sink, chunkSize int) *Engine {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Engine{
		fetcher:   fetcher,
		flasher:   flasher,
		sink:      sink,
		chunkSize: chunkSize,
	}
}

// Install runs the primary attempt and, when it failed in a way a redirect
// could explain, exactly one attempt on the redirect path. It returns
// InstallSucceeded or InstallFailed.
func (e *Engine) Install(ctx context.Context, cycle string, rel *core.ReleaseInfo) (out core.Outcome) {
	var current *attempt
	defer func() {
		if r := recover(); r != nil {
			out = current.recovered(r)
		}
	}()

	primary := e.newAttempt(ctx, cycle, rel, core.PathPrimary)
	current = primary
	perr := primary.run(ctx)
	if perr == nil {
		return core.InstallSucceeded(rel, core.PathPrimary)
	}
	if !primary.retriable {
		return core.InstallFailed(rel, core.PathPrimary, perr)
	}

	primary.log.Info("Primary install failed, retrying through redirect", "error", perr)

	fallback := e.newAttempt(ctx, cycle, rel, core.PathRedirect)
	current = fallback
	ferr := fallback.run(ctx)
	if ferr == nil {
		return core.InstallSucceeded(rel, core.PathRedirect)
	}

	return core.InstallFailed(rel, core.PathRedirect, fmt.Errorf("primary: %w; redirect: %w", perr, ferr))
}

// attempt is one pass through the state machine. It is never reused.
type attempt struct {
	*fsm.FSM

	engine *Engine
	log    log.Logger
	cycle  string
	rel    *core.ReleaseInfo
	path   core.InstallPath

	stream   *core.Stream
	writer   core.SlotWriter
	digest   hash.Hash
	written  int64
	expected int64
	reported int64

	verified  bool
	committed bool
	retriable bool
}

func (e *Engine) newAttempt(ctx context.Context, cycle string, rel *core.ReleaseInfo, path core.InstallPath) *attempt {
	a := &attempt{
		engine:   e,
		cycle:    cycle,
		rel:      rel,
		path:     path,
		digest:   sha256.New(),
		expected: rel.SizeHint,
		log:      log.FromContext(ctx).WithValues("version", rel.Version, "path", path),
	}
	a.FSM = newStateMachine(a)
	return a
}

func (a *attempt) run(ctx context.Context) error {
	if err := a.Event(ctx, EventFetch); err != nil {
		return a.fail(ctx, err)
	}

	stream, err := a.open(ctx)
	if err != nil {
		a.retriable = true
		return a.fail(ctx, err)
	}
	a.stream = stream
	defer func() {
		if cerr := stream.Body.Close(); cerr != nil {
			a.log.Debug("Error closing artifact stream", "error", cerr)
		}
	}()

	if a.expected <= 0 && stream.Size > 0 {
		a.expected = stream.Size
	}

	writer, err := a.engine.flasher.BeginWrite(ctx, core.SlotMeta{Version: a.rel.Version, ExpectedSize: a.expected})
	if err != nil {
		return a.fail(ctx, core.NewError("begin write", core.ErrWrite, err))
	}
	a.writer = writer

	if err := a.Event(ctx, EventStream); err != nil {
		return a.fail(ctx, err)
	}
	if err := a.copy(); err != nil {
		return a.fail(ctx, err)
	}

	if err := a.Event(ctx, EventVerify); err != nil {
		return a.fail(ctx, err)
	}
	if err := a.verify(); err != nil {
		return a.fail(ctx, err)
	}
	a.verified = true

	if err := a.Event(ctx, EventCommit); err != nil {
		return a.fail(ctx, fsmutil.Cause(err))
	}

	a.log.Info("Firmware image committed", "bytes", a.written)
	return nil
}

func (a *attempt) open(ctx context.Context) (*core.Stream, error) {
	ref := a.rel.Asset.Reference
	if a.path == core.PathRedirect {
		return a.engine.fetcher.FollowRedirect(ctx, ref)
	}
	return a.engine.fetcher.Open(ctx, ref)
}

// copy streams the artifact into the slot in fixed-size chunks. Read errors
// are transport failures and leave the attempt retriable; write errors do not.
func (a *attempt) copy() error {
	buf := make([]byte, a.engine.chunkSize)
	for {
		n, rerr := a.stream.Body.Read(buf)
		if n > 0 {
			if err := a.write(buf[:n]); err != nil {
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			a.retriable = true
			return core.NewError("read artifact", core.ErrNetwork, rerr)
		}
	}
}

func (a *attempt) write(p []byte) error {
	if a.expected > 0 && a.written+int64(len(p)) > a.expected {
		return core.Errorf("write slot", core.ErrSizeMismatch, "artifact exceeds expected %d bytes", a.expected)
	}

	n, err := a.writer.Write(p)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	a.written += int64(n)
	if err != nil {
		return core.NewError("write slot", core.ErrWrite, err)
	}

	a.digest.Write(p)
	a.maybeProgress()
	return nil
}

func (a *attempt) verify() error {
	if a.written == 0 {
		return core.Errorf("verify", core.ErrSizeMismatch, "empty artifact")
	}
	if a.expected > 0 && a.written != a.expected {
		return core.Errorf("verify", core.ErrSizeMismatch, "wrote %d of %d bytes", a.written, a.expected)
	}

	want, ok := strings.CutPrefix(a.rel.Asset.Digest, "sha256:")
	if !ok {
		if a.rel.Asset.Digest != "" {
			a.log.Debug("Skipping unsupported digest", "digest", a.rel.Asset.Digest)
		}
		return nil
	}
	if got := hex.EncodeToString(a.digest.Sum(nil)); !strings.EqualFold(got, want) {
		return core.Errorf("verify", core.ErrIntegrity, "sha256 %s, want %s", got, want)
	}
	return nil
}

func (a *attempt) fail(ctx context.Context, err error) error {
	if a.Current() == string(core.StateFailed) {
		return err
	}
	if ferr := a.Event(ctx, EventFail); ferr != nil {
		a.log.Error(ferr, "Failed to enter failed state")
	}
	a.log.Warn("Install attempt failed", "state", a.Current(), "retriable", a.retriable, "error", err)
	return err
}

// recovered maps a panic inside the attempt to its outcome. A committed slot
// boots next regardless of what failed afterwards.
func (a *attempt) recovered(r any) core.Outcome {
	err := fmt.Errorf("install panicked: %v", r)
	if a.committed {
		a.log.Error(err, "Install panicked after commit")
		return core.InstallSucceeded(a.rel, a.path)
	}

	a.log.Error(err, "Install panicked", "state", a.Current())
	if a.writer != nil {
		if aerr := a.writer.Abort(); aerr != nil {
			a.log.Error(aerr, "Failed to abort slot write")
		}
		a.writer = nil
	}
	return core.InstallFailed(a.rel, a.path, err)
}

func (a *attempt) maybeProgress() {
	step := int64(progressStep)
	if a.expected > 0 {
		step = max(a.expected/10, 1)
	}
	if a.written-a.reported >= step {
		a.progress(core.StateWriting)
	}
}

func (a *attempt) progress(state core.InstallState) {
	a.reported = a.written
	a.engine.sink.Progress(core.Progress{
		Cycle:   a.cycle,
		State:   state,
		Path:    a.path,
		Version: a.rel.Version,
		Written: a.written,
		Total:   a.expected,
	})
}
