package install

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	fsmutil "github.com/autopeer-io/ota-agent/internal/pkg/util/fsm"
)

const (
	// EventFetch opens the artifact stream.
	EventFetch = "fetch"
	// EventStream starts writing the opened stream into the inactive slot.
	EventStream = "stream"
	// EventVerify checks the written image once the stream ended.
	EventVerify = "verify"
	// EventCommit marks the verified slot as the next boot target.
	EventCommit = "commit"
	// EventFail ends the attempt from any non-terminal state.
	EventFail = "fail"
)

var errNotVerified = errors.New("slot image has not been verified")

func newStateMachine(a *attempt) *fsm.FSM {
	events := fsm.Events{
		{Name: EventFetch, Src: []string{string(core.StateIdle)}, Dst: string(core.StateFetching)},
		{Name: EventStream, Src: []string{string(core.StateFetching)}, Dst: string(core.StateWriting)},
		{Name: EventVerify, Src: []string{string(core.StateWriting)}, Dst: string(core.StateVerifying)},
		{Name: EventCommit, Src: []string{string(core.StateVerifying)}, Dst: string(core.StateCommitted)},
		{
			Name: EventFail,
			Src: []string{
				string(core.StateIdle),
				string(core.StateFetching),
				string(core.StateWriting),
				string(core.StateVerifying),
			},
			Dst: string(core.StateFailed),
		},
	}

	callbacks := fsm.Callbacks{
		// Guards
		"before_" + EventCommit: fsmutil.WrapGuard(a.guardCommit),

		// Side-effects
		"enter_" + string(core.StateFailed): fsmutil.WrapEvent(a.enterFailed),
		"enter_state":                       fsmutil.WrapEvent(a.enterState),
	}

	return fsm.NewFSM(string(core.StateIdle), events, callbacks)
}

// guardCommit refuses the commit unless verification passed, then commits
// the slot. A failed commit cancels the transition.
func (a *attempt) guardCommit(ctx context.Context, e *fsm.Event) error {
	if !a.verified {
		return errNotVerified
	}
	if err := a.writer.Commit(); err != nil {
		return core.NewError("commit slot", core.ErrWrite, err)
	}
	a.committed = true
	return nil
}

// enterFailed aborts the slot writer so a partial image never becomes bootable.
func (a *attempt) enterFailed(ctx context.Context, e *fsm.Event) error {
	if a.writer == nil {
		return nil
	}
	if err := a.writer.Abort(); err != nil {
		a.log.Error(err, "Failed to abort slot write")
	}
	a.writer = nil
	return nil
}

func (a *attempt) enterState(ctx context.Context, e *fsm.Event) error {
	a.progress(core.InstallState(e.Dst))
	return nil
}
