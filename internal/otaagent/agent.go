package otaagent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/ota-agent/internal/otaagent/hal"
	"github.com/autopeer-io/ota-agent/internal/otaagent/hub"
	"github.com/autopeer-io/ota-agent/internal/otaagent/ota"
	"github.com/autopeer-io/ota-agent/internal/otaagent/release"
	"github.com/autopeer-io/ota-agent/internal/otaagent/scheduler"
	"github.com/autopeer-io/ota-agent/internal/otaagent/server"
	"github.com/autopeer-io/ota-agent/internal/otaagent/status"
	"github.com/autopeer-io/ota-agent/pkg/log"
	"github.com/autopeer-io/ota-agent/pkg/version"
)

var errNotStarted = errors.New("update loop not started")

type Agent struct {
	did string

	slots     *hal.SlotStore
	store     release.ObjectStore
	current   ota.VersionFunc
	scheduler *scheduler.Scheduler
	indicator *status.Indicator

	hub     *hub.Hub
	hubSink *status.NonBlocking
	http    *server.HTTPServer
	grpc    *server.GRPCServer

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ server.Agent = (*Agent)(nil)

// Run starts the update loop and the optional servers. It returns when ctx
// is canceled or after an installed update asked for a restart.
func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting cpeer-ota-agent", "device", a.did, "version", a.current(), "build", version.Get().String())

	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	defer cancel()

	if a.store != nil {
		checkCtx, checkCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.store.CheckBucket(checkCtx); err != nil {
			log.Warn("Release bucket is not reachable yet", "error", err)
		}
		checkCancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	schedulerDone := make(chan struct{})

	if a.http != nil {
		g.Go(func() error { return a.http.Start(gctx) })
	}
	if a.grpc != nil {
		g.Go(func() error { return a.grpc.Start(gctx) })
	}
	if a.hub != nil {
		g.Go(func() error {
			// The broker may be unreachable for a long time; updates do not depend on it.
			if err := a.hub.Start(gctx); err != nil {
				log.Warn("MQTT hub unavailable", "error", err)
			}
			<-schedulerDone
			a.stopHub()
			return nil
		})
	}

	g.Go(func() error {
		defer close(schedulerDone)
		defer cancel()

		a.running.Store(true)
		if a.grpc != nil {
			a.grpc.SetServing(true)
		}
		defer a.running.Store(false)

		return a.scheduler.Run(gctx)
	})

	err := g.Wait()
	log.Info("Agent shutting down...")
	return err
}

// stopHub delivers queued status events while the broker connection is
// still up, then announces the device offline.
func (a *Agent) stopHub() {
	a.hubSink.Close()
	a.hub.Stop()
}

// Trigger requests an update check.
func (a *Agent) Trigger() {
	a.scheduler.Trigger()
}

// SetInterval changes the check interval of the running loop.
func (a *Agent) SetInterval(d time.Duration) {
	a.scheduler.SetInterval(d)
}

func (a *Agent) Ready() error {
	if !a.running.Load() {
		return errNotStarted
	}
	return nil
}

func (a *Agent) Status() server.Status {
	snap := a.scheduler.Snapshot()

	st := server.Status{
		Device:     a.did,
		Version:    string(a.current()),
		AgentBuild: version.Get().String(),
		Interval:   snap.Interval.String(),
		Cycles:     snap.Cycles,
		InProgress: snap.InProgress,
		Indicator:  a.indicator.Pattern().Name,
	}
	if !snap.LastCheck.IsZero() {
		t := snap.LastCheck
		st.LastCheck = &t
	}
	if o := snap.LastOutcome; o != nil {
		last := &server.OutcomeStatus{
			Kind:  o.Kind.String(),
			Path:  string(o.Path),
			Cycle: o.Cycle,
		}
		if o.Release != nil {
			last.Version = string(o.Release.Version)
		}
		if o.Reason != nil {
			last.Reason = o.Reason.Error()
		}
		st.Last = last
	}

	env := a.slots.Env()
	st.Slots = &server.SlotStatus{Active: string(env.Active), NextBoot: string(env.NextBoot)}

	if a.hub != nil {
		st.Hub = &server.HubStatus{Connected: a.hub.IsConnected()}
	}
	return st
}

// shutdown ends Run. It backs the exit restart mode.
func (a *Agent) shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}
