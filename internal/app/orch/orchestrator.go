// Package orch runs the call session state machine. Every input, whether a
// user intent, a signaling event, a transport callback or a timer, is queued
// and applied on the single goroutine running Run.
package orch

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/randomic/internal/app"
	"github.com/dkeye/randomic/internal/clock"
	"github.com/dkeye/randomic/internal/config"
	"github.com/dkeye/randomic/internal/core"
	"github.com/dkeye/randomic/internal/domain"
	"github.com/dkeye/randomic/internal/metrics"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("orchestrator stopped")

const queueSize = 64

var (
	_ core.SignalHandler    = (*Orchestrator)(nil)
	_ core.TransportHandler = (*Orchestrator)(nil)
)

// PrefsStore persists the user preference pair.
type PrefsStore interface {
	Load() (domain.Preferences, error)
	Save(domain.Preferences) error
}

// Deps are the collaborators known at construction time. The signaling
// channel and the transport peer need the orchestrator as their handler, so
// they are attached later with Bind.
type Deps struct {
	Media   core.MediaManager
	Prefs   PrefsStore
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Policy  app.Policy
}

type Orchestrator struct {
	cfg       config.CallConfig
	media     core.MediaManager
	signal    core.SignalChannel
	transport core.TransportPeer
	store     PrefsStore
	clock     clock.Clock
	metrics   *metrics.Metrics
	policy    app.Policy
	logger    zerolog.Logger

	queue   chan func()
	stopped chan struct{}

	// Everything below is owned by the Run goroutine.
	fsm         *fsm.FSM
	runCtx      context.Context
	epoch       uint64
	epochCtx    context.Context
	epochCancel context.CancelFunc
	findCancel  context.CancelFunc
	searchedAs  domain.PeerID

	stream  core.LocalStream
	match   *domain.Match
	attempt core.CallAttempt

	deadline timerSlot
	dialWait timerSlot
	grace    timerSlot
	tick     timerSlot
	notice   timerSlot
	timerSeq uint64

	muted        bool
	duration     int
	transcript   []domain.Message
	unread       int
	online       int
	prefs        domain.Preferences
	notification *domain.Notification

	snapMu  sync.RWMutex
	snap    domain.Snapshot
	subs    map[int]chan domain.Snapshot
	nextSub int
}

func New(cfg config.CallConfig, deps Deps) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		media:   deps.Media,
		store:   deps.Prefs,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		policy:  deps.Policy,
		logger:  log.With().Str("module", "orch").Logger(),
		queue:   make(chan func(), queueSize),
		stopped: make(chan struct{}),
		subs:    make(map[int]chan domain.Snapshot),
		prefs:   domain.DefaultPreferences(),
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewUnregistered()
	}
	if o.policy == nil {
		o.policy = app.AttemptPolicy{MaxAttempts: cfg.ConnectAttempts}
	}
	if o.store != nil {
		p, err := o.store.Load()
		if err != nil {
			o.logger.Warn().Err(err).Msg("preferences unreadable, using defaults")
		} else {
			o.prefs = p
		}
	}
	o.runCtx = context.Background()
	o.epochCtx, o.epochCancel = context.WithCancel(o.runCtx)
	o.fsm = newSessionFSM(o.onEnterState)
	o.snap = o.buildSnapshot()
	return o
}

// Bind attaches the signaling channel and the transport peer. It must be
// called before Run.
func (o *Orchestrator) Bind(signal core.SignalChannel, transport core.TransportPeer) {
	o.signal = signal
	o.transport = transport
}

// Run applies queued events until ctx is done, then releases every resource.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.signal == nil || o.transport == nil {
		return errors.New("orchestrator: Bind was not called")
	}
	o.runCtx = ctx
	o.epochCancel()
	o.epochCtx, o.epochCancel = context.WithCancel(ctx)
	defer close(o.stopped)

	o.logger.Info().Str("status", string(o.status())).Msg("orchestrator running")
	for {
		select {
		case <-ctx.Done():
			if err := o.teardown(); err != nil {
				o.logger.Warn().Err(err).Msg("shutdown teardown")
			}
			o.disarm(&o.notice)
			o.logger.Info().Msg("orchestrator stopped")
			return nil
		case fn := <-o.queue:
			fn()
		}
	}
}

// post queues fn for the Run goroutine. It never runs fn inline.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.queue <- fn:
	case <-o.stopped:
	}
}

// do queues fn and waits until it has been applied.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	select {
	case o.queue <- func() { done <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrStopped
	}
}
