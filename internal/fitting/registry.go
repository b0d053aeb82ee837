package fitting

import (
	"context"
	"errors"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

// DefaultRunTTL is how long a run stays addressable in memory.
const DefaultRunTTL = 30 * time.Minute

const persistTimeout = 5 * time.Second

// RunStore persists run outcomes beyond the in-memory TTL.
type RunStore interface {
	Create(ctx context.Context, run *domain.FittingRun) error
	Complete(ctx context.Context, run *domain.FittingRun) error
	GetByID(ctx context.Context, id string) (*domain.FittingRun, error)
}

// InputArchiver keeps a copy of the images a run was started with.
type InputArchiver interface {
	ArchiveInputs(ctx context.Context, runID string, files map[Slot]*File) error
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Invoker   Invoker
	ClientID  string
	ImageRamp time.Duration
	VideoRamp time.Duration
	Tick      time.Duration
	TTL       time.Duration
	Store     RunStore
	Archiver  InputArchiver
	Logger    *infra.Logger
}

// Run is one server-hosted fitting run.
type Run struct {
	ID        string
	ProductID string
	CreatedAt time.Time

	ctrl *Controller
	done chan struct{}
}

// RunSnapshot is the API view of a run.
type RunSnapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Done      bool      `json:"done"`
	Snapshot
}

// Done is closed once the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Snapshot returns the current state of the run.
func (r *Run) Snapshot() RunSnapshot {
	done := false
	select {
	case <-r.done:
		done = true
	default:
	}
	return RunSnapshot{ID: r.ID, CreatedAt: r.CreatedAt, Done: done, Snapshot: r.ctrl.Snapshot()}
}

// Subscribe streams progress snapshots until the run ends or cancel is called.
func (r *Run) Subscribe() (<-chan ProgressState, func()) {
	return r.ctrl.Simulator().Subscribe()
}

// Registry hosts fitting runs for HTTP clients. Runs outlive the request that
// started them and expire from memory after the configured TTL.
type Registry struct {
	opts   RegistryOptions
	runs   *ttlworker.Cache[string, *Run]
	logger *infra.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a registry. Invoker is required.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Invoker == nil {
		return nil, errors.New("fitting: registry requires an invoker")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultRunTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		opts:   opts,
		runs:   ttlworker.NewCache[string, *Run](opts.TTL),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start launches a run over form in the background. The form must not be
// mutated afterwards.
func (r *Registry) Start(form *Form, pro bool, productID string) (*Run, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	run := &Run{ID: id, ProductID: productID, CreatedAt: time.Now().UTC(), done: make(chan struct{})}
	run.ctrl = NewController(ControllerOptions{
		Invoker:    r.opts.Invoker,
		Form:       form,
		Simulator:  NewSimulator(SimulatorOptions{Tick: r.opts.Tick}),
		ClientID:   r.opts.ClientID,
		ImageRamp:  r.opts.ImageRamp,
		VideoRamp:  r.opts.VideoRamp,
		Logger:     r.logger,
		OnTerminal: func(s Snapshot) { r.complete(run, s) },
	})

	r.persistStart(run, form, pro)
	r.runs.Set(id, run)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(run.done)
		defer run.ctrl.Close()
		if _, err := run.ctrl.Run(r.ctx, pro); err != nil {
			r.logger.Error().Err(err).Str("run_id", id).Msg("fitting: run refused")
		}
	}()
	r.logger.Info().Str("run_id", id).Bool("pro", pro).Msg("fitting: run started")
	return run, nil
}

// Get returns a live run.
func (r *Registry) Get(id string) (*Run, error) {
	run := r.runs.Get(id)
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// Lookup returns a run's snapshot from memory, falling back to the store for
// runs that already expired.
func (r *Registry) Lookup(ctx context.Context, id string) (RunSnapshot, error) {
	if run, err := r.Get(id); err == nil {
		return run.Snapshot(), nil
	}
	if r.opts.Store == nil {
		return RunSnapshot{}, ErrRunNotFound
	}
	rec, err := r.opts.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return RunSnapshot{}, ErrRunNotFound
		}
		return RunSnapshot{}, err
	}
	return SnapshotFromRecord(rec), nil
}

// Wait blocks until the run finishes or ctx ends.
func (r *Registry) Wait(ctx context.Context, id string) (RunSnapshot, error) {
	run, err := r.Get(id)
	if err != nil {
		return RunSnapshot{}, err
	}
	select {
	case <-run.Done():
		return run.Snapshot(), nil
	case <-ctx.Done():
		return run.Snapshot(), ctx.Err()
	}
}

// Close cancels in-flight runs and waits for them to record their outcome.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
	r.runs.Destroy()
}

func (r *Registry) persistStart(run *Run, form *Form, pro bool) {
	if r.opts.Archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		req := form.Request("", pro)
		if err := r.opts.Archiver.ArchiveInputs(ctx, run.ID, req.files()); err != nil {
			r.logger.Warn().Err(err).Str("run_id", run.ID).Msg("fitting: archive inputs failed")
		}
		cancel()
	}
	if r.opts.Store == nil {
		return
	}
	rec := &domain.FittingRun{ID: run.ID, Status: domain.FittingRunRunning, ProMode: pro}
	if run.ProductID != "" {
		pid := run.ProductID
		rec.ProductID = &pid
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.opts.Store.Create(ctx, rec); err != nil {
		r.logger.Warn().Err(err).Str("run_id", run.ID).Msg("fitting: persist run start failed")
	}
}

func (r *Registry) complete(run *Run, s Snapshot) {
	r.logger.Info().
		Str("run_id", run.ID).
		Str("state", string(s.State)).
		Bool("has_image", s.Result.ImageURL != "").
		Bool("has_video", s.Result.VideoURL != "").
		Str("error", s.Result.ErrorMessage).
		Msg("fitting: run finished")
	if r.opts.Store == nil {
		return
	}
	rec := RecordFromSnapshot(run.ID, s)
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.opts.Store.Complete(ctx, rec); err != nil {
		r.logger.Warn().Err(err).Str("run_id", run.ID).Msg("fitting: persist run outcome failed")
	}
}

// RecordFromSnapshot converts a terminal controller snapshot to its stored form.
func RecordFromSnapshot(id string, s Snapshot) *domain.FittingRun {
	status := domain.FittingRunSucceeded
	if !s.Result.Succeeded() {
		status = domain.FittingRunFailed
	}
	return &domain.FittingRun{
		ID:             id,
		Status:         status,
		ProMode:        s.ProMode,
		ConnectionInfo: s.ConnectionInfo,
		ImageURL:       s.Result.ImageURL,
		VideoURL:       s.Result.VideoURL,
		ErrorMessage:   s.Result.ErrorMessage,
		VideoError:     s.Result.VideoErrorMessage,
	}
}

// SnapshotFromRecord rebuilds the API view of a persisted run.
func SnapshotFromRecord(rec *domain.FittingRun) RunSnapshot {
	snap := RunSnapshot{ID: rec.ID, CreatedAt: rec.CreatedAt, Done: rec.Terminal()}
	snap.ProMode = rec.ProMode
	snap.ConnectionInfo = rec.ConnectionInfo
	snap.Processing = rec.Status == domain.FittingRunRunning
	snap.Result = GenerationResult{
		ImageURL:          rec.ImageURL,
		VideoURL:          rec.VideoURL,
		ErrorMessage:      rec.ErrorMessage,
		VideoErrorMessage: rec.VideoError,
	}
	switch {
	case rec.VideoURL != "":
		snap.State = StateVideoReady
	case rec.ImageURL != "":
		snap.State = StateImageReady
	case rec.Status == domain.FittingRunRunning:
		snap.State = StateAwaitingImage
	default:
		snap.State = StateIdle
	}
	snap.Progress = ProgressState{Phase: PhaseIdle, StatusMessage: lo.CoalesceOrEmpty(rec.ErrorMessage, rec.VideoError)}
	if rec.Terminal() && rec.Status == domain.FittingRunSucceeded {
		snap.Progress.Percent = 100
	}
	return snap
}
