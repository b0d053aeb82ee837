package fitting

import (
	"context"
	"sync"
	"time"

	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

const (
	// DefaultImageRamp approximates a typical image call.
	DefaultImageRamp = 19 * time.Second
	// DefaultVideoRamp approximates a typical video call.
	DefaultVideoRamp = 10 * time.Second

	imageRampFrom     = 5
	imageRampTo       = 100
	imageDonePercent  = 90
	videoDonePercent  = 100
	videoFailedStatus = "Video generation failed. The generated image is kept."
)

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Invoker   Invoker
	Form      *Form
	Simulator *Simulator
	ClientID  string
	ImageRamp time.Duration
	VideoRamp time.Duration
	Now       func() time.Time
	Logger    *infra.Logger
	// OnTerminal receives the result of every run that reaches a terminal state.
	OnTerminal func(Snapshot)
}

// Snapshot is the observable state of a controller.
type Snapshot struct {
	State          State            `json:"state"`
	Processing     bool             `json:"processing"`
	Progress       ProgressState    `json:"progress"`
	Result         GenerationResult `json:"result"`
	ConnectionInfo string           `json:"connection_info,omitempty"`
	ProMode        bool             `json:"pro_mode"`
}

// Controller owns one fitting session: its form, its progress simulator and
// the per-run state machine.
type Controller struct {
	invoker    Invoker
	form       *Form
	sim        *Simulator
	clientID   string
	imageRamp  time.Duration
	videoRamp  time.Duration
	now        func() time.Time
	logger     *infra.Logger
	onTerminal func(Snapshot)

	mu         sync.Mutex
	state      State
	processing bool
	result     GenerationResult
	connInfo   string
	proMode    bool
	runID      uint64
	cancelRun  context.CancelFunc
}

// NewController wires a controller. A nil Form or Simulator is replaced by a
// fresh default one.
func NewController(opts ControllerOptions) *Controller {
	form := opts.Form
	if form == nil {
		form = NewForm(FormOptions{Logger: opts.Logger})
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sim := opts.Simulator
	if sim == nil {
		sim = NewSimulator(SimulatorOptions{Now: now})
	}
	imageRamp := opts.ImageRamp
	if imageRamp <= 0 {
		imageRamp = DefaultImageRamp
	}
	videoRamp := opts.VideoRamp
	if videoRamp <= 0 {
		videoRamp = DefaultVideoRamp
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Controller{
		invoker:    opts.Invoker,
		form:       form,
		sim:        sim,
		clientID:   opts.ClientID,
		imageRamp:  imageRamp,
		videoRamp:  videoRamp,
		now:        now,
		logger:     logger,
		onTerminal: opts.OnTerminal,
		state:      StateIdle,
	}
}

// Form returns the controller's upload form.
func (c *Controller) Form() *Form { return c.form }

// Simulator returns the controller's progress simulator.
func (c *Controller) Simulator() *Simulator { return c.sim }

// Run executes one fitting run to a terminal state. The only error is ErrBusy;
// every other failure is reported through the result's messages.
func (c *Controller) Run(ctx context.Context, pro bool) (GenerationResult, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return GenerationResult{}, ErrBusy
	}
	c.processing = true
	c.runID++
	id := c.runID
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	c.state = StateValidating
	c.result = GenerationResult{}
	c.proMode = pro
	c.connInfo = NewConnectionInfo(c.clientID, c.now())
	connInfo := c.connInfo
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		if c.runID == id {
			c.processing = false
			c.cancelRun = nil
		}
		c.mu.Unlock()
	}()

	req := c.form.Request(connInfo, pro)
	if err := req.Validate(); err != nil {
		out := Outcome{Kind: OutcomeMissingSlots, Cause: err}
		return c.fail(id, out.Message()), nil
	}

	if !c.owned(id, func() {
		c.state = StateAwaitingImage
		c.sim.Set(ProgressState{Percent: imageRampFrom, Phase: PhaseImage, StatusMessage: "Generating your fitting image..."})
		c.sim.Ramp(imageRampFrom, imageRampTo, c.imageRamp)
	}) {
		return GenerationResult{}, nil
	}

	out := c.invoker.GenerateImage(runCtx, req)
	if !out.Succeeded() {
		return c.fail(id, out.Message()), nil
	}

	if !c.owned(id, func() {
		c.sim.Cancel()
		c.result.ImageURL = out.ImageURL
		c.state = StateImageReady
		if !pro {
			c.sim.Set(ProgressState{Percent: videoDonePercent, Phase: PhaseIdle, StatusMessage: out.Message()})
			return
		}
		c.state = StateAwaitingVideo
		c.sim.Set(ProgressState{Percent: imageDonePercent, Phase: PhaseVideo, StatusMessage: "Image ready. Generating video..."})
		c.sim.Ramp(imageDonePercent, videoDonePercent, c.videoRamp)
	}) {
		return GenerationResult{}, nil
	}
	if !pro {
		return c.finish(id), nil
	}

	videoURL, err := c.invoker.GenerateVideo(runCtx, out.ImageURL, connInfo)
	if !c.owned(id, func() {
		c.sim.Cancel()
		if err != nil {
			c.result.VideoErrorMessage = videoFailedStatus
			c.state = StateImageReady
			c.sim.Set(ProgressState{Percent: imageDonePercent, Phase: PhaseIdle, StatusMessage: videoFailedStatus})
			return
		}
		c.result.VideoURL = videoURL
		c.state = StateVideoReady
		c.sim.Set(ProgressState{Percent: videoDonePercent, Phase: PhaseIdle, StatusMessage: "Video generated."})
	}) {
		return GenerationResult{}, nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("connection_info", connInfo).Msg("fitting: keeping image after video failure")
	}
	return c.finish(id), nil
}

// owned runs fn under the controller lock if run id is still the current
// one. Every simulator change a run makes goes through here, so a run that
// was reset away cannot touch its successor's progress.
func (c *Controller) owned(id uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runID != id {
		return false
	}
	fn()
	return true
}

func (c *Controller) fail(id uint64, msg string) GenerationResult {
	if !c.owned(id, func() {
		c.sim.Cancel()
		progress := c.sim.Snapshot()
		c.state = StateIdle
		c.result = GenerationResult{ErrorMessage: msg}
		c.sim.Set(ProgressState{Percent: progress.Percent, Phase: PhaseIdle, StatusMessage: msg})
	}) {
		return GenerationResult{}
	}
	return c.finish(id)
}

func (c *Controller) finish(id uint64) GenerationResult {
	c.mu.Lock()
	if c.runID != id {
		c.mu.Unlock()
		return GenerationResult{}
	}
	c.processing = false
	c.cancelRun = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if c.onTerminal != nil {
		c.onTerminal(snap)
	}
	return snap.Result
}

// Processing reports whether a run is in flight.
func (c *Controller) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// Snapshot returns the controller's current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:          c.state,
		Processing:     c.processing,
		Progress:       c.sim.Snapshot(),
		Result:         c.result,
		ConnectionInfo: c.connInfo,
		ProMode:        c.proMode,
	}
}

// Reset abandons any in-flight run and re-initializes all state, including
// the form.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.runID++
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	c.processing = false
	c.state = StateIdle
	c.result = GenerationResult{}
	c.connInfo = ""
	c.proMode = false
	c.sim.Cancel()
	c.sim.Set(ProgressState{Phase: PhaseIdle})
	c.mu.Unlock()
	c.form.Reset()
}

// Close tears the controller down: the in-flight run is cancelled and no
// timer survives.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancelRun != nil {
		c.cancelRun()
	}
	c.mu.Unlock()
	c.sim.Close()
}
