package fitting

import (
	"fmt"
	"strings"
	"time"
)

// Slot names one image input of the fitting form.
type Slot string

const (
	SlotHuman      Slot = "human"
	SlotGarment    Slot = "garment"
	SlotLower      Slot = "lower"
	SlotBackground Slot = "background"
)

// Slots lists every slot in form order.
var Slots = []Slot{SlotHuman, SlotGarment, SlotLower, SlotBackground}

// FieldName is the multipart field carrying the slot's file.
func (s Slot) FieldName() string {
	return string(s) + "_file"
}

// Valid reports whether s is one of the known slots.
func (s Slot) Valid() bool {
	switch s {
	case SlotHuman, SlotGarment, SlotLower, SlotBackground:
		return true
	}
	return false
}

// ParseSlot normalizes free-form input into a Slot.
func ParseSlot(v string) (Slot, error) {
	s := Slot(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("fitting: unknown slot %q", v)
	}
	return s, nil
}

// File is an uploaded or fetched image owned by a slot.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Size returns the payload length in bytes.
func (f *File) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// SlotSource records how a slot was populated.
type SlotSource string

const (
	SourceNone    SlotSource = ""
	SourceUpload  SlotSource = "upload"
	SourceSample  SlotSource = "sample"
	SourceProduct SlotSource = "product"
)

// UploadSlot is the observable state of one slot.
type UploadSlot struct {
	Slot            Slot       `json:"slot"`
	File            *File      `json:"-"`
	PreviewDataURL  string     `json:"preview_data_url,omitempty"`
	ValidationError string     `json:"validation_error,omitempty"`
	Source          SlotSource `json:"source,omitempty"`
}

// HasFile reports whether a file is currently selected.
func (u UploadSlot) HasFile() bool {
	return u.File != nil
}

// WorkflowRequest is the payload of one image-generation call.
type WorkflowRequest struct {
	Human          *File
	Garment        *File
	Lower          *File
	Background     *File
	ConnectionInfo string
	ProMode        bool
}

// Validate checks that the required slots are present.
func (r WorkflowRequest) Validate() error {
	var missing []string
	if r.Human == nil {
		missing = append(missing, string(SlotHuman))
	}
	if r.Garment == nil {
		missing = append(missing, string(SlotGarment))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSlots, strings.Join(missing, ", "))
	}
	return nil
}

// HasBackground reports whether a background image is attached.
func (r WorkflowRequest) HasBackground() bool {
	return r.Background != nil
}

func (r WorkflowRequest) files() map[Slot]*File {
	return map[Slot]*File{
		SlotHuman:      r.Human,
		SlotGarment:    r.Garment,
		SlotLower:      r.Lower,
		SlotBackground: r.Background,
	}
}

// Phase identifies which remote call the progress bar is tracking.
type Phase string

const (
	PhaseIdle  Phase = "idle"
	PhaseImage Phase = "image"
	PhaseVideo Phase = "video"
)

// ProgressState is the cosmetic progress shown while a run is in flight.
type ProgressState struct {
	Percent       int    `json:"percent"`
	Phase         Phase  `json:"phase"`
	StatusMessage string `json:"status_message,omitempty"`
}

// GenerationResult is the terminal output of one run.
type GenerationResult struct {
	ImageURL          string `json:"image_url,omitempty"`
	VideoURL          string `json:"video_url,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	VideoErrorMessage string `json:"video_error_message,omitempty"`
}

// Succeeded reports whether the image phase produced an output.
func (g GenerationResult) Succeeded() bool {
	return g.ImageURL != "" && g.ErrorMessage == ""
}

// State is a node of the per-run state machine.
type State string

const (
	StateIdle          State = "idle"
	StateValidating    State = "validating"
	StateAwaitingImage State = "awaiting_image"
	StateImageReady    State = "image_ready"
	StateAwaitingVideo State = "awaiting_video"
	StateVideoReady    State = "video_ready"
)

// Terminal reports whether no further transition happens without a new run.
func (s State) Terminal() bool {
	return s == StateImageReady || s == StateVideoReady
}

// NewConnectionInfo builds the correlation token sent with both upstream calls.
func NewConnectionInfo(clientID string, now time.Time) string {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		clientID = DefaultClientID
	}
	return fmt.Sprintf("%s_%d", clientID, now.UnixMilli())
}

// DefaultClientID identifies this shop to the workflow service when none is configured.
const DefaultClientID = "bogofit"
