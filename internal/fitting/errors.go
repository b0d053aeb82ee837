package fitting

import "errors"

var (
	// ErrMissingSlots is returned when human or garment is absent.
	ErrMissingSlots = errors.New("fitting: human and garment images are required")
	// ErrBusy is returned when a run is already in flight on the controller.
	ErrBusy = errors.New("fitting: a run is already in progress")
	// ErrRunNotFound is returned by the registry for unknown or expired runs.
	ErrRunNotFound = errors.New("fitting: run not found")
	// ErrVideoFailed wraps every failure of the chained video call.
	ErrVideoFailed = errors.New("fitting: video generation failed")
	// ErrUnsupportedCategory is returned when a product category maps to no slot.
	ErrUnsupportedCategory = errors.New("fitting: unsupported product category")
)

// SlotError is a per-slot pre-flight validation failure.
type SlotError struct {
	Slot   Slot
	Reason string
}

func (e *SlotError) Error() string {
	return string(e.Slot) + ": " + e.Reason
}
