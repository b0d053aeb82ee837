package fitting

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

// ImageFetcher downloads a remote image and wraps it as an uploadable file.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*File, error)
}

// FormOptions configures a Form.
type FormOptions struct {
	Validator Validator
	Fetcher   ImageFetcher
	Logger    *infra.Logger
	// Decode overrides the decodability check, mainly for tests.
	Decode func(*File) error
}

type slotEntry struct {
	UploadSlot
	gen uint64
}

// Form owns the four upload slots of a fitting run and keeps every preview
// consistent with the file it was derived from.
type Form struct {
	mu        sync.Mutex
	slots     map[Slot]*slotEntry
	validator Validator
	fetcher   ImageFetcher
	logger    *infra.Logger
	decode    func(*File) error
}

// NewForm creates an empty form.
func NewForm(opts FormOptions) *Form {
	validator := opts.Validator
	if len(validator.AllowedMIME) == 0 {
		validator.AllowedMIME = DefaultAllowedMIME
	}
	decode := opts.Decode
	if decode == nil {
		decode = CheckDecodable
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	f := &Form{
		slots:     make(map[Slot]*slotEntry, len(Slots)),
		validator: validator,
		fetcher:   opts.Fetcher,
		logger:    logger,
		decode:    decode,
	}
	for _, s := range Slots {
		f.slots[s] = &slotEntry{UploadSlot: UploadSlot{Slot: s}}
	}
	return f
}

// SetFromUpload validates file and, once it decodes, makes it the slot's file
// with a derived preview. A type or size rejection records the reason and
// leaves the current file untouched; a decode failure clears the slot. If
// another selection, accepted or rejected, lands on the slot while the file
// is being decoded, the older result is dropped.
func (f *Form) SetFromUpload(ctx context.Context, slot Slot, file *File) error {
	return f.set(ctx, slot, file, SourceUpload)
}

func (f *Form) set(ctx context.Context, slot Slot, file *File, source SlotSource) error {
	if !slot.Valid() {
		return &SlotError{Slot: slot, Reason: "unknown slot"}
	}

	f.mu.Lock()
	entry := f.slots[slot]
	if err := f.validator.Validate(file); err != nil {
		// A selection still decoding must not overwrite this error.
		entry.gen++
		entry.ValidationError = err.Error()
		f.mu.Unlock()
		return &SlotError{Slot: slot, Reason: err.Error()}
	}
	entry.gen++
	gen := entry.gen
	f.mu.Unlock()

	decodeErr := f.decode(file)
	if decodeErr == nil {
		decodeErr = ctx.Err()
	}
	var preview string
	if decodeErr == nil {
		preview = DataURL(file)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.gen != gen {
		f.logger.Debug().Str("slot", string(slot)).Msg("fitting: dropped superseded selection")
		return nil
	}
	if decodeErr != nil {
		entry.clear(decodeErr.Error())
		return &SlotError{Slot: slot, Reason: decodeErr.Error()}
	}
	entry.File = file
	entry.PreviewDataURL = preview
	entry.ValidationError = ""
	entry.Source = source
	return nil
}

// SetFromSample installs a curated sample image without validation.
func (f *Form) SetFromSample(slot Slot, file *File) error {
	if !slot.Valid() {
		return &SlotError{Slot: slot, Reason: "unknown slot"}
	}
	if file == nil {
		return &SlotError{Slot: slot, Reason: "sample image is empty"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.slots[slot]
	entry.gen++
	entry.File = file
	entry.PreviewDataURL = DataURL(file)
	entry.ValidationError = ""
	entry.Source = SourceSample
	return nil
}

// SeedSamples downloads the given sample images concurrently and installs
// them. The first download failure aborts the whole batch.
func (f *Form) SeedSamples(ctx context.Context, samples map[Slot]string) error {
	if len(samples) == 0 {
		return nil
	}
	if f.fetcher == nil {
		return errors.New("fitting: no image fetcher configured")
	}
	type fetched struct {
		slot Slot
		file *File
	}
	for slot := range samples {
		if !slot.Valid() {
			return &SlotError{Slot: slot, Reason: "unknown slot"}
		}
	}
	results := make(chan fetched, len(samples))
	eg, egCtx := errgroup.WithContext(ctx)
	for slot, rawURL := range samples {
		slot, rawURL := slot, rawURL
		eg.Go(func() error {
			file, err := f.fetcher.Fetch(egCtx, rawURL)
			if err != nil {
				return &SlotError{Slot: slot, Reason: "sample could not be loaded: " + err.Error()}
			}
			results <- fetched{slot: slot, file: file}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	close(results)
	for r := range results {
		if err := f.SetFromSample(r.slot, r.file); err != nil {
			return err
		}
	}
	return nil
}

// SeedFromProductImage fills the slot matching category with the product's
// own image. Seeding is a convenience: download or validation failures are
// logged and skipped. It reports which slot, if any, was seeded.
func (f *Form) SeedFromProductImage(ctx context.Context, rawURL, category string) (Slot, bool) {
	slot, ok := SlotForCategory(category)
	if !ok || rawURL == "" {
		return "", false
	}
	if f.fetcher == nil {
		f.logger.Warn().Str("category", category).Msg("fitting: no fetcher for product image seeding")
		return "", false
	}
	file, err := f.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", rawURL).Msg("fitting: product image seeding skipped")
		return "", false
	}
	if err := f.set(ctx, slot, file, SourceProduct); err != nil {
		f.logger.Warn().Err(err).Str("url", rawURL).Msg("fitting: product image rejected")
		return "", false
	}
	return slot, true
}

// Clear empties one slot.
func (f *Form) Clear(slot Slot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.slots[slot]; ok {
		entry.gen++
		entry.clear("")
	}
}

// Reset empties every slot, e.g. when the product context changes.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.slots {
		entry.gen++
		entry.clear("")
	}
}

// Slot returns a copy of one slot's state.
func (f *Form) Slot(slot Slot) UploadSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.slots[slot]; ok {
		return entry.UploadSlot
	}
	return UploadSlot{Slot: slot}
}

// Snapshot returns every slot in form order.
func (f *Form) Snapshot() []UploadSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]UploadSlot, 0, len(Slots))
	for _, s := range Slots {
		out = append(out, f.slots[s].UploadSlot)
	}
	return out
}

// Request builds a workflow request from the currently selected files.
func (f *Form) Request(connectionInfo string, pro bool) WorkflowRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return WorkflowRequest{
		Human:          f.slots[SlotHuman].File,
		Garment:        f.slots[SlotGarment].File,
		Lower:          f.slots[SlotLower].File,
		Background:     f.slots[SlotBackground].File,
		ConnectionInfo: connectionInfo,
		ProMode:        pro,
	}
}

func (e *slotEntry) clear(reason string) {
	e.File = nil
	e.PreviewDataURL = ""
	e.ValidationError = reason
	e.Source = SourceNone
}

// DataURL renders a file as an inline preview.
func DataURL(file *File) string {
	if file == nil {
		return ""
	}
	mime := normalizeMIME(file.MIME)
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(file.Data)
}
