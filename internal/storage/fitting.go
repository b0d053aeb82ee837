package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/291e/bogofit-shop-sub001/internal/fitting"
	"github.com/291e/bogofit-shop-sub001/pkg/zip"
)

const fittingPrefix = "fitting"

// FittingArchive keeps the input images of fitting runs in a FileStore.
type FittingArchive struct {
	store *FileStore
}

// NewFittingArchive wraps store.
func NewFittingArchive(store *FileStore) *FittingArchive {
	return &FittingArchive{store: store}
}

// InputKey is where one slot's input of a run is stored.
func InputKey(runID string, slot fitting.Slot, mime string) string {
	return path.Join(fittingPrefix, runID, string(slot)+ExtensionForMIME(mime))
}

// ArchiveInputs implements fitting.InputArchiver. Every slot is attempted;
// failures are reported together.
func (a *FittingArchive) ArchiveInputs(ctx context.Context, runID string, files map[fitting.Slot]*fitting.File) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("storage: run id is required")
	}
	var result *multierror.Error
	for _, slot := range fitting.Slots {
		file := files[slot]
		if file == nil {
			continue
		}
		if _, err := a.store.Write(ctx, InputKey(runID, slot, file.MIME), file.Data); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", slot, err))
		}
	}
	return result.ErrorOrNil()
}

// Inputs lists the archived input keys of a run.
func (a *FittingArchive) Inputs(ctx context.Context, runID string) ([]string, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("storage: run id is required")
	}
	return a.store.List(ctx, path.Join(fittingPrefix, runID))
}

// Zip bundles a run's archived inputs. It returns ErrNotFound when nothing
// was archived for the run.
func (a *FittingArchive) Zip(ctx context.Context, runID string) ([]byte, error) {
	keys, err := a.Inputs(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	assets := make([]zip.Asset, 0, len(keys))
	for _, key := range keys {
		data, err := a.store.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		assets = append(assets, zip.Asset{Filename: path.Base(key), Data: data})
	}
	return zip.ArchiveAssets(assets)
}

var _ fitting.InputArchiver = (*FittingArchive)(nil)
