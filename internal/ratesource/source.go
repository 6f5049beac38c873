package ratesource

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/storage"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

// defaultPlansJSON ships a starter plan set so the service prices bills out
// of the box with no external data configured.
//
//go:embed plans.json
var defaultPlansJSON []byte

// ErrNoSnapshot is returned by StorageSource when no snapshot has been
// persisted for the upstream yet.
var ErrNoSnapshot = errors.New("no plan snapshot persisted")

// FileSource reads a plans document from a file on disk, or from the
// embedded default set when no path is configured.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Fetch(ctx context.Context) ([]*tariff.RateStructure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := defaultPlansJSON
	if s.path != "" {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("read plans file: %w", err)
		}
		data = b
	}
	return DecodePlans(data)
}

// StorageSource replays the most recent persisted snapshot of an upstream
// source, so a restarted instance can rebuild its catalog without the
// upstream being reachable.
type StorageSource struct {
	store    storage.Storage
	upstream string
}

func NewStorageSource(store storage.Storage, upstream string) *StorageSource {
	return &StorageSource{store: store, upstream: upstream}
}

func (s *StorageSource) Name() string { return "storage" }

func (s *StorageSource) Fetch(ctx context.Context) ([]*tariff.RateStructure, error) {
	snap, err := s.store.GetPlanSnapshot(ctx, s.upstream)
	if err != nil {
		return nil, fmt.Errorf("load plan snapshot: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w for source %q", ErrNoSnapshot, s.upstream)
	}
	return DecodePlans(snap.Payload)
}
