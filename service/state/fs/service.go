// Package fs implements a filesystem-backed state store on top of viant/afs.
// Each workflow record is persisted as a single JSON document, so the store
// works against any afs scheme (file, mem, s3, gs, embed).
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/flowvia/flowvia/internal/clock"
	"github.com/flowvia/flowvia/model/types"
	"github.com/flowvia/flowvia/service/state"
)

// Service implements a filesystem-based state store
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.Mutex
}

// Ensure Service implements state.Store
var _ state.Store = (*Service)(nil)

// New creates a new filesystem state store rooted at basePath.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fsService := afs.New()
	ctx := context.Background()
	exists, _ := fsService.Exists(ctx, basePath)
	if !exists {
		if err := fsService.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	basePath = url.Normalize(basePath, file.Scheme)
	return &Service{basePath: basePath, fs: fsService}, nil
}

// Save persists a record as JSON.
func (s *Service) Save(ctx context.Context, workflowID string, record *state.Record) error {
	if record == nil {
		return types.NewStateError("cannot save nil record for workflow %q", workflowID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := record.Clone()
	stored.WorkflowID = workflowID
	stored.Normalize()
	if existing, err := s.load(ctx, workflowID); err == nil {
		stored.CreatedAt = existing.CreatedAt
	}
	stored.Touch()
	return s.upload(ctx, workflowID, stored)
}

// Get retrieves a record from the filesystem.
func (s *Service) Get(ctx context.Context, workflowID string) (*state.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, workflowID)
}

// Delete removes a record from the filesystem.
func (s *Service) Delete(ctx context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recordPath := s.recordPath(workflowID)
	exists, err := s.fs.Exists(ctx, recordPath)
	if err != nil {
		return fmt.Errorf("failed to check if record exists: %w", err)
	}
	if !exists {
		return nil
	}
	if err := s.fs.Delete(ctx, recordPath); err != nil {
		return fmt.Errorf("failed to delete record file %s: %w", recordPath, err)
	}
	return nil
}

// UpdateProgress sets the progress value and optionally the current step,
// rejecting values outside [0,1].
func (s *Service) UpdateProgress(ctx context.Context, workflowID string, progress float64, currentStep string) error {
	if progress < 0 || progress > 1 {
		return types.NewStateError("progress %v out of range [0,1] for workflow %q", progress, workflowID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.load(ctx, workflowID)
	if err != nil {
		return err
	}
	record.Progress = progress
	if currentStep != "" {
		record.CurrentStep = currentStep
	}
	record.Touch()
	return s.upload(ctx, workflowID, record)
}

// MarkStepCompleted idempotently records a completed step.
func (s *Service) MarkStepCompleted(ctx context.Context, workflowID, step string, output interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.load(ctx, workflowID)
	if err != nil {
		return err
	}
	if !record.HasCompleted(step) {
		record.StepsCompleted = append(record.StepsCompleted, step)
	}
	remaining := record.StepsRemaining[:0]
	for _, name := range record.StepsRemaining {
		if name != step {
			remaining = append(remaining, name)
		}
	}
	record.StepsRemaining = remaining
	if output != nil {
		record.Data[state.StepOutputKey(step)] = output
	}
	record.Touch()
	return s.upload(ctx, workflowID, record)
}

// CleanupExpired removes every record whose age exceeds maxAge.
func (s *Service) CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.list(ctx)
	if err != nil {
		return 0, err
	}
	now := clock.Now()
	removed := 0
	for _, record := range records {
		if maxAge <= 0 || now.Sub(record.CreatedAt) > maxAge {
			if err := s.fs.Delete(ctx, s.recordPath(record.WorkflowID)); err != nil {
				return removed, fmt.Errorf("failed to delete record file: %w", err)
			}
			removed++
		}
	}
	return removed, nil
}

// List returns all records from the filesystem.
func (s *Service) List(ctx context.Context) ([]*state.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx)
}

func (s *Service) list(ctx context.Context) ([]*state.Record, error) {
	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list record files: %w", err)
	}
	var records []*state.Record
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		var record state.Record
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

func (s *Service) load(ctx context.Context, workflowID string) (*state.Record, error) {
	recordPath := s.recordPath(workflowID)
	exists, err := s.fs.Exists(ctx, recordPath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if record exists: %w", err)
	}
	if !exists {
		return nil, &types.NotFoundError{Kind: "workflow state", ID: workflowID}
	}
	data, err := s.fs.DownloadWithURL(ctx, recordPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}
	var record state.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	// documents may round-trip null collections
	record.Normalize()
	return &record, nil
}

func (s *Service) upload(ctx context.Context, workflowID string, record *state.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	recordPath := s.recordPath(workflowID)
	if err := s.fs.Upload(ctx, recordPath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save record to file %s: %w", recordPath, err)
	}
	return nil
}

// recordPath returns the file path for a workflow record. Workflow ids may
// contain path separators; they are flattened so that one record maps to one
// file.
func (s *Service) recordPath(workflowID string) string {
	name := strings.ReplaceAll(workflowID, "/", "_")
	return path.Join(s.basePath, name+".json")
}
