// Package definition loads workflow definitions from YAML documents stored
// on any location the afs service understands (file, embed, mem, s3, ...)
// and keeps a cache keyed by workflow id.
package definition

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"gopkg.in/yaml.v3"

	"github.com/flowvia/flowvia/model"
	"github.com/flowvia/flowvia/model/types"
)

// Service is the workflow definition DAO.
type Service struct {
	fs        afs.Service
	fsOptions []storage.Option
	mu        sync.RWMutex
	cache     map[string]*model.Definition
}

// New creates a new definition service. The storage options are passed to
// every filesystem operation, enabling embedded or remote locations.
func New(fsOptions ...storage.Option) *Service {
	return &Service{
		fs:        afs.New(),
		fsOptions: fsOptions,
		cache:     make(map[string]*model.Definition),
	}
}

// DecodeYAML decodes a workflow definition from YAML.
func (s *Service) DecodeYAML(encoded []byte) (*model.Definition, error) {
	definition := &model.Definition{}
	if err := yaml.Unmarshal(encoded, definition); err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}
	return definition, nil
}

// Load reads, decodes and validates the definition at the specified URL and
// caches it by workflow id. When the document carries no id the file name
// without extension is used.
func (s *Service) Load(ctx context.Context, URL string) (*model.Definition, error) {
	if filepath.Ext(URL) == "" {
		URL += ".yaml"
	}
	data, err := s.fs.DownloadWithURL(ctx, URL, s.fsOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow definition from %s: %w", URL, err)
	}
	definition, err := s.DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition from %s: %w", URL, err)
	}
	if definition.ID == "" {
		definition.ID = nameFromURL(URL)
	}
	if definition.Name == "" {
		definition.Name = definition.ID
	}
	if err := definition.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[definition.ID] = definition
	s.mu.Unlock()
	return definition, nil
}

// Refresh re-reads the definition at the URL, replacing the cached copy.
func (s *Service) Refresh(ctx context.Context, URL string) (*model.Definition, error) {
	return s.Load(ctx, URL)
}

// Lookup returns the cached definition for a workflow id.
func (s *Service) Lookup(id string) (*model.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	definition, ok := s.cache[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "workflow definition", ID: id}
	}
	return definition, nil
}

// Definitions returns the cached definitions.
func (s *Service) Definitions() []*model.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	definitions := make([]*model.Definition, 0, len(s.cache))
	for _, definition := range s.cache {
		definitions = append(definitions, definition)
	}
	return definitions
}

// Upsert validates the definition, writes it as YAML to the URL and updates
// the cache.
func (s *Service) Upsert(ctx context.Context, URL string, definition *model.Definition) error {
	if definition == nil || definition.ID == "" {
		return types.NewStateError("workflow definition requires an id")
	}
	if err := definition.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(definition)
	if err != nil {
		return fmt.Errorf("failed to encode workflow definition %v: %w", definition.ID, err)
	}
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data), s.fsOptions...); err != nil {
		return fmt.Errorf("failed to store workflow definition at %s: %w", URL, err)
	}
	s.mu.Lock()
	s.cache[definition.ID] = definition
	s.mu.Unlock()
	return nil
}

// LoadAll loads every YAML document under baseURL recursively.
func (s *Service) LoadAll(ctx context.Context, baseURL string) ([]*model.Definition, error) {
	options := append([]storage.Option{option.NewRecursive(true)}, s.fsOptions...)
	objects, err := s.fs.List(ctx, baseURL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow definitions at %s: %w", baseURL, err)
	}
	var definitions []*model.Definition
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		switch filepath.Ext(object.Name()) {
		case ".yaml", ".yml":
		default:
			continue
		}
		definition, err := s.Load(ctx, object.URL())
		if err != nil {
			return nil, err
		}
		definitions = append(definitions, definition)
	}
	return definitions, nil
}

// nameFromURL extracts the workflow name from a URL (file name without
// extension).
func nameFromURL(URL string) string {
	base := filepath.Base(URL)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
