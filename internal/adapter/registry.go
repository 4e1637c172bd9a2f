// internal/adapter/registry.go

// Package adapter manages named extraction rule-sets: loading, seeding,
// validation, and durable persistence as YAML files.
package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

// ReservedName is the adapter that always exists and cannot be deleted.
const ReservedName = "default"

var logger = utils.NewComponentLogger("adapter-registry")

// Registry stores adapters as YAML files under a directory, read-through
// with no caching. Adapters change rarely; staleness is not a concern.
type Registry struct {
	dir string
	mu  sync.Mutex // serializes file writes
}

// NewRegistry opens (creating if needed) a registry rooted at dir and seeds
// the default adapters that are not already present.
func NewRegistry(dir string) (*Registry, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, utils.NewError(utils.ErrCodeInvalidConfig, "adapter directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to create adapter directory %s", dir))
	}

	r := &Registry{dir: dir}
	for name, a := range seedAdapters() {
		if _, err := os.Stat(r.path(name)); os.IsNotExist(err) {
			if err := r.Save(name, a); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Get loads an adapter by name. Unknown names fall back to the default
// adapter rather than erroring; this is deliberate policy so a batch
// submitted with a stale adapter name still produces generic results.
// Use GetStrict when the caller needs the NotFound error.
func (r *Registry) Get(name string) (*types.Adapter, error) {
	a, err := r.GetStrict(name)
	if err == nil {
		return a, nil
	}
	if utils.CodeOf(err) == utils.ErrCodeAdapterNotFound && name != ReservedName {
		logger.Warnf("adapter %q not found, falling back to %q", name, ReservedName)
		return r.GetStrict(ReservedName)
	}
	return nil, err
}

// GetStrict loads an adapter by name, failing with AdapterNotFound for
// unknown names.
func (r *Registry) GetStrict(name string) (*types.Adapter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path(name))
	if os.IsNotExist(err) {
		return nil, utils.NewErrorf(utils.ErrCodeAdapterNotFound, "adapter %q not found", name)
	}
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidAdapterSchema,
			fmt.Sprintf("failed to read adapter %q", name))
	}

	var a types.Adapter
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidAdapterSchema,
			fmt.Sprintf("adapter %q is not valid YAML", name))
	}
	a.Name = name
	if err := a.Validate(); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidAdapterSchema,
			fmt.Sprintf("adapter %q failed validation", name))
	}
	return &a, nil
}

// Save stores an adapter under name with full-replace upsert semantics.
func (r *Registry) Save(name string, a *types.Adapter) error {
	if err := validateName(name); err != nil {
		return err
	}
	if a == nil {
		return utils.NewError(utils.ErrCodeInvalidAdapterSchema, "adapter cannot be nil")
	}

	a.Name = name
	if a.DisplayName == "" {
		a.DisplayName = name
	}
	if err := a.Validate(); err != nil {
		return utils.WrapError(err, utils.ErrCodeInvalidAdapterSchema,
			fmt.Sprintf("adapter %q failed validation", name))
	}

	data, err := yaml.Marshal(a)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeInvalidAdapterSchema,
			fmt.Sprintf("failed to marshal adapter %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.WriteFile(r.path(name), data, 0644); err != nil {
		return utils.WrapError(err, utils.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to write adapter %q", name))
	}
	return nil
}

// List returns summaries for every stored adapter, sorted by name.
func (r *Registry) List() ([]types.AdapterSummary, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidConfig, "failed to read adapter directory")
	}

	var summaries []types.AdapterSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		a, err := r.GetStrict(name)
		if err != nil {
			logger.Warnf("skipping unreadable adapter %q: %v", name, err)
			continue
		}
		summaries = append(summaries, types.AdapterSummary{
			Name:        name,
			DisplayName: a.DisplayName,
			Description: a.Description,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// Delete removes an adapter. The reserved default adapter is never deleted;
// the call no-ops and returns false. Deleting a nonexistent adapter also
// returns false.
func (r *Registry) Delete(name string) bool {
	if name == ReservedName {
		logger.Warnf("refusing to delete reserved adapter %q", ReservedName)
		return false
	}
	if validateName(name) != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.Remove(r.path(name)); err != nil {
		return false
	}
	return true
}

func (r *Registry) path(name string) string {
	return filepath.Join(r.dir, name+".yaml")
}

// validateName rejects empty names and names that would escape the
// registry directory.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return utils.NewError(utils.ErrCodeInvalidAdapterSchema, "adapter name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return utils.NewErrorf(utils.ErrCodeInvalidAdapterSchema, "invalid adapter name: %q", name)
	}
	return nil
}
