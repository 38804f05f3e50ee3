package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/registry"
	"github.com/flexsearch/flexsearch/internal/schema"
	"github.com/flexsearch/flexsearch/internal/store"
	"github.com/flexsearch/flexsearch/internal/versioning"
)

// Manager owns the per-index lifecycle state machine and the two
// process-wide registries: runtime registration (Online indexes only) and
// status (all known indexes).
type Manager struct {
	dataRoot string
	builder  *schema.SettingsBuilder
	settings store.Store
	versions *versioning.Cache

	registration *registry.Registry[*Runtime]
	status       *registry.Registry[State]

	// mu serializes lifecycle transitions; reads go through the registries.
	mu sync.Mutex
}

// NewManager creates a manager persisting definitions into settings and
// placing index data under dataRoot.
func NewManager(dataRoot string, builder *schema.SettingsBuilder, settings store.Store, versions *versioning.Cache) *Manager {
	return &Manager{
		dataRoot:     dataRoot,
		builder:      builder,
		settings:     settings,
		versions:     versions,
		registration: registry.New[*Runtime](),
		status:       registry.New[State](),
	}
}

// AddIndex persists a new index definition. With def.Online the runtime is
// built immediately; otherwise the index stays Offline until opened.
func (m *Manager) AddIndex(def *schema.Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if def == nil || strings.TrimSpace(def.Name) == "" {
		return errors.ValidationError("index name must not be empty", nil)
	}
	if m.status.Contains(def.Name) {
		return errors.IndexAlreadyExists(def.Name)
	}

	// Validate before persisting so a broken definition is never stored.
	setting, err := m.builder.BuildSetting(def, m.dataRoot)
	if err != nil {
		return err
	}
	if err := m.settings.Put(def.Name, def); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, err)
	}

	if !def.Online {
		m.status.Set(def.Name, StateOffline)
		return nil
	}
	return m.bringOnlineLocked(setting)
}

// UpdateIndex replaces an index definition. An Online index is closed and
// re-opened under the new setting; shard count changes are rejected while
// Online because routing is fixed between open and close.
func (m *Manager) UpdateIndex(def *schema.Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if def == nil || strings.TrimSpace(def.Name) == "" {
		return errors.ValidationError("index name must not be empty", nil)
	}
	state, known := m.status.Get(def.Name)
	if !known {
		return errors.IndexNotFound(def.Name)
	}
	if state == StateOpening {
		return errors.IndexIsOpening(def.Name)
	}

	setting, err := m.builder.BuildSetting(def, m.dataRoot)
	if err != nil {
		return err
	}

	if state == StateOnline {
		rt, ok := m.registration.Get(def.Name)
		if !ok {
			return errors.RegistrationMissing(def.Name)
		}
		if setting.ShardCount != rt.Setting().ShardCount {
			return errors.Newf(errors.ErrCodeValidationFailed,
				"index %q: shard count change requires close and re-open", def.Name)
		}
		if err := m.takeOfflineLocked(def.Name, rt); err != nil {
			return err
		}
		if err := m.settings.Put(def.Name, def); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailed, err)
		}
		return m.bringOnlineLocked(setting)
	}

	if err := m.settings.Put(def.Name, def); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, err)
	}
	return nil
}

// DeleteIndex closes the index if open, removes its definition, version
// cells, and data directory.
func (m *Manager) DeleteIndex(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, known := m.status.Get(name)
	if !known {
		return errors.IndexNotFound(name)
	}
	if state == StateOpening {
		return errors.IndexIsOpening(name)
	}

	if rt, ok := m.registration.Get(name); ok {
		// Close errors are non-fatal during delete; the files go away.
		if err := m.takeOfflineLocked(name, rt); err != nil {
			slog.Warn("close_during_delete_failed",
				slog.String("index", name),
				slog.String("error", err.Error()))
		}
	}

	if err := m.settings.Delete(name); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, err)
	}
	m.status.Delete(name)
	m.versions.PurgeIndex(name)

	dir := filepath.Join(m.dataRoot, name)
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailed, err)
		}
	}
	return nil
}

// OpenIndex builds the runtime for a persisted, currently Offline index.
func (m *Manager) OpenIndex(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, known := m.status.Get(name)
	if !known {
		return errors.IndexNotFound(name)
	}
	switch state {
	case StateOpening:
		return errors.IndexIsOpening(name)
	case StateOnline:
		return errors.Newf(errors.ErrCodeIndexAlreadyExists, "index %q is already online", name)
	}

	def, err := m.definition(name)
	if err != nil {
		return err
	}
	setting, err := m.builder.BuildSetting(def, m.dataRoot)
	if err != nil {
		return err
	}
	return m.bringOnlineLocked(setting)
}

// CloseIndex commits and releases all shards, transitioning the index to
// Offline.
func (m *Manager) CloseIndex(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, known := m.status.Get(name)
	if !known {
		return errors.IndexNotFound(name)
	}
	if state == StateOffline {
		return errors.IndexIsOffline(name)
	}
	rt, ok := m.registration.Get(name)
	if !ok {
		return errors.RegistrationMissing(name)
	}
	return m.takeOfflineLocked(name, rt)
}

// GetIndex returns the persisted definition.
func (m *Manager) GetIndex(name string) (*schema.Index, error) {
	if !m.status.Contains(name) {
		return nil, errors.IndexNotFound(name)
	}
	return m.definition(name)
}

// IndexExists reports whether the index is known (any state).
func (m *Manager) IndexExists(name string) bool {
	return m.status.Contains(name)
}

// IndexStatus returns the lifecycle state of the index.
func (m *Manager) IndexStatus(name string) (State, error) {
	state, ok := m.status.Get(name)
	if !ok {
		return StateOffline, errors.IndexNotFound(name)
	}
	return state, nil
}

// Runtime resolves the live runtime of an Online index. This is the lookup
// used by the write pipeline and the search executor.
func (m *Manager) Runtime(name string) (*Runtime, error) {
	if rt, ok := m.registration.Get(name); ok {
		return rt, nil
	}
	state, known := m.status.Get(name)
	if !known {
		return nil, errors.IndexNotFound(name)
	}
	switch state {
	case StateOpening:
		return nil, errors.IndexIsOpening(name)
	case StateOnline:
		return nil, errors.RegistrationMissing(name)
	default:
		return nil, errors.IndexIsOffline(name)
	}
}

// Versions exposes the versioning cache shared with the write pipeline.
func (m *Manager) Versions() *versioning.Cache { return m.versions }

// LoadAll restores all persisted indexes at boot: every known definition
// gets a status entry, and definitions marked online are opened.
func (m *Manager) LoadAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, err := m.settings.Keys()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, err)
	}
	for _, name := range keys {
		def, err := m.definition(name)
		if err != nil {
			slog.Warn("boot_definition_unreadable",
				slog.String("index", name),
				slog.String("error", err.Error()))
			continue
		}
		m.status.Set(name, StateOffline)
		if !def.Online {
			continue
		}
		setting, err := m.builder.BuildSetting(def, m.dataRoot)
		if err != nil {
			slog.Warn("boot_setting_invalid",
				slog.String("index", name),
				slog.String("error", err.Error()))
			continue
		}
		if err := m.bringOnlineLocked(setting); err != nil {
			slog.Warn("boot_open_failed",
				slog.String("index", name),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// ShutDown closes every online index.
func (m *Manager) ShutDown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.registration.Names() {
		rt, ok := m.registration.Get(name)
		if !ok {
			continue
		}
		if err := m.takeOfflineLocked(name, rt); err != nil {
			slog.Warn("shutdown_close_failed",
				slog.String("index", name),
				slog.String("error", err.Error()))
		}
	}
}

// bringOnlineLocked walks Opening -> Online, registering the runtime on
// success and falling back to Offline on failure.
func (m *Manager) bringOnlineLocked(setting *schema.IndexSetting) error {
	name := setting.Name
	m.status.Set(name, StateOpening)

	rt, err := OpenRuntime(setting)
	if err != nil {
		m.status.Set(name, StateOffline)
		return err
	}
	startSchedulers(rt)
	m.registration.Set(name, rt)
	m.status.Set(name, StateOnline)
	slog.Info("index_online",
		slog.String("index", name),
		slog.Int("shards", setting.ShardCount))
	return nil
}

// takeOfflineLocked walks Closing -> Offline and deregisters the runtime.
// The state reaches Offline even when shard close fails.
func (m *Manager) takeOfflineLocked(name string, rt *Runtime) error {
	m.status.Set(name, StateClosing)
	err := rt.Close()
	m.registration.Delete(name)
	m.status.Set(name, StateOffline)
	slog.Info("index_offline", slog.String("index", name))
	return err
}

func (m *Manager) definition(name string) (*schema.Index, error) {
	var def schema.Index
	found, err := m.settings.Get(name, &def)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, err)
	}
	if !found {
		return nil, errors.IndexNotFound(name)
	}
	return &def, nil
}
