package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Registry holds all loaded city profiles, keyed by city_key, and supports
// hot-reload from the configuration directory.
type Registry struct {
	configDir string

	mu       sync.RWMutex
	profiles map[string]*CityProfile

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// Initialize loads every `*.yaml` file directly under configDir as one
// CityProfile, validates the result, and starts a background watch for
// edits. This is the primary entry point, mirroring the teacher's
// load-then-validate `Initialize` shape.
func Initialize(ctx context.Context, configDir string) (*Registry, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing city profile registry")

	reg := &Registry{
		configDir: configDir,
		profiles:  make(map[string]*CityProfile),
		stopCh:    make(chan struct{}),
	}

	if err := reg.reload(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := reg.watch(ctx); err != nil {
		log.Warn("Could not start config directory watcher, hot-reload disabled", "error", err)
	}

	log.Info("City profile registry initialized", "cities", len(reg.profiles))
	return reg, nil
}

// Close stops the background watcher, if any.
func (r *Registry) Close() error {
	if r.watcher != nil {
		close(r.stopCh)
		return r.watcher.Close()
	}
	return nil
}

// Get returns the named city profile.
func (r *Registry) Get(cityKey string) (*CityProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[cityKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, cityKey)
	}
	return p, nil
}

// List returns every loaded profile, ordered by city_key for determinism.
func (r *Registry) List() []*CityProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CityProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CityKey < out[j].CityKey })
	return out
}

// reload re-reads every profile file from disk, validates them, and swaps
// them in atomically. A failing reload leaves the previous profiles intact.
func (r *Registry) reload() error {
	entries, err := os.ReadDir(r.configDir)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, r.configDir)
	}

	loaded := make(map[string]*CityProfile)
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		profile, err := loadCityProfileFile(filepath.Join(r.configDir, entry.Name()))
		if err != nil {
			return NewLoadError(entry.Name(), err)
		}
		applyDefaults(profile)
		if err := Validate(profile); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidationFailed, entry.Name(), err)
		}
		if _, dup := loaded[profile.CityKey]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateCityKey, profile.CityKey)
		}
		loaded[profile.CityKey] = profile
	}

	r.mu.Lock()
	r.profiles = loaded
	r.mu.Unlock()
	return nil
}

func isYAMLFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func loadCityProfileFile(path string) (*CityProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = ExpandEnv(data)

	var profile CityProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &profile, nil
}

// applyDefaults fills a profile's zero-valued budget with the system default,
// following the teacher's "built-in fills unset values" pattern in load().
func applyDefaults(p *CityProfile) {
	if p.Budget.RunCents == 0 {
		p.Budget = DefaultBudgetConfig()
		return
	}
	if p.Budget.ClassOverride == nil {
		p.Budget.ClassOverride = map[string]int{}
	}
	for class, cost := range defaultClassCostCents {
		if _, ok := p.Budget.ClassOverride[class]; !ok {
			p.Budget.ClassOverride[class] = cost
		}
	}
}

// watch starts a filesystem watcher on configDir and reloads on write/create/
// remove events, logging (not failing) reload errors so a bad edit never
// takes down an already-running process.
func (r *Registry) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(r.configDir); err != nil {
		_ = w.Close()
		return err
	}
	r.watcher = w

	go func() {
		log := slog.With("config_dir", r.configDir)
		for {
			select {
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !isYAMLFile(event.Name) {
					continue
				}
				if err := r.reload(); err != nil {
					log.Error("Config reload failed, keeping previous profiles", "error", err, "event", event)
					continue
				}
				log.Info("City profile registry reloaded", "event", event)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("Config watcher error", "error", err)
			}
		}
	}()
	return nil
}
