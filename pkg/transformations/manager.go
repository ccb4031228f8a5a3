package transformations

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/cuemby/clusterupgrade/pkg/log"
	"github.com/cuemby/clusterupgrade/pkg/metrics"
	"github.com/mitchellh/copystructure"
	"github.com/rs/zerolog"
)

// Settings overrides the default transformer configuration of domains:
// domain -> version -> ordered transformer names.
type Settings map[string]map[string][]string

// Entry is the ordered list of transformers introduced by one version
type Entry struct {
	Version      *semver.Version
	Names        []string
	Transformers []Func
}

// Config holds configuration for creating a Manager
type Config struct {
	// Name is the domain, e.g. "cluster"
	Name string
	// Defaults maps versions to the transformer names of the domain
	Defaults map[string][]string
	// Settings optionally overrides Defaults per version
	Settings Settings
	// Lookup resolves transformer names; DefaultTable() when nil
	Lookup Lookup
}

// Manager applies the versioned transformations of one domain
type Manager struct {
	name         string
	config       map[string][]string
	transformers []Entry
	logger       zerolog.Logger
}

// NewManager resolves the configured transformers of a domain. It fails if a
// configured name has no registered implementation.
func NewManager(cfg Config) (*Manager, error) {
	lookup := cfg.Lookup
	if lookup == nil {
		lookup = DefaultTable()
	}

	config := GetConfig(cfg.Name, cfg.Defaults, cfg.Settings)
	transformers, err := LoadTransformers(cfg.Name, config, lookup)
	if err != nil {
		return nil, err
	}

	return &Manager{
		name:         cfg.Name,
		config:       config,
		transformers: transformers,
		logger:       log.WithDomain(cfg.Name),
	}, nil
}

// GetConfig returns the effective version -> names configuration of a
// domain. A version present in settings replaces the default list for that
// version; versions missing from settings keep their defaults.
func GetConfig(name string, defaults map[string][]string, settings Settings) map[string][]string {
	config := make(map[string][]string, len(defaults))
	for version, names := range defaults {
		config[version] = append([]string(nil), names...)
	}
	for version, names := range settings[name] {
		config[version] = append([]string(nil), names...)
	}
	return config
}

// LoadTransformers resolves every configured name in its domain version
// namespace, keeping the configured order within a version. The result is
// sorted by ascending version.
func LoadTransformers(name string, config map[string][]string, lookup Lookup) ([]Entry, error) {
	logger := log.WithDomain(name)

	transformers := make([]Entry, 0, len(config))
	for version, names := range config {
		ver, err := ParseVersion(version)
		if err != nil {
			logger.Error().Err(err).Str("version", version).Msg("Invalid transformation version")
			return nil, err
		}

		entry := Entry{
			Version:      ver,
			Names:        append([]string(nil), names...),
			Transformers: make([]Func, 0, len(names)),
		}
		for _, n := range names {
			fn, ok := lookup.Resolve(name, version, n)
			if !ok {
				err := &MissingTransformerError{Domain: name, Version: version, Name: n}
				logger.Error().Str("version", version).Str("transformer", n).Msg("Transformer not found")
				return nil, err
			}
			entry.Transformers = append(entry.Transformers, fn)
		}
		transformers = append(transformers, entry)
	}

	sort.SliceStable(transformers, func(i, j int) bool {
		return transformers[i].Version.LessThan(transformers[j].Version)
	})

	for i := 1; i < len(transformers); i++ {
		if transformers[i].Version.Equal(transformers[i-1].Version) {
			return nil, &DuplicateVersionError{
				Domain:  name,
				Version: transformers[i-1].Version.Original(),
				Other:   transformers[i].Version.Original(),
			}
		}
	}

	return transformers, nil
}

// Name returns the domain of the manager
func (m *Manager) Name() string {
	return m.name
}

// Config returns a copy of the effective configuration
func (m *Manager) Config() map[string][]string {
	return GetConfig(m.name, m.config, nil)
}

// Entries returns the loaded transformers in ascending version order
func (m *Manager) Entries() []Entry {
	return append([]Entry(nil), m.transformers...)
}

// Apply runs the transformers of every version v with from < v <= to, in
// ascending version order and in configured order within a version. Each
// transformer gets a deep copy of the previous output, so the caller's data
// is never modified and the result never aliases it.
func (m *Manager) Apply(from, to string, data interface{}) (interface{}, error) {
	fromVer, err := ParseVersion(from)
	if err != nil {
		return nil, err
	}
	toVer, err := ParseVersion(to)
	if err != nil {
		return nil, err
	}
	if fromVer.GreaterThan(toVer) {
		return nil, &InvalidRangeError{From: from, To: to}
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.TransformationDuration, m.name)

	result := data
	applied := false
	for _, entry := range m.transformers {
		if !entry.Version.GreaterThan(fromVer) {
			continue
		}
		if entry.Version.GreaterThan(toVer) {
			break
		}
		for i, transformer := range entry.Transformers {
			m.logger.Debug().
				Str("version", entry.Version.Original()).
				Str("transformer", entry.Names[i]).
				Msg("Applying transformer")

			// Every step works on its own copy
			input, err := deepCopy(result)
			if err != nil {
				return nil, fmt.Errorf("failed to copy %s data: %w", m.name, err)
			}
			result, err = transformer(input)
			if err != nil {
				return nil, fmt.Errorf("%s transformer %s (version %s) failed: %w",
					m.name, entry.Names[i], entry.Version.Original(), err)
			}
			applied = true
		}
		metrics.TransformationsApplied.WithLabelValues(m.name, entry.Version.Original()).Inc()
	}

	if !applied {
		copied, err := deepCopy(data)
		if err != nil {
			return nil, fmt.Errorf("failed to copy %s data: %w", m.name, err)
		}
		result = copied
	}

	return result, nil
}

func deepCopy(data interface{}) (interface{}, error) {
	if data == nil {
		return nil, nil
	}
	return copystructure.Copy(data)
}
