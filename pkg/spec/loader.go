package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/fabricplan/pkg/util"
)

// CatalogDir is the default switch profile directory
var CatalogDir = "/etc/fabricplan/profiles"

// profileFile is the on-disk shape of a profile file: either a single
// profile or a "profiles" list.
type profileFile struct {
	Profiles []*SwitchProfile `yaml:"profiles"`
}

// Loader reads switch profiles from a catalog directory
type Loader struct {
	catalogDir  string
	withBuiltin bool
	profiles    Catalog
	sources     map[string]string // model id → file it came from
}

// NewLoader creates a new profile loader
func NewLoader(catalogDir string) *Loader {
	if catalogDir == "" {
		catalogDir = CatalogDir
	}
	return &Loader{
		catalogDir: catalogDir,
		profiles:   make(Catalog),
		sources:    make(map[string]string),
	}
}

// WithBuiltin seeds the catalog with the built-in profiles. Files in the
// catalog directory override built-ins with the same model id.
func (l *Loader) WithBuiltin() *Loader {
	l.withBuiltin = true
	return l
}

// Load reads every *.yaml, *.yml and *.json file in the catalog directory.
// A missing directory is only an error when no built-ins were requested.
func (l *Loader) Load() error {
	if l.withBuiltin {
		for id, p := range BuiltinCatalog() {
			l.profiles[id] = p
			l.sources[id] = "builtin"
		}
	}

	entries, err := os.ReadDir(l.catalogDir)
	if err != nil {
		if os.IsNotExist(err) && l.withBuiltin {
			util.Debugf("catalog dir %s not found, using built-in profiles only", l.catalogDir)
			return nil
		}
		return fmt.Errorf("reading catalog dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isSpecFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(l.catalogDir, name)
		profiles, err := LoadProfiles(path)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			if src, ok := l.sources[p.ModelID]; ok && src != "builtin" {
				return fmt.Errorf("profile %s defined in both %s and %s", p.ModelID, src, name)
			}
			l.profiles[p.ModelID] = p
			l.sources[p.ModelID] = name
		}
	}

	util.Debugf("loaded %d switch profiles from %s", len(l.profiles), l.catalogDir)
	return nil
}

// Catalog returns the loaded profiles.
func (l *Loader) Catalog() Catalog {
	out := make(Catalog, len(l.profiles))
	for id, p := range l.profiles {
		out[id] = p
	}
	return out
}

// GetProfile returns a loaded profile by model id
func (l *Loader) GetProfile(modelID string) (*SwitchProfile, error) {
	p, ok := l.profiles[modelID]
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", modelID, util.ErrProfileNotFound)
	}
	return p, nil
}

// Source reports where a profile was loaded from ("builtin" or a file name).
func (l *Loader) Source(modelID string) string {
	return l.sources[modelID]
}

// LoadProfiles parses a single profile file.
func LoadProfiles(path string) ([]*SwitchProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile file: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing profile file %s: %w", filepath.Base(path), err)
	}
	profiles := file.Profiles
	if len(profiles) == 0 {
		var single SwitchProfile
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("parsing profile file %s: %w", filepath.Base(path), err)
		}
		profiles = []*SwitchProfile{&single}
	}

	for _, p := range profiles {
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("validating profile file %s: %w", filepath.Base(path), err)
		}
	}
	return profiles, nil
}

func validateProfile(p *SwitchProfile) error {
	v := &util.ValidationBuilder{}
	v.Add(p.ModelID != "", "modelId is required")
	for _, r := range p.Roles {
		v.Add(r == RoleLeaf || r == RoleSpine, fmt.Sprintf("profile %s: role must be 'leaf' or 'spine', got %q", p.ModelID, r))
	}
	v.Add(len(p.Ports.EndpointAssignable) > 0 || len(p.Ports.FabricAssignable) > 0,
		fmt.Sprintf("profile %s: no ports defined", p.ModelID))
	return v.Build()
}

// LoadFabricSpec parses a fabric specification file and validates its shape.
func LoadFabricSpec(path string) (*FabricSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fabric spec: %w", err)
	}
	return ParseFabricSpec(data)
}

// ParseFabricSpec decodes YAML or JSON fabric spec bytes.
func ParseFabricSpec(data []byte) (*FabricSpec, error) {
	var f FabricSpec
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fabric spec: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("validating fabric spec: %w", err)
	}
	return &f, nil
}

func isSpecFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
