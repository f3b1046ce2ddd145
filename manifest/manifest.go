// Package manifest handles hart.toml run configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a hart.toml run configuration.
type Manifest struct {
	Machine Machine `toml:"machine"`
	Program Program `toml:"program"`
	Trace   Trace   `toml:"trace"`
	Store   Store   `toml:"store"`

	// Dir is the directory containing the hart.toml file (set at load time).
	Dir string `toml:"-"`
}

// Machine configures the VM's memory model.
type Machine struct {
	MemorySize  uint64 `toml:"memory-size"`
	LoadAddress uint64 `toml:"load-address"`
}

// Program configures the guest image.
type Program struct {
	Image    string `toml:"image"`
	MaxSteps uint64 `toml:"max-steps"`
}

// Trace configures execution tracing.
type Trace struct {
	Enabled bool   `toml:"enabled"`
	Output  string `toml:"output"`
}

// Store configures the run history database.
type Store struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Defaults applied when a field is absent.
const (
	DefaultMemorySize  = 1 << 20
	DefaultLoadAddress = 0x80000000
)

// Load parses a hart.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "hart.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a hart.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "hart.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns a manifest with every field at its default, rooted at dir.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Machine.MemorySize == 0 {
		m.Machine.MemorySize = DefaultMemorySize
	}
	if m.Machine.LoadAddress == 0 {
		m.Machine.LoadAddress = DefaultLoadAddress
	}
	if m.Trace.Output == "" {
		m.Trace.Output = "hart.trace"
	}
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".hart", "runs.db")
	}
}

// ImagePath returns the guest image path resolved against the manifest
// directory.
func (m *Manifest) ImagePath() string {
	if m.Program.Image == "" || filepath.IsAbs(m.Program.Image) {
		return m.Program.Image
	}
	return filepath.Join(m.Dir, m.Program.Image)
}

// TracePath returns the trace output path resolved against the manifest
// directory.
func (m *Manifest) TracePath() string {
	if filepath.IsAbs(m.Trace.Output) {
		return m.Trace.Output
	}
	return filepath.Join(m.Dir, m.Trace.Output)
}

// StorePath returns the run database path resolved against the manifest
// directory.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}
