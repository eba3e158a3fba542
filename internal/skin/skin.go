// Package skin loads a skin file (a named list of measure option maps) and
// hosts its measures on a tick loop, the way a dashboard application would.
package skin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/liuscraft/voicecontrol/internal/config"
)

var ErrNoMeasures = errors.New("skin has no measures")

// File 皮肤文件
type File struct {
	Name     string              `json:"name" yaml:"name"`
	Measures []map[string]string `json:"measures" yaml:"measures"`

	path string
	dir  string
}

// Load reads a YAML or JSON skin file. Every measure needs a name.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skin %s: %w", path, err)
	}

	var f File
	if err := config.Decode(path, data, &f); err != nil {
		return nil, fmt.Errorf("parse skin %s: %w", path, err)
	}
	if len(f.Measures) == 0 {
		return nil, fmt.Errorf("skin %s: %w", path, ErrNoMeasures)
	}

	seen := make(map[string]bool, len(f.Measures))
	for i, opts := range f.Measures {
		name := strings.TrimSpace(lookup(opts, "name"))
		if name == "" {
			return nil, fmt.Errorf("skin %s: measure #%d has no name", path, i+1)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("skin %s: duplicate measure %q", path, name)
		}
		seen[key] = true
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	f.path = abs
	f.dir = filepath.Dir(abs)
	if strings.TrimSpace(f.Name) == "" {
		f.Name = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}
	return &f, nil
}

func (f *File) Path() string { return f.path }

// Dir is the directory relative resource paths resolve against.
func (f *File) Dir() string { return f.dir }

// Resolve maps a resource path to an absolute one. A leading '@' and any
// relative path both refer to the skin's own directory.
func (f *File) Resolve(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "@") {
		p = strings.TrimLeft(p[1:], `/\`)
		return filepath.Join(f.dir, filepath.FromSlash(p))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.dir, filepath.FromSlash(p))
}

// lookup finds an option case-insensitively.
func lookup(opts map[string]string, key string) string {
	if v, ok := opts[key]; ok {
		return v
	}
	for k, v := range opts {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
