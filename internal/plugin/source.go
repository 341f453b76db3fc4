// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"golang.org/x/crypto/blake2b"
)

// DefaultIgnore lists entries skipped by discovery and the watcher.
var DefaultIgnore = []string{"_*", ".*"}

// Source is one entry of the units directory.
type Source struct {
	Name    string
	Path    string
	Ext     string
	Content []byte
	Digest  string
}

// Directory enumerates unit sources in a single directory.
type Directory struct {
	path   string
	exts   []string
	ignore []glob.Glob
}

// NewDirectory creates a directory source. exts are file extensions
// including the dot, in priority order. ignore holds glob patterns matched
// against base names.
func NewDirectory(path string, exts []string, ignore []string) (*Directory, error) {
	d := &Directory{
		path: filepath.Clean(path),
		exts: exts,
	}
	for i, pattern := range ignore {
		if pattern == "" {
			return nil, oops.In("source").With("index", i).Errorf("empty ignore pattern")
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.In("source").With("pattern", pattern).Wrap(err)
		}
		d.ignore = append(d.ignore, g)
	}
	return d, nil
}

// Path returns the watched directory.
func (d *Directory) Path() string {
	return d.path
}

// Ensure creates the directory if it does not exist.
func (d *Directory) Ensure() (created bool, err error) {
	if _, err := os.Stat(d.path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, oops.In("source").With("dir", d.path).Wrap(err)
	}
	if err := os.MkdirAll(d.path, 0o750); err != nil {
		return false, oops.In("source").With("dir", d.path).Hint("failed to create units directory").Wrap(err)
	}
	return true, nil
}

// NameFor derives the unit name for a file path. It reports false for
// entries that are ignored, outside the directory, or have no known extension.
func (d *Directory) NameFor(path string) (string, bool) {
	if filepath.Dir(filepath.Clean(path)) != d.path {
		return "", false
	}
	base := filepath.Base(path)
	if d.ignored(base) {
		return "", false
	}
	ext := filepath.Ext(base)
	if !d.known(ext) {
		return "", false
	}
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		return "", false
	}
	return name, true
}

// Names lists the unit names present in the directory, sorted.
func (d *Directory) Names() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, oops.In("source").With("dir", d.path).Hint("failed to read units directory").Wrap(err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := d.NameFor(filepath.Join(d.path, entry.Name()))
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Lookup reads the source for name. When several files share the name, the
// extension registered first wins. Names that NameFor could never produce,
// such as paths or ignored entries, do not exist.
func (d *Directory) Lookup(name string) (*Source, error) {
	if !validName(name) {
		return nil, oops.In("source").With("unit", name).With("dir", d.path).Wrap(os.ErrNotExist)
	}
	for _, ext := range d.exts {
		if d.ignored(name + ext) {
			continue
		}
		path := filepath.Join(d.path, name+ext)
		content, err := os.ReadFile(path) //nolint:gosec // path is built from the units directory and a registered extension
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, oops.In("source").With("unit", name).With("path", path).Hint("failed to read unit source").Wrap(err)
		}
		return &Source{
			Name:    name,
			Path:    path,
			Ext:     ext,
			Content: content,
			Digest:  Digest(content),
		}, nil
	}
	return nil, oops.In("source").With("unit", name).With("dir", d.path).Wrap(os.ErrNotExist)
}

// validName reports whether name is a plain base name.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && name == filepath.Base(name)
}

// Digest returns the hex blake2b-256 digest of content.
func Digest(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (d *Directory) ignored(base string) bool {
	for _, g := range d.ignore {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (d *Directory) known(ext string) bool {
	for _, e := range d.exts {
		if e == ext {
			return true
		}
	}
	return false
}
