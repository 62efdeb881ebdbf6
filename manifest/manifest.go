// Package manifest reads YAML lists of module descriptors.
//
//	modules:
//	  - id: vendor/lodash
//	    url: https://cdn.example.com/lodash.js
//	  - id: config
//	    exports:
//	      server: {port: 8080}
//
// Each entry needs an id or a url. An entry with exports is served from the
// manifest without fetching anything.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/wippyai/modload/linker"
)

// File is a parsed manifest.
type File struct {
	Modules []Module `yaml:"modules"`
}

// Module is one manifest entry.
type Module struct {
	Exports any    `yaml:"exports,omitempty"`
	ID      string `yaml:"id,omitempty"`
	URL     string `yaml:"url,omitempty"`
}

// Parse decodes manifest YAML. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseFile reads and decodes the manifest at path.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate checks that every entry names a module.
func (f *File) Validate() error {
	for i, m := range f.Modules {
		if strings.TrimSpace(m.ID) == "" && strings.TrimSpace(m.URL) == "" {
			return fmt.Errorf("module %d: id or url is required", i)
		}
	}
	return nil
}

// Descriptors converts the entries to linker descriptors.
func (f *File) Descriptors() []linker.Descriptor {
	descs := make([]linker.Descriptor, len(f.Modules))
	for i, m := range f.Modules {
		descs[i] = linker.Descriptor{ID: m.ID, URL: m.URL, Exports: m.Exports}
	}
	return descs
}

// Register stores every entry in scope as one batch: if any id is already
// registered, nothing is.
func (f *File) Register(scope *linker.Scope) (*linker.Handle, error) {
	return scope.Register(f.Descriptors()...)
}

// Marshal encodes f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}
