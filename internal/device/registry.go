// internal/device/registry.go
package device

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"device-programmer/pkg/programmer"
)

//go:embed parts.yaml
var builtinParts []byte

// ErrUnknownDevice is wrapped by DeviceError when a part cannot be resolved
var ErrUnknownDevice = errors.New("unknown device")

// DeviceError reports a part that could not be resolved
type DeviceError struct {
	Name string
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %q: %v", e.Name, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// partFile mirrors the YAML layout of a part database
type partFile struct {
	Parts []partEntry `yaml:"parts"`
}

type partEntry struct {
	Name           string           `yaml:"name"`
	Aliases        []string         `yaml:"aliases"`
	VCC            vccEntry         `yaml:"vcc"`
	Signature      []int            `yaml:"signature"`
	Signatures     map[string][]int `yaml:"signatures"`
	SignatureSpace string           `yaml:"signature_space"`
	Interfaces     []string         `yaml:"interfaces"`
	ISP            map[string]int   `yaml:"isp"`
}

type vccEntry struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Registry resolves part names to descriptors
type Registry struct {
	parts   map[string]*Descriptor
	aliases map[string]string
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates a registry loaded with the built-in part database
func NewRegistry(logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		parts:   make(map[string]*Descriptor),
		aliases: make(map[string]string),
		logger:  logger,
	}

	if err := r.Load(builtinParts); err != nil {
		return nil, fmt.Errorf("failed to load built-in parts: %w", err)
	}
	return r, nil
}

// LoadFile merges the parts in a YAML file, replacing parts with the same name
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read parts file: %w", err)
	}
	if err := r.Load(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load merges parts from YAML data
func (r *Registry) Load(data []byte) error {
	var file partFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse parts: %w", err)
	}

	descriptors := make([]*Descriptor, 0, len(file.Parts))
	for i, entry := range file.Parts {
		descriptor, err := newDescriptor(entry)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		descriptors = append(descriptors, descriptor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkNames(descriptors); err != nil {
		return err
	}

	for _, descriptor := range descriptors {
		key := normalize(descriptor.name)
		r.parts[key] = descriptor
		for _, alias := range descriptor.aliases {
			r.aliases[normalize(alias)] = key
		}
	}

	r.logger.Debug("Parts loaded", zap.Int("parts", len(descriptors)), zap.Int("total", len(r.parts)))
	return nil
}

// checkNames rejects names and aliases that would shadow another part.
// Redefining a part under its own name is allowed.
func (r *Registry) checkNames(descriptors []*Descriptor) error {
	names := make(map[string]bool, len(r.parts)+len(descriptors))
	for key := range r.parts {
		names[key] = true
	}
	owners := make(map[string]string, len(r.aliases))
	for alias, key := range r.aliases {
		owners[alias] = key
	}

	for _, descriptor := range descriptors {
		key := normalize(descriptor.name)
		if owner, ok := owners[key]; ok && owner != key {
			return fmt.Errorf("part %q: name is already an alias of %q", descriptor.name, owner)
		}
		names[key] = true
	}

	for _, descriptor := range descriptors {
		key := normalize(descriptor.name)
		for _, alias := range descriptor.aliases {
			aliasKey := normalize(alias)
			if aliasKey == key {
				continue
			}
			if names[aliasKey] {
				return fmt.Errorf("part %q: alias %q is already a part name", descriptor.name, alias)
			}
			if owner, ok := owners[aliasKey]; ok && owner != key {
				return fmt.Errorf("part %q: alias %q is already used by %q", descriptor.name, alias, owner)
			}
			owners[aliasKey] = key
		}
	}
	return nil
}

// Resolve returns the device for name, matching names and aliases case-insensitively
func (r *Registry) Resolve(name string) (programmer.Device, error) {
	descriptor, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return descriptor, nil
}

// Get returns the concrete descriptor for name
func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := normalize(name)
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}

	descriptor, ok := r.parts[key]
	if !ok {
		return nil, &DeviceError{Name: name, Err: ErrUnknownDevice}
	}
	return descriptor, nil
}

// List returns all descriptors sorted by name
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]*Descriptor, 0, len(r.parts))
	for _, descriptor := range r.parts {
		descriptors = append(descriptors, descriptor)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].name < descriptors[j].name
	})
	return descriptors
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
