// internal/driver/registry.go
package driver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"device-programmer/pkg/programmer"
)

// ErrUnknownTool is returned when a name matches no registered tool or alias
var ErrUnknownTool = errors.New("unknown tool")

// Registry manages tool type registration and lookup
type Registry struct {
	tools   map[string]*programmer.ToolType
	aliases map[string]string
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates a new tool registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:   make(map[string]*programmer.ToolType),
		aliases: make(map[string]string),
		logger:  logger,
	}
}

// Register registers a tool type under its name and aliases
func (r *Registry) Register(toolType *programmer.ToolType) error {
	if toolType.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if toolType.Factory == nil {
		return fmt.Errorf("tool %s: factory is required", toolType.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := normalize(toolType.Name)
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", toolType.Name)
	}
	if owner, taken := r.aliases[name]; taken {
		return fmt.Errorf("tool %s: name already used as an alias by %s", toolType.Name, owner)
	}
	for _, alias := range toolType.Aliases {
		key := normalize(alias)
		if owner, taken := r.aliases[key]; taken {
			return fmt.Errorf("tool %s: alias %s already used by %s", toolType.Name, alias, owner)
		}
		if _, taken := r.tools[key]; taken {
			return fmt.Errorf("tool %s: alias %s is a registered tool name", toolType.Name, alias)
		}
	}

	r.tools[name] = toolType
	for _, alias := range toolType.Aliases {
		r.aliases[normalize(alias)] = name
	}

	r.logger.Debug("Tool registered",
		zap.String("tool", toolType.Name),
		zap.Strings("aliases", toolType.Aliases),
		zap.Strings("interfaces", toolType.Interfaces),
	)
	return nil
}

// Lookup finds a tool type by canonical name or alias, case-insensitively
func (r *Registry) Lookup(name string) (*programmer.ToolType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := normalize(name)
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}

	if toolType, ok := r.tools[key]; ok && key != "" {
		return toolType, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// Aliases maps each canonical tool name to every name it answers to,
// canonical name first and aliases sorted
func (r *Registry) Aliases() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make(map[string][]string, len(r.tools))
	for name, toolType := range r.tools {
		aliases := append([]string(nil), toolType.Aliases...)
		sort.Strings(aliases)
		groups[name] = append([]string{name}, aliases...)
	}
	return groups
}

// List returns all registered tool types sorted by name
func (r *Registry) List() []*programmer.ToolType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	toolTypes := make([]*programmer.ToolType, 0, len(r.tools))
	for _, toolType := range r.tools {
		toolTypes = append(toolTypes, toolType)
	}
	sort.Slice(toolTypes, func(i, j int) bool {
		return toolTypes[i].Name < toolTypes[j].Name
	})
	return toolTypes
}

// FindByUSBID returns the tool type claiming a USB vendor/product pair
func (r *Registry) FindByUSBID(id programmer.USBID) (*programmer.ToolType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, toolType := range r.tools {
		for _, candidate := range toolType.USBIDs {
			if candidate == id {
				return toolType, true
			}
		}
	}
	return nil, false
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ToolInfo is the serialisable view of a tool type
type ToolInfo struct {
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	Interfaces []string `json:"interfaces"`
	USBIDs     []string `json:"usb_ids,omitempty"`
}

// Info describes all registered tool types sorted by name
func (r *Registry) Info() []ToolInfo {
	toolTypes := r.List()

	infos := make([]ToolInfo, 0, len(toolTypes))
	for _, toolType := range toolTypes {
		info := ToolInfo{
			Name:       toolType.Name,
			Aliases:    toolType.Aliases,
			Interfaces: toolType.Interfaces,
		}
		for _, id := range toolType.USBIDs {
			info.USBIDs = append(info.USBIDs, id.String())
		}
		infos = append(infos, info)
	}
	return infos
}
