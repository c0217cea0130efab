package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]SourceDefinition)
	registryMu sync.RWMutex
)

// Register adds an import source definition to the registry.
// Panics if a source with the same key or file name is already registered.
func Register(def SourceDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("import source already registered: %s", def.Key))
	}
	for _, other := range registry {
		if other.FileName == def.FileName {
			panic(fmt.Sprintf("import file %s already registered by %s", def.FileName, other.Key))
		}
	}
	if def.BuildRecord == nil || def.Insert == nil {
		panic(fmt.Sprintf("import source %s needs BuildRecord and Insert", def.Key))
	}
	if def.FormField == "" {
		def.FormField = def.Key
	}

	registry[def.Key] = def
}

// Sources returns all registered definitions in pass order.
func Sources() []SourceDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]SourceDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Key < result[j].Key
	})

	return result
}
