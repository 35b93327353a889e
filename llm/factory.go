// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"fmt"
	"sync"
)

// ProviderFactory creates a Provider instance from configuration.
// Factories should validate the config and return an error if invalid.
type ProviderFactory func(config ProviderConfig) (Provider, error)

// factoryRegistry holds registered provider factories.
type factoryRegistry struct {
	factories map[ProviderType]ProviderFactory
	mu        sync.RWMutex
}

// globalRegistry is the default factory registry.
var globalRegistry = &factoryRegistry{
	factories: make(map[ProviderType]ProviderFactory),
}

// RegisterFactory registers a factory function for a provider type.
// This is typically called during package init() to register built-in
// providers. If a factory is already registered for the type, it is
// overwritten.
//
// Example:
//
//	func init() {
//	    llm.RegisterFactory(llm.ProviderTypeAnthropic, NewFromProviderConfig)
//	}
func RegisterFactory(providerType ProviderType, factory ProviderFactory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.factories[providerType] = factory
}

// UnregisterFactory removes a factory for a provider type.
// Returns true if a factory was removed, false if none existed.
func UnregisterFactory(providerType ProviderType) bool {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	_, existed := globalRegistry.factories[providerType]
	delete(globalRegistry.factories, providerType)
	return existed
}

// GetFactory returns the factory for a provider type, or nil if not registered.
func GetFactory(providerType ProviderType) ProviderFactory {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return globalRegistry.factories[providerType]
}

// HasFactory returns true if a factory is registered for the provider type.
func HasFactory(providerType ProviderType) bool {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	_, ok := globalRegistry.factories[providerType]
	return ok
}

// ListFactories returns all registered provider types.
func ListFactories() []ProviderType {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	types := make([]ProviderType, 0, len(globalRegistry.factories))
	for pt := range globalRegistry.factories {
		types = append(types, pt)
	}
	return types
}

// CreateProvider creates a provider using the registered factory.
// Returns an error if no factory is registered for the provider type.
func CreateProvider(config ProviderConfig) (Provider, error) {
	if config.Type == "" {
		return nil, &FactoryError{
			ProviderType: "",
			Code:         ErrFactoryMissingType,
			Message:      "provider type is required",
		}
	}

	factory := GetFactory(config.Type)
	if factory == nil {
		return nil, &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryNotRegistered,
			Message:      fmt.Sprintf("no factory registered for provider type %q", config.Type),
		}
	}

	provider, err := factory(config)
	if err != nil {
		return nil, &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryCreationFailed,
			Message:      fmt.Sprintf("failed to create provider: %v", err),
			Cause:        err,
		}
	}

	return provider, nil
}

// FactoryError represents an error during provider factory operations.
type FactoryError struct {
	ProviderType ProviderType
	Code         string
	Message      string
	Cause        error
}

// Factory error codes.
const (
	// ErrFactoryNotRegistered indicates no factory is registered for the type.
	ErrFactoryNotRegistered = "factory_not_registered"

	// ErrFactoryMissingType indicates the provider type was not specified.
	ErrFactoryMissingType = "factory_missing_type"

	// ErrFactoryCreationFailed indicates the factory returned an error.
	ErrFactoryCreationFailed = "factory_creation_failed"

	// ErrFactoryInvalidConfig indicates the configuration is invalid.
	ErrFactoryInvalidConfig = "factory_invalid_config"
)

// Error implements the error interface.
func (e *FactoryError) Error() string {
	if e.ProviderType != "" {
		return fmt.Sprintf("factory error for %q: %s", e.ProviderType, e.Message)
	}
	return fmt.Sprintf("factory error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *FactoryError) Unwrap() error {
	return e.Cause
}

// ValidateConfig validates a ProviderConfig before CreateProvider is
// called, returning detailed validation errors.
func ValidateConfig(config ProviderConfig) error {
	if config.Type == "" {
		return &FactoryError{
			Code:    ErrFactoryInvalidConfig,
			Message: "provider type is required",
		}
	}

	if config.Name == "" {
		return &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryInvalidConfig,
			Message:      "provider name is required",
		}
	}

	switch config.Type {
	case ProviderTypeAnthropic, ProviderTypeOpenAI, ProviderTypeDeepSeek:
		if config.APIKey == "" {
			return &FactoryError{
				ProviderType: config.Type,
				Code:         ErrFactoryInvalidConfig,
				Message:      "API key is required",
			}
		}

	case ProviderTypeBedrock:
		if config.Region == "" {
			return &FactoryError{
				ProviderType: config.Type,
				Code:         ErrFactoryInvalidConfig,
				Message:      "AWS region is required for Bedrock",
			}
		}

	case ProviderTypeCustom:
		// Custom providers carry their own validation in the factory.
	}

	if config.Weight < 0 || config.Weight > 100 {
		return &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryInvalidConfig,
			Message:      "weight must be between 0 and 100",
		}
	}

	if config.TimeoutSeconds < 0 {
		return &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryInvalidConfig,
			Message:      "timeout must be non-negative",
		}
	}

	if config.Priority < 0 {
		return &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryInvalidConfig,
			Message:      "priority must be non-negative",
		}
	}

	return nil
}

// FactoryManager provides isolated factory registries, mainly for tests
// that must not touch the global registry.
type FactoryManager struct {
	factories map[ProviderType]ProviderFactory
	mu        sync.RWMutex
}

// NewFactoryManager creates a new factory manager with an empty registry.
func NewFactoryManager() *FactoryManager {
	return &FactoryManager{
		factories: make(map[ProviderType]ProviderFactory),
	}
}

// Register adds a factory to this manager.
func (m *FactoryManager) Register(providerType ProviderType, factory ProviderFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[providerType] = factory
}

// Unregister removes a factory from this manager.
func (m *FactoryManager) Unregister(providerType ProviderType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.factories[providerType]
	delete(m.factories, providerType)
	return existed
}

// Get returns a factory from this manager.
func (m *FactoryManager) Get(providerType ProviderType) ProviderFactory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.factories[providerType]
}

// Has returns true if a factory is registered.
func (m *FactoryManager) Has(providerType ProviderType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.factories[providerType]
	return ok
}

// List returns all registered provider types.
func (m *FactoryManager) List() []ProviderType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	types := make([]ProviderType, 0, len(m.factories))
	for pt := range m.factories {
		types = append(types, pt)
	}
	return types
}

// Create creates a provider using a factory from this manager.
func (m *FactoryManager) Create(config ProviderConfig) (Provider, error) {
	if config.Type == "" {
		return nil, &FactoryError{
			Code:    ErrFactoryMissingType,
			Message: "provider type is required",
		}
	}

	factory := m.Get(config.Type)
	if factory == nil {
		return nil, &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryNotRegistered,
			Message:      fmt.Sprintf("no factory registered for provider type %q", config.Type),
		}
	}

	provider, err := factory(config)
	if err != nil {
		return nil, &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryCreationFailed,
			Message:      fmt.Sprintf("failed to create provider: %v", err),
			Cause:        err,
		}
	}

	return provider, nil
}

// CopyFromGlobal copies all factories from the global registry to this manager.
func (m *FactoryManager) CopyFromGlobal() {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	for pt, factory := range globalRegistry.factories {
		m.factories[pt] = factory
	}
}

// Count returns the number of registered factories.
func (m *FactoryManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.factories)
}
