// Package reasoning builds the model-backed collaborators: text reasoners and
// vision extractors. Provider packages register themselves from init().
package reasoning

import (
	"github.com/rotisserie/eris"

	"claimflow/internal/config"
	"claimflow/internal/port"
)

// ReasonerFactory creates a Reasoner from a provider config.
type ReasonerFactory func(cfg *config.ProviderConfig) (port.Reasoner, error)

// VisionFactory creates a VisionExtractor from a provider config.
type VisionFactory func(cfg *config.ProviderConfig) (port.VisionExtractor, error)

var (
	reasoners = map[string]ReasonerFactory{}
	visions   = map[string]VisionFactory{}
)

// RegisterReasoner registers a reasoner factory by provider name.
func RegisterReasoner(name string, factory ReasonerFactory) {
	reasoners[name] = factory
}

// RegisterVision registers a vision extractor factory by provider name.
func RegisterVision(name string, factory VisionFactory) {
	visions[name] = factory
}

// NewReasoner creates a Reasoner using the registered factory.
func NewReasoner(cfg *config.ProviderConfig) (port.Reasoner, error) {
	factory, ok := reasoners[cfg.Provider]
	if !ok {
		return nil, eris.Errorf("reasoning: unknown reasoner provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewVisionExtractor creates a VisionExtractor using the registered factory.
func NewVisionExtractor(cfg *config.ProviderConfig) (port.VisionExtractor, error) {
	factory, ok := visions[cfg.Provider]
	if !ok {
		return nil, eris.Errorf("reasoning: unknown vision provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewFromConfig returns the primary reasoner, wrapped in a FallbackReasoner
// when a secondary provider is configured.
func NewFromConfig(cfg *config.ReasoningConfig) (port.Reasoner, error) {
	primary, err := NewReasoner(&cfg.Primary)
	if err != nil {
		return nil, err
	}
	sec := cfg.SecondaryConfig()
	if sec == nil {
		return primary, nil
	}
	secondary, err := NewReasoner(sec)
	if err != nil {
		return nil, err
	}
	return NewFallbackReasoner(
		[]port.Reasoner{primary, secondary},
		[]string{cfg.Primary.Provider, sec.Provider},
	), nil
}
