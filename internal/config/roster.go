package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"bigfive-llm/internal/domain"
)

// Roster es el archivo YAML con los modelos a evaluar.
//
//	models:
//	  - provider: openai
//	    model: gpt-4o-mini
//	    temperature: 0
type Roster struct {
	Models []domain.TargetModel `yaml:"models"`
}

var ErrEmptyRoster = errors.New("roster has no models")

var providerLabels = map[string]string{
	"openai":    "OpenAI API",
	"anthropic": "Anthropic API",
	"xai":       "xAI API",
	"gemini":    "Gemini API",
	"demo":      "Demo",
}

// DefaultRoster son los modelos evaluados cuando no hay roster ni --model.
func DefaultRoster() []domain.TargetModel {
	return []domain.TargetModel{
		newTarget("openai", "gpt-4o-mini"),
		newTarget("anthropic", "claude-3-opus-20240229"),
		newTarget("xai", "grok-beta"),
		newTarget("gemini", "gemini-2.0-flash"),
	}
}

func newTarget(provider, model string) domain.TargetModel {
	return normalizeTarget(domain.TargetModel{Provider: provider, Model: model})
}

// normalizeTarget completa etiqueta y version ("OpenAI API, gpt-4o-mini").
func normalizeTarget(m domain.TargetModel) domain.TargetModel {
	m.Provider = strings.ToLower(strings.TrimSpace(m.Provider))
	m.Model = strings.TrimSpace(m.Model)
	if m.Version == "" {
		m.Version = m.Model
	}
	if m.Label == "" {
		prefix, ok := providerLabels[m.Provider]
		if !ok {
			prefix = m.Provider
		}
		m.Label = prefix + ", " + m.Model
	}
	return m
}

// LoadRoster lee y valida un roster YAML.
func LoadRoster(path string) ([]domain.TargetModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

func ParseRoster(data []byte) ([]domain.TargetModel, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(r.Models) == 0 {
		return nil, ErrEmptyRoster
	}
	seen := make(map[string]bool, len(r.Models))
	out := make([]domain.TargetModel, 0, len(r.Models))
	for i, m := range r.Models {
		m = normalizeTarget(m)
		if m.Provider == "" || m.Model == "" {
			return nil, fmt.Errorf("roster entry %d: provider and model are required", i+1)
		}
		if m.Temperature < 0 || m.Temperature > 2 {
			return nil, fmt.Errorf("roster entry %d: temperature %v out of range", i+1, m.Temperature)
		}
		if seen[m.ID()] {
			return nil, fmt.Errorf("roster entry %d: duplicate model %s", i+1, m.ID())
		}
		seen[m.ID()] = true
		out = append(out, m)
	}
	return out, nil
}

// ModelsFromRefs convierte referencias provider:model de la linea de comandos.
func ModelsFromRefs(refs []string) ([]domain.TargetModel, error) {
	seen := make(map[string]bool, len(refs))
	out := make([]domain.TargetModel, 0, len(refs))
	for _, ref := range refs {
		provider, model, err := domain.ParseModelRef(ref)
		if err != nil {
			return nil, err
		}
		m := newTarget(provider, model)
		if seen[m.ID()] {
			continue
		}
		seen[m.ID()] = true
		out = append(out, m)
	}
	return out, nil
}

// ResolveModels decide que modelos se evaluan. Prioridad: refs explicitas,
// roster file, roster por defecto. Solo el roster por defecto omite proveedores
// sin credenciales; los modelos pedidos explicitamente siempre se reportan.
func ResolveModels(refs []string, rosterFile string, hasCredentials func(provider string) bool, logger *zap.Logger) ([]domain.TargetModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(refs) > 0 {
		return ModelsFromRefs(refs)
	}
	if strings.TrimSpace(rosterFile) != "" {
		return LoadRoster(rosterFile)
	}

	var out []domain.TargetModel
	for _, m := range DefaultRoster() {
		if hasCredentials != nil && !hasCredentials(m.Provider) {
			logger.Warn("skipping model without API key", zap.String("model", m.ID()))
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no provider credentials configured: %w", ErrEmptyRoster)
	}
	return out, nil
}
