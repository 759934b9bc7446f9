package domain

import (
	"fmt"
	"strings"
)

// TargetModel describe un endpoint a evaluar. Provider+Model lo identifican.
type TargetModel struct {
	Provider    string            `json:"provider" yaml:"provider"`
	Model       string            `json:"model" yaml:"model"`
	Label       string            `json:"label,omitempty" yaml:"label"`
	Version     string            `json:"version,omitempty" yaml:"version"`
	Temperature float64           `json:"temperature" yaml:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Structured  *bool             `json:"structured,omitempty" yaml:"structured"`
	Concurrency int               `json:"concurrency,omitempty" yaml:"concurrency"`
	Options     map[string]string `json:"options,omitempty" yaml:"options"`
}

// ID devuelve la referencia provider:model.
func (m TargetModel) ID() string {
	return m.Provider + ":" + m.Model
}

// DisplayName prioriza la etiqueta configurada.
func (m TargetModel) DisplayName() string {
	if strings.TrimSpace(m.Label) != "" {
		return m.Label
	}
	return m.ID()
}

// WantsStructured indica si el prompt debe declarar el schema de rating.
// Sin configuracion explicita se usa structured output cuando el adapter lo soporta.
func (m TargetModel) WantsStructured() bool {
	return m.Structured == nil || *m.Structured
}

func (m TargetModel) Option(key, fallback string) string {
	if v, ok := m.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// ParseModelRef separa "provider:model". El modelo puede contener ':'.
func ParseModelRef(ref string) (provider, model string, err error) {
	ref = strings.TrimSpace(ref)
	idx := strings.IndexByte(ref, ':')
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", fmt.Errorf("invalid model reference %q: want provider:model", ref)
	}
	return strings.ToLower(ref[:idx]), ref[idx+1:], nil
}
