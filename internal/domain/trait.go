package domain

import (
	"fmt"
	"strings"
)

// Trait identifica una de las cinco dimensiones del Big Five (OCEAN).
type Trait string

const (
	TraitOpenness          Trait = "O"
	TraitConscientiousness Trait = "C"
	TraitExtraversion      Trait = "E"
	TraitAgreeableness     Trait = "A"
	TraitNeuroticism       Trait = "N"
)

// TraitOrder es el orden fijo de presentacion en reportes.
var TraitOrder = []Trait{
	TraitOpenness,
	TraitConscientiousness,
	TraitExtraversion,
	TraitAgreeableness,
	TraitNeuroticism,
}

var traitNames = map[Trait]string{
	TraitOpenness:          "Openness",
	TraitConscientiousness: "Conscientiousness",
	TraitExtraversion:      "Extraversion",
	TraitAgreeableness:     "Agreeableness",
	TraitNeuroticism:       "Neuroticism",
}

// Name devuelve el nombre largo del rasgo.
func (t Trait) Name() string {
	if n, ok := traitNames[t]; ok {
		return n
	}
	return string(t)
}

func (t Trait) Valid() bool {
	_, ok := traitNames[t]
	return ok
}

// ParseTrait acepta la letra (O) o el nombre completo (openness).
func ParseTrait(s string) (Trait, error) {
	s = strings.TrimSpace(s)
	for t, name := range traitNames {
		if strings.EqualFold(s, string(t)) || strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown trait %q", s)
}
