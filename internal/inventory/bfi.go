// Package inventory contiene el banco de items del Big Five Inventory (BFI-44).
package inventory

import (
	"fmt"

	"bigfive-llm/internal/domain"
)

const (
	// Stem es el inicio comun de cada afirmacion del BFI.
	Stem = "I see myself as someone who"
	// Size es la cantidad de items del BFI.
	Size = 44
)

var bfi44 = []domain.Item{
	{Index: 1, Trait: domain.TraitExtraversion, Text: "is talkative"},
	{Index: 2, Trait: domain.TraitAgreeableness, Text: "tends to find fault with others", Reverse: true},
	{Index: 3, Trait: domain.TraitConscientiousness, Text: "does a thorough job"},
	{Index: 4, Trait: domain.TraitNeuroticism, Text: "is depressed, blue"},
	{Index: 5, Trait: domain.TraitOpenness, Text: "is original, comes up with new ideas"},
	{Index: 6, Trait: domain.TraitExtraversion, Text: "is reserved", Reverse: true},
	{Index: 7, Trait: domain.TraitAgreeableness, Text: "is helpful and unselfish with others"},
	{Index: 8, Trait: domain.TraitConscientiousness, Text: "can be somewhat careless", Reverse: true},
	{Index: 9, Trait: domain.TraitNeuroticism, Text: "is relaxed, handles stress well", Reverse: true},
	{Index: 10, Trait: domain.TraitOpenness, Text: "is curious about many different things"},
	{Index: 11, Trait: domain.TraitExtraversion, Text: "is full of energy"},
	{Index: 12, Trait: domain.TraitAgreeableness, Text: "starts quarrels with others", Reverse: true},
	{Index: 13, Trait: domain.TraitConscientiousness, Text: "is a reliable worker"},
	{Index: 14, Trait: domain.TraitNeuroticism, Text: "can be tense"},
	{Index: 15, Trait: domain.TraitOpenness, Text: "is ingenious, a deep thinker"},
	{Index: 16, Trait: domain.TraitExtraversion, Text: "generates a lot of enthusiasm"},
	{Index: 17, Trait: domain.TraitAgreeableness, Text: "has a forgiving nature"},
	{Index: 18, Trait: domain.TraitConscientiousness, Text: "tends to be disorganized", Reverse: true},
	{Index: 19, Trait: domain.TraitNeuroticism, Text: "worries a lot"},
	{Index: 20, Trait: domain.TraitOpenness, Text: "has an active imagination"},
	{Index: 21, Trait: domain.TraitExtraversion, Text: "tends to be quiet", Reverse: true},
	{Index: 22, Trait: domain.TraitAgreeableness, Text: "is generally trusting"},
	{Index: 23, Trait: domain.TraitConscientiousness, Text: "tends to be lazy", Reverse: true},
	{Index: 24, Trait: domain.TraitNeuroticism, Text: "is emotionally stable, not easily upset", Reverse: true},
	{Index: 25, Trait: domain.TraitOpenness, Text: "is inventive"},
	{Index: 26, Trait: domain.TraitExtraversion, Text: "has an assertive personality"},
	{Index: 27, Trait: domain.TraitAgreeableness, Text: "can be cold and aloof", Reverse: true},
	{Index: 28, Trait: domain.TraitConscientiousness, Text: "perseveres until the task is finished"},
	{Index: 29, Trait: domain.TraitNeuroticism, Text: "can be moody"},
	{Index: 30, Trait: domain.TraitOpenness, Text: "values artistic, aesthetic experiences"},
	{Index: 31, Trait: domain.TraitExtraversion, Text: "is sometimes shy, inhibited", Reverse: true},
	{Index: 32, Trait: domain.TraitAgreeableness, Text: "is considerate and kind to almost everyone"},
	{Index: 33, Trait: domain.TraitConscientiousness, Text: "does things efficiently"},
	{Index: 34, Trait: domain.TraitNeuroticism, Text: "remains calm in tense situations", Reverse: true},
	{Index: 35, Trait: domain.TraitOpenness, Text: "prefers work that is routine", Reverse: true},
	{Index: 36, Trait: domain.TraitExtraversion, Text: "is outgoing, sociable"},
	{Index: 37, Trait: domain.TraitAgreeableness, Text: "is sometimes rude to others", Reverse: true},
	{Index: 38, Trait: domain.TraitConscientiousness, Text: "makes plans and follows through with them"},
	{Index: 39, Trait: domain.TraitNeuroticism, Text: "gets nervous easily"},
	{Index: 40, Trait: domain.TraitOpenness, Text: "likes to reflect, play with ideas"},
	{Index: 41, Trait: domain.TraitOpenness, Text: "has few artistic interests", Reverse: true},
	{Index: 42, Trait: domain.TraitAgreeableness, Text: "likes to cooperate with others"},
	{Index: 43, Trait: domain.TraitConscientiousness, Text: "is easily distracted", Reverse: true},
	{Index: 44, Trait: domain.TraitOpenness, Text: "is sophisticated in art, music, or literature"},
}

// BFI44 devuelve una copia del banco de items en orden de presentacion.
func BFI44() []domain.Item {
	out := make([]domain.Item, len(bfi44))
	copy(out, bfi44)
	return out
}

// Statement arma la afirmacion completa de un item.
func Statement(it domain.Item) string {
	return fmt.Sprintf("%s %s.", Stem, it.Text)
}

// ByTrait agrupa los items por rasgo respetando el orden original.
func ByTrait(items []domain.Item) map[domain.Trait][]domain.Item {
	out := make(map[domain.Trait][]domain.Item, len(domain.TraitOrder))
	for _, it := range items {
		out[it.Trait] = append(out[it.Trait], it)
	}
	return out
}

// Validate verifica que un banco de items sea utilizable para puntuar.
func Validate(items []domain.Item) error {
	if len(items) == 0 {
		return fmt.Errorf("item bank is empty")
	}
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if it.Index <= 0 {
			return fmt.Errorf("item %q: index must be > 0", it.Text)
		}
		if _, dup := seen[it.Index]; dup {
			return fmt.Errorf("duplicate item index %d", it.Index)
		}
		seen[it.Index] = struct{}{}
		if !it.Trait.Valid() {
			return fmt.Errorf("item %d: unknown trait %q", it.Index, it.Trait)
		}
		if it.Text == "" {
			return fmt.Errorf("item %d: empty statement", it.Index)
		}
	}
	return nil
}
