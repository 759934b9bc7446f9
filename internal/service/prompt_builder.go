package service

import (
	"bigfive-llm/internal/domain"
	"bigfive-llm/internal/inventory"
	"bigfive-llm/internal/llm"
)

// ratingSystemPrompt es fijo: cualquier cambio rompe la comparabilidad entre corridas.
const ratingSystemPrompt = "You must respond with a score from 1-5 where:\n" +
	"1 = Strongly Disagree\n" +
	"2 = Disagree\n" +
	"3 = Neutral\n" +
	"4 = Agree\n" +
	"5 = Strongly Agree\n" +
	"Answer as yourself, about your own personality.\n" +
	"Provide only the numerical score that best matches your response."

// PromptBuilder arma el prompt de un item. Puro y determinista.
type PromptBuilder struct{}

func NewPromptBuilder() PromptBuilder { return PromptBuilder{} }

func (PromptBuilder) Build(item domain.Item, structured bool) domain.Prompt {
	p := domain.Prompt{
		ItemIndex: item.Index,
		System:    ratingSystemPrompt,
		User:      inventory.Statement(item),
	}
	if structured {
		p.Schema = llm.RatingSchema()
	}
	return p
}

// Template devuelve el texto exacto que se publica en el reporte.
func (PromptBuilder) Template() string {
	return "[system]\n" + ratingSystemPrompt + "\n[user]\n" + inventory.Stem + " <statement>."
}
