package service

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"bigfive-llm/internal/domain"
)

// DefaultRefusalPatterns se comparan en minusculas contra respuestas sin digitos.
var DefaultRefusalPatterns = []string{
	"as an ai",
	"as a language model",
	"i don't have personal",
	"i do not have personal",
	"i don't have a personality",
	"i can't",
	"i cannot",
	"i'm not able",
	"i am not able",
	"i'm unable",
	"i am unable",
	"i'm sorry",
	"not appropriate for me",
}

var (
	reFenceStart  = regexp.MustCompile("(?is)^\\s*```(?:json)?\\s*")
	reFenceEnd    = regexp.MustCompile("(?is)\\s*```\\s*$")
	reDecimal     = regexp.MustCompile(`\d+[.,]\d+`)
	reScaleRange  = regexp.MustCompile(`(?i)\b\d\s*(?:-|\x{2013}|\x{2014}|to)\s*\d\b`)
	reBetween     = regexp.MustCompile(`(?i)\bbetween\s+\d\s+and\s+\d\b`)
	reModelName   = regexp.MustCompile(`(?i)\b(?:gpt|claude|grok|gemini|llama|mistral)[\s-]*\d+\b`)
	reWordDigit   = regexp.MustCompile(`(?i)\b[a-z]+-\d+\b`)
	reOutOf       = regexp.MustCompile(`(?i)\bout\s+of\s+\d+\b`)
	reSlashScale  = regexp.MustCompile(`/\s*\d+\b`)
	reRatingDigit = regexp.MustCompile(`\b([1-5])\b`)
)

// ResponseParser convierte la respuesta cruda en un rating 1..5 o en un outcome.
// Parse es total: nunca entra en panico y cada entrada cae en un unico outcome.
type ResponseParser struct {
	refusalPatterns []string
}

func NewResponseParser(refusalPatterns []string) *ResponseParser {
	patterns := make([]string, 0, len(refusalPatterns))
	for _, p := range refusalPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		patterns = append(patterns, DefaultRefusalPatterns...)
	}
	return &ResponseParser{refusalPatterns: patterns}
}

func (p *ResponseParser) Parse(raw domain.RawResponse) domain.ParseResult {
	if raw.Refused {
		return domain.ParseResult{Outcome: domain.OutcomeRefusal}
	}

	if raw.Structured {
		if res, ok := parseStructuredScore(raw.Text); ok {
			return res
		}
	}

	if rating, ok := extractLenientRating(raw.Text); ok {
		return domain.ParseResult{Outcome: domain.OutcomeRated, Rating: rating}
	}

	if p.isRefusal(raw.Text) {
		return domain.ParseResult{Outcome: domain.OutcomeRefusal}
	}
	return domain.ParseResult{Outcome: domain.OutcomeUnparseable}
}

func (p *ResponseParser) isRefusal(text string) bool {
	lower := strings.ToLower(normalizeQuotes(text))
	for _, pattern := range p.refusalPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// parseStructuredScore toma "score" de un objeto JSON. ok=false si no hay objeto con esa clave.
func parseStructuredScore(text string) (domain.ParseResult, bool) {
	cleaned := cleanLLMJSONResponse(text)
	obj := extractFirstJSONObject(cleaned)
	if obj == "" {
		return domain.ParseResult{}, false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return domain.ParseResult{}, false
	}
	value, ok := payload["score"]
	if !ok {
		return domain.ParseResult{}, false
	}

	unparseable := domain.ParseResult{Outcome: domain.OutcomeUnparseable}
	var f float64
	switch v := value.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return unparseable, true
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return unparseable, true
		}
		f = parsed
	default:
		return unparseable, true
	}
	if f != math.Trunc(f) || f < 1 || f > 5 {
		return unparseable, true
	}
	return domain.ParseResult{Outcome: domain.OutcomeRated, Rating: int(f)}, true
}

// extractLenientRating quita decimales, rangos de escala, "out of N" y nombres
// de modelo con version (GPT-4, Claude 3) antes de buscar el primer digito 1..5 aislado.
func extractLenientRating(text string) (int, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	s = reDecimal.ReplaceAllString(s, " ")
	s = reScaleRange.ReplaceAllString(s, " ")
	s = reBetween.ReplaceAllString(s, " ")
	s = reModelName.ReplaceAllString(s, " ")
	s = reWordDigit.ReplaceAllString(s, " ")
	s = reOutOf.ReplaceAllString(s, " ")
	s = reSlashScale.ReplaceAllString(s, " ")

	m := reRatingDigit.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// cleanLLMJSONResponse quita fences ```json ... ``` y BOM, dejando el contenido usable.
func cleanLLMJSONResponse(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "\uFEFF")
	s = reFenceStart.ReplaceAllString(s, "")
	s = reFenceEnd.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func extractFirstJSONObject(input string) string {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return ""
	}

	inString := false
	escape := false
	depth := 0

	for i := start; i < len(input); i++ {
		ch := input[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}

func normalizeQuotes(s string) string {
	return strings.NewReplacer("\u2019", "'", "\u2018", "'").Replace(s)
}
