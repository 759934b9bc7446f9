package service

import (
	"math/rand"
	"strings"
	"testing"

	"bigfive-llm/internal/domain"
)

func TestResponseParser_Parse(t *testing.T) {
	p := NewResponseParser(nil)

	cases := []struct {
		name    string
		raw     domain.RawResponse
		outcome domain.Outcome
		rating  int
	}{
		{"bare digit", domain.RawResponse{Text: "4"}, domain.OutcomeRated, 4},
		{"digit with period", domain.RawResponse{Text: "2."}, domain.OutcomeRated, 2},
		{"sentence", domain.RawResponse{Text: "I would say 3 - neutral."}, domain.OutcomeRated, 3},
		{"scale range first", domain.RawResponse{Text: "On a scale of 1-5, I'd rate this a 5"}, domain.OutcomeRated, 5},
		{"scale range words", domain.RawResponse{Text: "From 1 to 5: 2"}, domain.OutcomeRated, 2},
		{"out of five", domain.RawResponse{Text: "4 out of 5"}, domain.OutcomeRated, 4},
		{"slash five", domain.RawResponse{Text: "Score: 1/5"}, domain.OutcomeRated, 1},
		{"decimal ignored", domain.RawResponse{Text: "3.5 maybe, so 3"}, domain.OutcomeRated, 3},
		{"out of range", domain.RawResponse{Text: "7"}, domain.OutcomeUnparseable, 0},
		{"multi digit", domain.RawResponse{Text: "44"}, domain.OutcomeUnparseable, 0},
		{"empty", domain.RawResponse{Text: ""}, domain.OutcomeUnparseable, 0},
		{"gibberish", domain.RawResponse{Text: "banana"}, domain.OutcomeUnparseable, 0},
		{"refusal text", domain.RawResponse{Text: "As an AI, I don't have personal feelings."}, domain.OutcomeRefusal, 0},
		{"curly apostrophe refusal", domain.RawResponse{Text: "I can’t answer that"}, domain.OutcomeRefusal, 0},
		{"digit wins over refusal words", domain.RawResponse{Text: "As an AI I'd still say 2"}, domain.OutcomeRated, 2},
		{"refusal naming the scale", domain.RawResponse{Text: "I don't have feelings, so I can't pick a number between 1 and 5."}, domain.OutcomeRefusal, 0},
		{"refusal naming a model version", domain.RawResponse{Text: "As GPT-4, I cannot rate my own personality."}, domain.OutcomeRefusal, 0},
		{"refusal naming a model generation", domain.RawResponse{Text: "As Claude 3, I don't have a personality to rate."}, domain.OutcomeRefusal, 0},
		{"refusal naming a hyphenated model", domain.RawResponse{Text: "I'm sorry, Llama-2 cannot answer that."}, domain.OutcomeRefusal, 0},
		{"between phrase then rating", domain.RawResponse{Text: "Between 1 and 5, I'd pick 2."}, domain.OutcomeRated, 2},
		{"model name then rating", domain.RawResponse{Text: "Speaking as Gemini 2, my answer is 4"}, domain.OutcomeRated, 4},
		{"explicit refusal flag", domain.RawResponse{Text: "4", Refused: true}, domain.OutcomeRefusal, 0},
		{"structured", domain.RawResponse{Text: `{"score":5}`, Structured: true}, domain.OutcomeRated, 5},
		{"structured fenced", domain.RawResponse{Text: "```json\n{\"score\": 1}\n```", Structured: true}, domain.OutcomeRated, 1},
		{"structured string score", domain.RawResponse{Text: `{"score":"3"}`, Structured: true}, domain.OutcomeRated, 3},
		{"structured out of range", domain.RawResponse{Text: `{"score":6}`, Structured: true}, domain.OutcomeUnparseable, 0},
		{"structured fractional", domain.RawResponse{Text: `{"score":3.5}`, Structured: true}, domain.OutcomeUnparseable, 0},
		{"structured null", domain.RawResponse{Text: `{"score":null}`, Structured: true}, domain.OutcomeUnparseable, 0},
		{"structured without score falls back", domain.RawResponse{Text: `{"answer":"4"}`, Structured: true}, domain.OutcomeRated, 4},
		{"structured broken json falls back", domain.RawResponse{Text: `{"score": 4`, Structured: true}, domain.OutcomeRated, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Parse(tc.raw)
			if got.Outcome != tc.outcome {
				t.Fatalf("expected outcome %s, got %s (rating=%d)", tc.outcome, got.Outcome, got.Rating)
			}
			if tc.outcome == domain.OutcomeRated && got.Rating != tc.rating {
				t.Fatalf("expected rating %d, got %d", tc.rating, got.Rating)
			}
		})
	}
}

func TestResponseParser_CustomPatterns(t *testing.T) {
	p := NewResponseParser([]string{"  PREFIERO NO  ", ""})
	if got := p.Parse(domain.RawResponse{Text: "Prefiero no responder"}); got.Outcome != domain.OutcomeRefusal {
		t.Fatalf("expected refusal with custom pattern, got %s", got.Outcome)
	}
	if got := p.Parse(domain.RawResponse{Text: "As an AI I cannot"}); got.Outcome != domain.OutcomeUnparseable {
		t.Fatalf("custom patterns replace defaults, got %s", got.Outcome)
	}
}

// Cualquier entrada produce exactamente un outcome valido, sin panics.
func TestResponseParser_Totality(t *testing.T) {
	p := NewResponseParser(nil)
	alphabet := []rune("0123456789 {}\"':,.-/abcxyz\n`\\score out of to AI\u2019\ufeff")
	rng := rand.New(rand.NewSource(42))

	inputs := []string{"", "{", "}", "{{{{", `{"score":`, "```", "\x00\xff", strings.Repeat("9", 1000)}
	for i := 0; i < 2000; i++ {
		n := rng.Intn(40)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		inputs = append(inputs, b.String())
	}

	for _, in := range inputs {
		for _, structured := range []bool{false, true} {
			got := p.Parse(domain.RawResponse{Text: in, Structured: structured})
			switch got.Outcome {
			case domain.OutcomeRated:
				if got.Rating < 1 || got.Rating > 5 {
					t.Fatalf("rating out of range for %q: %d", in, got.Rating)
				}
			case domain.OutcomeRefusal, domain.OutcomeUnparseable:
				if got.Rating != 0 {
					t.Fatalf("non-rated outcome carries rating for %q", in)
				}
			default:
				t.Fatalf("unexpected outcome %q for %q", got.Outcome, in)
			}
		}
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	cases := map[string]string{
		`noise {"score": 4} trailing`: `{"score": 4}`,
		`{"a":"}"} {"b":1}`:           `{"a":"}"}`,
		`{"nested":{"score":2}}`:      `{"nested":{"score":2}}`,
		`{"unterminated": "x`:         "",
		`no braces`:                   "",
		`{"escaped":"\"}"}`:           `{"escaped":"\"}"}`,
	}
	for in, want := range cases {
		if got := extractFirstJSONObject(in); got != want {
			t.Fatalf("extractFirstJSONObject(%q) = %q, want %q", in, got, want)
		}
	}
}
