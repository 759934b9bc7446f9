package domain

import "time"

// Prompt es el payload determinista que se envia a un modelo para un item.
type Prompt struct {
	ItemIndex int    `json:"item_index"`
	System    string `json:"system"`
	User      string `json:"user"`
	// Schema es el JSON schema del rating; nil cuando no se pide structured output.
	Schema map[string]any `json:"schema,omitempty"`
}

func (p Prompt) Structured() bool {
	return p.Schema != nil
}

// RawResponse es la salida cruda de un adapter.
type RawResponse struct {
	Text string `json:"text"`
	// Structured indica que la respuesta se genero bajo el schema de rating.
	Structured bool `json:"structured"`
	// Refused marca una negativa explicita del proveedor (campo refusal de OpenAI).
	Refused bool `json:"refused,omitempty"`
}

// Outcome clasifica cada observacion.
type Outcome string

const (
	OutcomeRated       Outcome = "rated"
	OutcomeRefusal     Outcome = "refusal"
	OutcomeUnparseable Outcome = "unparseable"
	OutcomeError       Outcome = "error"
)

// ParseResult es la salida total del parser: Rating solo es valido si Outcome == OutcomeRated.
type ParseResult struct {
	Outcome Outcome `json:"outcome"`
	Rating  int     `json:"rating,omitempty"`
}

// Observation registra una consulta (modelo, item, trial). Inmutable una vez creada.
type Observation struct {
	Model     string        `json:"model"`
	ItemIndex int           `json:"item_index"`
	Trial     int           `json:"trial"`
	Raw       string        `json:"raw,omitempty"`
	Rating    *int          `json:"rating,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts,omitempty"`
	Latency   time.Duration `json:"latency_ns,omitempty"`
}

// Valid indica si la observacion aporta un rating al promedio.
func (o Observation) Valid() bool {
	return o.Outcome == OutcomeRated && o.Rating != nil && *o.Rating >= 1 && *o.Rating <= 5
}
