package domain

import "time"

// TraitScore es derivado; Mean nil significa "missing", nunca 0.
type TraitScore struct {
	Model        string   `json:"model"`
	Trait        Trait    `json:"trait"`
	Mean         *float64 `json:"mean"`
	ItemCount    int      `json:"item_count"`
	Expected     int      `json:"expected"`
	MissingCount int      `json:"missing_count"`
	Refusals     int      `json:"refusals"`
	Unparseable  int      `json:"unparseable"`
	Errors       int      `json:"errors"`
	Sparse       bool     `json:"sparse,omitempty"`
}

func (s TraitScore) Missing() bool {
	return s.Mean == nil
}

// ModelStatus sigue la maquina de estados por modelo y corrida.
type ModelStatus string

const (
	StatusPending  ModelStatus = "pending"
	StatusQuerying ModelStatus = "querying"
	StatusParsed   ModelStatus = "parsed"
	StatusScored   ModelStatus = "scored"
	StatusReported ModelStatus = "reported"
	StatusFailed   ModelStatus = "failed"
)

// Tipos de falla absorbente de un modelo.
const (
	FailureConfig  = "config"
	FailureAuth    = "auth"
	FailureTimeout = "timeout"
	FailureSparse  = "sparse"
)

// ModelResult agrupa lo producido por la corrida de un modelo.
type ModelResult struct {
	Model        TargetModel          `json:"model"`
	Status       ModelStatus          `json:"status"`
	FailureKind  string               `json:"failure_kind,omitempty"`
	FailureError string               `json:"failure_error,omitempty"`
	Observations []Observation        `json:"observations"`
	Scores       map[Trait]TraitScore `json:"-"`
}

// ModelVersion es la entrada de metadatos por modelo evaluado.
type ModelVersion struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Label    string `json:"label"`
	Version  string `json:"version,omitempty"`
}

// ModelReport es la fila de un modelo en el reporte publicado.
type ModelReport struct {
	ModelVersion
	Status       ModelStatus   `json:"status"`
	FailureKind  string        `json:"failure_kind,omitempty"`
	FailureError string        `json:"failure_error,omitempty"`
	Scores       []TraitScore  `json:"scores"`
	Rated        int           `json:"rated"`
	Missing      int           `json:"missing"`
	Refusals     int           `json:"refusals"`
	Unparseable  int           `json:"unparseable"`
	Errors       int           `json:"errors"`
	Observations []Observation `json:"observations"`
}

// Score devuelve el TraitScore del rasgo pedido.
func (r ModelReport) Score(t Trait) (TraitScore, bool) {
	for _, s := range r.Scores {
		if s.Trait == t {
			return s, true
		}
	}
	return TraitScore{}, false
}

// EvaluationReport se crea al final de una corrida y no se modifica despues.
type EvaluationReport struct {
	ID               string         `json:"id"`
	RunDate          time.Time      `json:"run_date"`
	PromptTemplate   string         `json:"prompt_template"`
	Trials           int            `json:"trials"`
	MinValidFraction float64        `json:"min_valid_fraction"`
	Items            []Item         `json:"items"`
	Models           []ModelVersion `json:"models"`
	Results          []ModelReport  `json:"results"`
}
