package domain

// Item es una afirmacion del cuestionario BFI.
// Index es 1-based y estable: define el orden de los prompts.
type Item struct {
	Index   int    `json:"index" yaml:"index"`
	Trait   Trait  `json:"trait" yaml:"trait"`
	Text    string `json:"text" yaml:"text"`
	Reverse bool   `json:"reverse" yaml:"reverse"`
}

// Keyed aplica la direccion de puntuacion: los items invertidos valen 6 - r.
func (it Item) Keyed(rating int) float64 {
	if it.Reverse {
		return float64(6 - rating)
	}
	return float64(rating)
}
