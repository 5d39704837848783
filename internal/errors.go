package internal

import "github.com/rotisserie/eris"

var (
	ErrNoUsableData   = eris.New("no usable data in any month")
	ErrNoTargetCities = eris.New("data loaded but no target city matched")
)

// Err maps the dataset outcome to a sentinel so callers can tell "nothing
// loaded" apart from "loaded but filtered to nothing".
func (d Dataset) Err() error {
	switch d.Outcome {
	case OutcomeNoUsableData:
		return ErrNoUsableData
	case OutcomeNoTargetCities:
		return ErrNoTargetCities
	default:
		return nil
	}
}
