package overgangsstonad

import (
	"github.com/samber/lo"
	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/efsak"
)

// Feilmelding tags a functional failure reported by EF sak.
type Feilmelding string

const (
	FeilFeilet          Feilmelding = "Feilet"
	FeilIkkeHentet      Feilmelding = "IkkeHentet"
	FeilIkkeTilgang     Feilmelding = "IkkeTilgang"
	FeilFunksjonellFeil Feilmelding = "FunksjonellFeil"
)

// Periode is one period in the solution.
type Periode struct {
	Fom       string `json:"fom"`
	Tom       string `json:"tom"`
	Datakilde string `json:"datakilde"`
}

// Respons is the solution placed under @løsning. Exactly one of the two
// fields is set: periods on success, a tag otherwise.
type Respons struct {
	Overgangsstonader []Periode    `json:"overgangsstønader"`
	Feil              *Feilmelding `json:"feil"`
}

var feilByStatus = map[efsak.Status]Feilmelding{
	efsak.StatusFeilet:          FeilFeilet,
	efsak.StatusIkkeHentet:      FeilIkkeHentet,
	efsak.StatusIkkeTilgang:     FeilIkkeTilgang,
	efsak.StatusFunksjonellFeil: FeilFunksjonellFeil,
}

// ToRespons maps an EF sak result onto the solution. Periods keep their
// order and are never null on success.
func ToRespons(result efsak.Result) (Respons, error) {
	if result.Status == efsak.StatusSuksess {
		return Respons{
			Overgangsstonader: lo.Map(result.Perioder, func(p efsak.Periode, _ int) Periode {
				return Periode{Fom: p.FomDato, Tom: p.TomDato, Datakilde: p.Datakilde}
			}),
		}, nil
	}

	feil, ok := feilByStatus[result.Status]
	if !ok {
		return Respons{}, errors.UnknownStatusError(string(result.Status))
	}
	return Respons{Feil: &feil}, nil
}

// outcome labels the response for metrics.
func (r Respons) outcome() string {
	if r.Feil != nil {
		return string(*r.Feil)
	}
	return "ok"
}
