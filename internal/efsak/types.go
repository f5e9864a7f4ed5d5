package efsak

import (
	"encoding/json"
	"fmt"

	"tiltakspenger-overgangsstonad/internal/common/errors"
)

// Status is the outcome EF sak reports for a lookup.
type Status string

const (
	StatusSuksess         Status = "SUKSESS"
	StatusFeilet          Status = "FEILET"
	StatusIkkeHentet      Status = "IKKE_HENTET"
	StatusIkkeTilgang     Status = "IKKE_TILGANG"
	StatusFunksjonellFeil Status = "FUNKSJONELL_FEIL"
)

// ParseStatus maps a wire value onto a known Status.
func ParseStatus(s string) (Status, error) {
	switch status := Status(s); status {
	case StatusSuksess, StatusFeilet, StatusIkkeHentet, StatusIkkeTilgang, StatusFunksjonellFeil:
		return status, nil
	default:
		return "", errors.UnknownStatusError(s)
	}
}

// Periode is one transition benefit period as EF sak reports it.
type Periode struct {
	PersonIdent string `json:"personIdent,omitempty"`
	FomDato     string `json:"fomDato"`
	TomDato     string `json:"tomDato"`
	Datakilde   string `json:"datakilde"`
}

// Result is the typed outcome of a lookup. Perioder is only populated on
// StatusSuksess and keeps the order EF sak returned.
type Result struct {
	Status   Status
	Perioder []Periode
	Melding  string
}

// Request is the body posted to /api/ekstern/perioder.
type Request struct {
	PersonIdent string `json:"personIdent"`
	Fom         string `json:"fom"`
	Tom         string `json:"tom"`
}

type responseData struct {
	Perioder []Periode `json:"perioder"`
}

// Response is the envelope EF sak answers with on 200.
type Response struct {
	Data                *responseData `json:"data"`
	Status              string        `json:"status"`
	Melding             string        `json:"melding"`
	FrontendFeilmelding string        `json:"frontendFeilmelding"`
	Stacktrace          string        `json:"stacktrace"`
}

func decodeResult(body []byte) (Result, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{}, errors.InternalError("failed to decode EF sak response", err)
	}

	status, err := ParseStatus(resp.Status)
	if err != nil {
		return Result{}, err
	}

	result := Result{Status: status, Melding: resp.Melding}
	if status == StatusSuksess {
		result.Perioder = []Periode{}
		if resp.Data != nil && resp.Data.Perioder != nil {
			result.Perioder = resp.Data.Perioder
		}
	}
	return result, nil
}

// String is used when the result is logged to the secure log.
func (r Result) String() string {
	return fmt.Sprintf("status=%s perioder=%d melding=%q", r.Status, len(r.Perioder), r.Melding)
}
