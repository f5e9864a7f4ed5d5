package overgangsstonad

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/efsak"
)

func TestToRespons_NeverBothPeriodsAndError(t *testing.T) {
	statuses := []efsak.Status{
		efsak.StatusSuksess,
		efsak.StatusFeilet,
		efsak.StatusIkkeHentet,
		efsak.StatusIkkeTilgang,
		efsak.StatusFunksjonellFeil,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			respons, err := ToRespons(efsak.Result{Status: status})
			require.NoError(t, err)

			if status == efsak.StatusSuksess {
				assert.NotNil(t, respons.Overgangsstonader)
				assert.Nil(t, respons.Feil)
			} else {
				assert.Nil(t, respons.Overgangsstonader)
				assert.NotNil(t, respons.Feil)
			}
		})
	}
}

func TestToRespons_UnknownStatus(t *testing.T) {
	_, err := ToRespons(efsak.Result{Status: "KANSKJE"})
	assert.True(t, errors.IsType(err, errors.ErrTypeUnknownStatus))
}

func TestRespons_JSON(t *testing.T) {
	feil := FeilIkkeHentet
	body, err := json.Marshal(Respons{Feil: &feil})
	require.NoError(t, err)
	assert.JSONEq(t, `{"overgangsstønader": null, "feil": "IkkeHentet"}`, string(body))
}
