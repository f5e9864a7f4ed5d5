package overgangsstonad

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
	"tiltakspenger-overgangsstonad/internal/efsak"
	tu "tiltakspenger-overgangsstonad/internal/testutil"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func setup(t *testing.T) (*tu.TestRapid, *tu.MockCaseClient) {
	t.Helper()
	rapid := tu.NewTestRapid()
	client := &tu.MockCaseClient{}
	NewService(rapid.Rapid, client, time.Second, rapid.Metrics)
	t.Cleanup(func() { client.AssertExpectations(t) })
	return rapid, client
}

func losning(t *testing.T, rapid *tu.TestRapid, n int) string {
	t.Helper()
	raw := rapid.Inspector().Field(n, LosningKey)
	require.NotNil(t, raw)
	return string(raw)
}

func TestService_Happy(t *testing.T) {
	rapid, client := setup(t)
	client.On("HentPerioder", mock.Anything, "123", date("2025-01-01"), date("2025-01-10"), "behovId").
		Return(efsak.Result{
			Status: efsak.StatusSuksess,
			Perioder: []efsak.Periode{
				{PersonIdent: "123", FomDato: "2025-01-01", TomDato: "2025-01-10", Datakilde: "test"},
			},
		}, nil).Once()

	require.NoError(t, rapid.SendTestMessage(tu.NewBehovBuilder().Build()))

	inspector := rapid.Inspector()
	require.Equal(t, 1, inspector.Size())
	assert.Equal(t, "123", inspector.Key(0))
	assert.JSONEq(t, `{
		"overgangsstønad": {
			"overgangsstønader": [{"fom": "2025-01-01", "tom": "2025-01-10", "datakilde": "test"}],
			"feil": null
		}
	}`, losning(t, rapid, 0))

	msg := inspector.Message(0)
	assert.Equal(t, "test", msg["@id"])
	assert.Equal(t, "behovId", msg["@behovId"])
	assert.Equal(t, 1.0, msg["system_read_count"])
	assert.Len(t, msg["system_participating_services"], 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(rapid.Metrics.Behov.WithLabelValues("ok")))
}

func TestService_EmptySuccessIsEmptyList(t *testing.T) {
	rapid, client := setup(t)
	client.On("HentPerioder", mock.Anything, "123", mock.Anything, mock.Anything, "behovId").
		Return(efsak.Result{Status: efsak.StatusSuksess}, nil).Once()

	require.NoError(t, rapid.SendTestMessage(tu.NewBehovBuilder().Build()))

	assert.JSONEq(t, `{"overgangsstønad": {"overgangsstønader": [], "feil": null}}`, losning(t, rapid, 0))
}

func TestService_PeriodOrderIsKept(t *testing.T) {
	rapid, client := setup(t)
	client.On("HentPerioder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(efsak.Result{
			Status: efsak.StatusSuksess,
			Perioder: []efsak.Periode{
				{FomDato: "2025-03-01", TomDato: "2025-03-31", Datakilde: "EF"},
				{FomDato: "2025-01-01", TomDato: "2025-01-31", Datakilde: "INFOTRYGD"},
			},
		}, nil).Once()

	require.NoError(t, rapid.SendTestMessage(tu.NewBehovBuilder().Build()))

	assert.JSONEq(t, `{"overgangsstønad": {"overgangsstønader": [
		{"fom": "2025-03-01", "tom": "2025-03-31", "datakilde": "EF"},
		{"fom": "2025-01-01", "tom": "2025-01-31", "datakilde": "INFOTRYGD"}
	], "feil": null}}`, losning(t, rapid, 0))
}

func TestService_FunctionalErrors(t *testing.T) {
	tests := []struct {
		status efsak.Status
		feil   string
	}{
		{efsak.StatusFeilet, "Feilet"},
		{efsak.StatusIkkeHentet, "IkkeHentet"},
		{efsak.StatusIkkeTilgang, "IkkeTilgang"},
		{efsak.StatusFunksjonellFeil, "FunksjonellFeil"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			rapid, client := setup(t)
			client.On("HentPerioder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(efsak.Result{Status: tt.status}, nil).Once()

			require.NoError(t, rapid.SendTestMessage(tu.NewBehovBuilder().Build()))

			require.Equal(t, 1, rapid.Inspector().Size())
			assert.JSONEq(t, `{"overgangsstønad": {"overgangsstønader": null, "feil": "`+tt.feil+`"}}`, losning(t, rapid, 0))
			assert.Equal(t, 1.0, testutil.ToFloat64(rapid.Metrics.Behov.WithLabelValues(tt.feil)))
		})
	}
}

func TestService_IgnoresMessagesOutsideFilter(t *testing.T) {
	tests := []struct {
		name    string
		builder *tu.BehovBuilder
	}{
		{name: "other need", builder: tu.NewBehovBuilder().WithBehov("uføre")},
		{name: "already solved", builder: tu.NewBehovBuilder().With("@løsning", map[string]string{"x": "y"})},
		{name: "missing @id", builder: tu.NewBehovBuilder().Without("@id")},
		{name: "missing @behovId", builder: tu.NewBehovBuilder().Without("@behovId")},
		{name: "missing ident", builder: tu.NewBehovBuilder().Without("ident")},
		{name: "null fom", builder: tu.NewBehovBuilder().With("fom", nil)},
		{name: "missing tom", builder: tu.NewBehovBuilder().Without("tom")},
		{name: "missing fom", builder: tu.NewBehovBuilder().Without("fom")},
		{name: "null tom", builder: tu.NewBehovBuilder().With("tom", nil)},
		{name: "no @behov", builder: tu.NewBehovBuilder().Without("@behov")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rapid, client := setup(t)

			require.NoError(t, rapid.SendTestMessage(tt.builder.Build()))

			client.AssertNotCalled(t, "HentPerioder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, 0, rapid.Inspector().Size())
		})
	}
}

func TestService_AcceptsNeedAmongOthers(t *testing.T) {
	rapid, client := setup(t)
	client.On("HentPerioder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(efsak.Result{Status: efsak.StatusSuksess}, nil).Once()

	require.NoError(t, rapid.SendTestMessage(tu.NewBehovBuilder().WithBehov("uføre", "overgangsstønad").Build()))

	assert.Equal(t, 1, rapid.Inspector().Size())
}

func TestService_NormalizesDates(t *testing.T) {
	tests := []struct {
		name    string
		fom     string
		tom     string
		wantFom time.Time
		wantTom time.Time
	}{
		{name: "unbounded", fom: "-999999999-01-01", tom: "+999999999-12-31", wantFom: DefaultFom, wantTom: DefaultTom},
		{name: "unreadable", fom: "ikke-en-dato", tom: "2025-13-45", wantFom: DefaultFom, wantTom: DefaultTom},
		{name: "empty", fom: "", tom: "", wantFom: DefaultFom, wantTom: DefaultTom},
		{name: "inverted range is passed on", fom: "2025-02-01", tom: "2025-01-01", wantFom: date("2025-02-01"), wantTom: date("2025-01-01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rapid, client := setup(t)
			client.On("HentPerioder", mock.Anything, "123", tt.wantFom, tt.wantTom, "behovId").
				Return(efsak.Result{Status: efsak.StatusSuksess}, nil).Once()

			require.NoError(t, rapid.SendTestMessage(tu.NewBehovBuilder().WithPeriod(tt.fom, tt.tom).Build()))
			assert.Equal(t, 1, rapid.Inspector().Size())
		})
	}
}

func TestService_InfrastructureFailuresAbort(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errors.ErrorType
	}{
		{name: "auth", err: errors.AuthError("failed to obtain access token", assert.AnError), kind: errors.ErrTypeAuth},
		{name: "bad request", err: errors.CaseAPIError(400, "400 Bad Request"), kind: errors.ErrTypeCaseAPI},
		{name: "unknown status", err: errors.UnknownStatusError("KANSKJE"), kind: errors.ErrTypeUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rapid, client := setup(t)
			client.On("HentPerioder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(efsak.Result{}, tt.err).Once()

			err := rapid.SendTestMessage(tu.NewBehovBuilder().Build())

			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.kind))
			assert.Equal(t, 0, rapid.Inspector().Size())
			assert.Equal(t, 1.0, testutil.ToFloat64(rapid.Metrics.Behov.WithLabelValues("error")))
		})
	}
}

func TestService_UnknownStatusInResultAborts(t *testing.T) {
	rapid, client := setup(t)
	client.On("HentPerioder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(efsak.Result{Status: efsak.Status("KANSKJE")}, nil).Once()

	err := rapid.SendTestMessage(tu.NewBehovBuilder().Build())

	assert.True(t, errors.IsType(err, errors.ErrTypeUnknownStatus))
	assert.Equal(t, 0, rapid.Inspector().Size())
}

func TestService_Timeout(t *testing.T) {
	rapid := tu.NewTestRapid()
	client := &tu.MockCaseClient{}
	NewService(rapid.Rapid, client, 20*time.Millisecond, rapid.Metrics)

	client.On("HentPerioder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(efsak.Result{}, context.DeadlineExceeded).Once()

	err := rapid.SendTestMessage(tu.NewBehovBuilder().Build())

	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
	assert.Equal(t, 0, rapid.Inspector().Size())
}

func TestService_LoggingKeepsPersonalDataInSecureLog(t *testing.T) {
	var general, secure bytes.Buffer
	installLoggers(t, &general, &secure)

	rapid, client := setup(t)
	client.On("HentPerioder", mock.Anything, "12345678910", mock.Anything, mock.Anything, mock.Anything).
		Return(efsak.Result{}, errors.CaseAPIError(500, "500 ident 12345678910")).Once()

	err := rapid.SendTestMessage(tu.NewBehovBuilder().WithIdent("12345678910").WithID("melding-1").Build())
	require.Error(t, err)

	assert.Contains(t, general.String(), "melding-1")
	assert.Contains(t, general.String(), "løser overgangsstønad-behov")
	assert.Contains(t, general.String(), "feil ved behandling av overgangsstønad-behov")
	assert.NotContains(t, general.String(), "12345678910")

	assert.Contains(t, secure.String(), "12345678910")
	assert.Contains(t, secure.String(), "mottok melding")
	assert.Contains(t, secure.String(), "500")
}

func installLoggers(t *testing.T, general, secure *bytes.Buffer) {
	t.Helper()
	previousGeneral, previousSecure := logging.GetGlobalLogger(), logging.Secure()

	g, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: general, JSON: true})
	require.NoError(t, err)
	s, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: secure, JSON: true, Prefix: logging.SecureLogName})
	require.NoError(t, err)

	logging.SetGlobalLogger(g)
	logging.SetSecureLogger(s)
	t.Cleanup(func() {
		logging.SetGlobalLogger(previousGeneral)
		logging.SetSecureLogger(previousSecure)
	})
}

// The remaining tests run the real EF sak client against a test server.

func newEFSakServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req efsak.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func setupWithServer(t *testing.T, status int, body string) *tu.TestRapid {
	t.Helper()
	server := newEFSakServer(t, status, body)
	rapid := tu.NewTestRapid()
	client := efsak.NewClient(server.URL, server.Client(), tu.StaticTokenProvider{Token: "token"})
	NewService(rapid.Rapid, client, time.Second, rapid.Metrics)
	return rapid
}

func TestService_NotFoundPublishesEmptyList(t *testing.T) {
	rapid := setupWithServer(t, http.StatusNotFound, "")

	require.NoError(t, rapid.SendTestMessage(tu.NewBehovBuilder().Build()))

	require.Equal(t, 1, rapid.Inspector().Size())
	assert.JSONEq(t, `{"overgangsstønad": {"overgangsstønader": [], "feil": null}}`, losning(t, rapid, 0))
}

func TestService_BadRequestPublishesNothing(t *testing.T) {
	rapid := setupWithServer(t, http.StatusBadRequest, "ugyldig")

	err := rapid.SendTestMessage(tu.NewBehovBuilder().Build())

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.StatusCode(err))
	assert.Equal(t, 0, rapid.Inspector().Size())
}

func TestService_EndToEndFunctionalError(t *testing.T) {
	rapid := setupWithServer(t, http.StatusOK, `{"data":null,"status":"IKKE_TILGANG","melding":"ingen tilgang","frontendFeilmelding":null,"stacktrace":null}`)

	require.NoError(t, rapid.SendTestMessage(tu.NewBehovBuilder().Build()))

	assert.JSONEq(t, `{"overgangsstønad": {"overgangsstønader": null, "feil": "IkkeTilgang"}}`, losning(t, rapid, 0))
}
