// Package efsak is the client for the external period lookup in EF sak, the
// case management system for transition benefits.
package efsak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tiltakspenger-overgangsstonad/internal/circuitbreaker"
	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
	"tiltakspenger-overgangsstonad/internal/oauth2"
)

const (
	// PerioderPath is the external endpoint for period lookups.
	PerioderPath = "/api/ekstern/perioder"
	// CallIDHeader carries the need id for tracing on the EF sak side.
	CallIDHeader = "Nav-Call-Id"

	dateLayout   = "2006-01-02"
	maxErrorBody = 4096
)

// CaseClient looks up transition benefit periods for a person.
type CaseClient interface {
	HentPerioder(ctx context.Context, ident string, fom, tom time.Time, behovID string) (Result, error)
}

// Client calls EF sak over HTTP.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         oauth2.TokenProvider
	circuitBreaker *circuitbreaker.GoBreakerAdapter
	logger         logging.Logger
}

// NewClient creates a client for the EF sak instance at baseURL.
func NewClient(baseURL string, httpClient *http.Client, tokens oauth2.TokenProvider) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "efsak"})
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     httpClient,
		tokens:         tokens,
		circuitBreaker: circuitbreaker.NewGoBreaker("ef-sak", circuitbreaker.CaseAPIConfig, logger),
		logger:         logger,
	}
}

// Health reports an error while calls to EF sak are short-circuited.
func (c *Client) Health() error {
	return c.circuitBreaker.Health()
}

// HentPerioder fetches the periods for ident overlapping [fom, tom].
//
// A 404 means EF sak has nothing for the person and is returned as a
// successful, empty result. Any status other than 200 and 404 is a case_api
// error. Token failures are returned unchanged.
func (c *Client) HentPerioder(ctx context.Context, ident string, fom, tom time.Time, behovID string) (Result, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return Result{}, err
	}

	body, err := json.Marshal(Request{
		PersonIdent: ident,
		Fom:         fom.Format(dateLayout),
		Tom:         tom.Format(dateLayout),
	})
	if err != nil {
		return Result{}, errors.InternalError("failed to encode EF sak request", err)
	}

	var result Result
	err = c.circuitBreaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PerioderPath, bytes.NewReader(body))
		if err != nil {
			return errors.InternalError("failed to create EF sak request", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(CallIDHeader, behovID)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return errors.TimeoutError("EF sak call", err)
			}
			return errors.ConnectionError("EF sak request failed", err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			payload, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.ConnectionError("failed to read EF sak response", err)
			}
			result, err = decodeResult(payload)
			return err
		case http.StatusNotFound:
			c.logger.Info("EF sak answered 404, treating as no periods",
				logging.Field{Key: "behovId", Value: behovID})
			result = Result{Status: StatusSuksess, Perioder: []Periode{}}
			return nil
		default:
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return errors.CaseAPIError(resp.StatusCode, fmt.Sprintf("%d %s", resp.StatusCode, strings.TrimSpace(string(payload))))
		}
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
