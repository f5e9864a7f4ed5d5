package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"tiltakspenger-overgangsstonad/internal/efsak"
)

// MockCaseClient is a testify mock of efsak.CaseClient.
type MockCaseClient struct {
	mock.Mock
}

// HentPerioder records the call and returns the configured result.
func (m *MockCaseClient) HentPerioder(ctx context.Context, ident string, fom, tom time.Time, behovID string) (efsak.Result, error) {
	args := m.Called(ctx, ident, fom, tom, behovID)
	result, _ := args.Get(0).(efsak.Result)
	return result, args.Error(1)
}

// StaticTokenProvider returns the same token, or error, every time.
type StaticTokenProvider struct {
	Token string
	Err   error
}

// GetToken returns Token or Err.
func (p StaticTokenProvider) GetToken(context.Context) (string, error) {
	return p.Token, p.Err
}
