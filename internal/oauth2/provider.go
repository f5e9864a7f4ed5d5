package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tiltakspenger-overgangsstonad/internal/circuitbreaker"
	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
	"tiltakspenger-overgangsstonad/internal/metrics"
)

// DefaultExpiryMargin is how long before expiry a cached token is replaced.
const DefaultExpiryMargin = 60 * time.Second

// TokenProvider returns a bearer token for outbound calls.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// Config holds the client credentials and the target scope.
type Config struct {
	ClientID     string
	ClientSecret string
	// WellKnownURL is the OpenID Connect discovery document of the tenant.
	WellKnownURL string
	// Scope is the audience of the token, e.g. "api://dev-gcp.teamfamilie.familie-ef-sak/.default".
	Scope        string
	ExpiryMargin time.Duration
}

// Validate checks that all credentials are present.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return errors.ConfigError("oauth2 client id is required")
	case c.ClientSecret == "":
		return errors.ConfigError("oauth2 client secret is required")
	case c.WellKnownURL == "":
		return errors.ConfigError("oauth2 well-known url is required")
	case c.Scope == "":
		return errors.ConfigError("oauth2 scope is required")
	}
	return nil
}

// WellKnown is the subset of the discovery document that is used.
type WellKnown struct {
	TokenEndpoint string `json:"token_endpoint"`
	Issuer        string `json:"issuer,omitempty"`
}

// TokenResponse is the token endpoint answer to a client credentials grant.
type TokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   Seconds `json:"expires_in"`
}

// Seconds is a lifetime in seconds. Some token endpoints send it as a
// string, so both "3599" and 3599 decode.
type Seconds int

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("expires_in %s is not a number of seconds", string(data))
	}
	*s = Seconds(n)
	return nil
}

// Duration converts s to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s) * time.Second
}

// AzureTokenProvider fetches client credentials tokens from Azure AD and keeps
// the latest one in a TokenCache.
type AzureTokenProvider struct {
	config         Config
	cache          *TokenCache
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.GoBreakerAdapter
	metrics        *metrics.Metrics
	logger         logging.Logger
}

// NewAzureTokenProvider creates a provider. A nil cache or client gets a fresh default.
func NewAzureTokenProvider(config Config, cache *TokenCache, httpClient *http.Client) *AzureTokenProvider {
	if cache == nil {
		cache = NewTokenCache()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if config.ExpiryMargin <= 0 {
		config.ExpiryMargin = DefaultExpiryMargin
	}

	logger := logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "oauth2"})
	return &AzureTokenProvider{
		config:         config,
		cache:          cache,
		httpClient:     httpClient,
		circuitBreaker: circuitbreaker.NewGoBreaker("azure-token", circuitbreaker.OAuthConfig, logger),
		logger:         logger,
	}
}

// WithMetrics records token fetches on m.
func (p *AzureTokenProvider) WithMetrics(m *metrics.Metrics) *AzureTokenProvider {
	p.metrics = m
	return p
}

// Health reports an error while the token endpoint is short-circuited.
func (p *AzureTokenProvider) Health() error {
	return p.circuitBreaker.Health()
}

// GetToken returns the cached token or exchanges client credentials for a new one.
func (p *AzureTokenProvider) GetToken(ctx context.Context) (string, error) {
	if !p.cache.IsExpired(p.config.ExpiryMargin) {
		if token, ok := p.cache.Read(); ok {
			return token.Value, nil
		}
	}

	p.logger.Debug("Token missing or about to expire, fetching a new one",
		logging.Field{Key: "scope", Value: p.config.Scope})

	wellKnown, err := p.fetchWellKnown(ctx)
	if err != nil {
		p.metrics.IncrementTokenFetch(err)
		return "", errors.AuthError("failed to resolve token endpoint", err)
	}

	tokenResp, err := p.requestToken(ctx, wellKnown.TokenEndpoint)
	p.metrics.IncrementTokenFetch(err)
	if err != nil {
		return "", errors.AuthError("failed to obtain access token", err)
	}

	p.cache.Update(tokenResp.AccessToken, tokenResp.ExpiresIn.Duration())
	p.logger.Info("Fetched new access token",
		logging.Field{Key: "scope", Value: p.config.Scope},
		logging.Field{Key: "expires_in", Value: int(tokenResp.ExpiresIn)})

	return tokenResp.AccessToken, nil
}

func (p *AzureTokenProvider) fetchWellKnown(ctx context.Context) (*WellKnown, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.WellKnownURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("well-known request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("well-known request failed with status %d", resp.StatusCode)
	}

	var wellKnown WellKnown
	if err := json.NewDecoder(resp.Body).Decode(&wellKnown); err != nil {
		return nil, fmt.Errorf("failed to decode well-known document: %w", err)
	}
	if wellKnown.TokenEndpoint == "" {
		return nil, fmt.Errorf("well-known document has no token_endpoint")
	}
	return &wellKnown, nil
}

func (p *AzureTokenProvider) requestToken(ctx context.Context, tokenURL string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", p.config.ClientID)
	data.Set("client_secret", p.config.ClientSecret)
	data.Set("scope", p.config.Scope)

	var tokenResp TokenResponse
	err := p.circuitBreaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var errResp struct {
				Error       string `json:"error"`
				Description string `json:"error_description"`
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
				return fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.Description)
			}
			return fmt.Errorf("token request failed with status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
			return fmt.Errorf("failed to decode token response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	return &tokenResp, nil
}
