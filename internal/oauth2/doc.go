// Package oauth2 obtains bearer tokens for outbound calls using the OAuth 2.0
// client credentials grant against an OpenID Connect identity provider.
//
// # Overview
//
// AzureTokenProvider resolves the token endpoint from the provider's
// well-known discovery document and exchanges the application's client id and
// secret for an access token scoped to one downstream API. Tokens live in a
// TokenCache, a single in-memory slot holding the token value and its expiry.
//
// # Token lifecycle
//
//  1. GetToken returns the cached token while it is not within the expiry
//     margin of its expiry time. No network call is made.
//  2. Otherwise the discovery document is fetched (it is not cached) and
//     token_endpoint is read from it.
//  3. A form POST with grant_type=client_credentials, client_id,
//     client_secret and scope is sent to the token endpoint.
//  4. access_token and expires_in from the answer overwrite the cache.
//
// Any failure along the way is returned as one authentication error
// (errors.ErrTypeAuth) wrapping the cause.
//
// # Usage
//
//	cache := oauth2.NewTokenCache()
//	provider := oauth2.NewAzureTokenProvider(oauth2.Config{
//	    ClientID:     cfg.Azure.ClientID,
//	    ClientSecret: cfg.Azure.ClientSecret,
//	    WellKnownURL: cfg.Azure.WellKnownURL,
//	    Scope:        cfg.EFSak.Scope,
//	}, cache, httpClient)
//
//	token, err := provider.GetToken(ctx)
//
// # Concurrency
//
// The cache is guarded by a mutex so reads and writes are memory safe.
// Concurrent refreshes are not coalesced; the last writer wins. Tokens are
// never persisted.
package oauth2
