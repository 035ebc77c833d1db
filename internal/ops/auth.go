package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
)

// Authenticator adds credentials to outgoing requests. Invalidate drops
// cached credentials after the target rejected them.
type Authenticator interface {
	bench.Authenticator
	Authorize(ctx context.Context, req *http.Request) error
}

// NewAuthenticator returns the authenticator configured for target, or nil
// if the target needs no authentication.
func NewAuthenticator(target benchapi.Target, client *http.Client) Authenticator {
	switch {
	case target.TokenURL != "":
		return &TokenAuth{
			URL:      target.TokenURL,
			Username: target.Username,
			Password: target.Password,
			HTTP:     client,
		}
	case target.Username != "":
		return &BasicAuth{Username: target.Username, Password: target.Password}
	default:
		return nil
	}
}

type BasicAuth struct {
	Username string
	Password string
}

func (a *BasicAuth) Authorize(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(a.Username, a.Password)
	return nil
}

// Invalidate is a no-op, static credentials cannot be refreshed.
func (a *BasicAuth) Invalidate() {}

// TokenAuth fetches a bearer token from URL using basic credentials. The
// token is cached until Invalidate is called.
type TokenAuth struct {
	URL      string
	Username string
	Password string
	HTTP     *http.Client

	mu      sync.Mutex
	token   string
	fetches int
}

func (a *TokenAuth) Authorize(ctx context.Context, req *http.Request) error {
	token, err := a.Token(ctx)
	if err != nil {
		return bench.Categorize(bench.ErrorAuthentication, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Token returns the cached token or fetches a new one.
func (a *TokenAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" {
		return a.token, nil
	}

	token, err := a.fetch(ctx)
	if err != nil {
		return "", err
	}
	a.token = token
	a.fetches++
	return token, nil
}

func (a *TokenAuth) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
}

// Fetches returns the number of tokens fetched so far.
func (a *TokenAuth) Fetches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetches
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
}

func (a *TokenAuth) fetch(ctx context.Context) (string, error) {
	req, err := newRequest(http.MethodPost, a.URL, "", "application/json", nil)
	if err != nil {
		return "", err
	}
	if a.Username != "" {
		req.SetBasicAuth(a.Username, a.Password)
	}

	client := &Client{HTTP: a.HTTP}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	token := tr.AccessToken
	if token == "" {
		token = tr.Token
	}
	if token == "" {
		return "", errors.New("token response contains no token")
	}
	return token, nil
}
