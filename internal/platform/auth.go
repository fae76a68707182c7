package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trustline-client-go/internal/apierr"
	"trustline-client-go/internal/session"
)

// AuthService handles initial credential issuance. Login is the one request
// that legitimately runs unauthenticated, so it talks to the auth origin
// directly instead of going through the executor.
type AuthService struct {
	baseURL string
	cli     *http.Client
	store   session.Store
}

func NewAuthService(baseURL string, store session.Store) *AuthService {
	return &AuthService{
		baseURL: baseURL,
		cli:     &http.Client{Timeout: 30 * time.Second},
		store:   store,
	}
}

// WithHTTPClient overrides the HTTP client (testing).
func (s *AuthService) WithHTTPClient(cli *http.Client) *AuthService {
	if cli != nil {
		s.cli = cli
	}
	return s
}

// Login exchanges credentials for an initial token pair and stores it.
func (s *AuthService) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("encode login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cli.Do(req)
	if err != nil {
		return apierr.FromTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apierr.FromTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierr.FromResponse(resp.StatusCode, respBody)
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tokens); err != nil {
		return apierr.New(apierr.KindServer, "malformed login response")
	}
	if tokens.AccessToken == "" || tokens.ExpiresIn <= 0 {
		return apierr.New(apierr.KindServer, "login response missing tokens")
	}

	s.store.SetAccess(tokens.AccessToken, time.Duration(tokens.ExpiresIn)*time.Second)
	s.store.SetRefresh(tokens.RefreshToken)
	return nil
}
