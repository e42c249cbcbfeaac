package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/innofolio/innofolio/internal/log"
)

// HTTPVerifier verifies tokens against a GoTrue-compatible identity
// provider's /auth/v1/user endpoint.
type HTTPVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  log.Logger
}

// NewHTTPVerifier creates a verifier for the provider at baseURL.
// A nil client uses a default with a 10 second timeout.
func NewHTTPVerifier(baseURL, apiKey string, client *http.Client, logger log.Logger) *HTTPVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		logger:  logger,
	}
}

// providerUser mirrors the provider's user payload. Profile fields live
// in user_metadata.
type providerUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName    string `json:"full_name"`
		CareerStage string `json:"career_stage"`
		TargetRole  string `json:"target_role"`
	} `json:"user_metadata"`
}

// Verify resolves the token. Provider rejections map to ErrInvalidToken;
// transport failures are returned as-is for the caller to distinguish.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	var user providerUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		ID:          user.ID,
		Email:       user.Email,
		FullName:    user.UserMetadata.FullName,
		CareerStage: user.UserMetadata.CareerStage,
		TargetRole:  user.UserMetadata.TargetRole,
	}, nil
}

// Middleware attaches the verified identity to the request context.
// Requests without a bearer token, or with a token the provider
// rejects, continue anonymously; handlers that need an identity check
// for themselves.
func Middleware(verifier Verifier, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("token verification failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}
