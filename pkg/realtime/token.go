package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/skillswap/realtime/pkg/errors"
)

// TokenSource obtains a fresh connection credential. Credentials expire
// within two minutes, so one is fetched immediately before every
// connection attempt and never cached.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// HTTPTokenSource fetches credentials from the platform's token endpoint,
// authenticated by the ambient user session carried in Header.
type HTTPTokenSource struct {
	URL    string
	Client *http.Client
	Header http.Header
}

// NewHTTPTokenSource creates a token source for the given endpoint
func NewHTTPTokenSource(url string) *HTTPTokenSource {
	return &HTTPTokenSource{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Token implements TokenSource
func (s *HTTPTokenSource) Token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "TOKEN_REQUEST", "failed to build token request")
	}

	for key, values := range s.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeAuth, "TOKEN_FETCH", "token endpoint unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New(errors.ErrorTypeAuth, "TOKEN_STATUS", "token endpoint returned an error").
			WithDetails(resp.Status)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeAuth, "TOKEN_DECODE", "failed to decode token response")
	}

	if body.Token == "" {
		return "", errors.New(errors.ErrorTypeAuth, "TOKEN_EMPTY", "token endpoint returned no token")
	}

	return body.Token, nil
}
