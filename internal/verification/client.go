package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"startline/internal/platform/config"
)

// Request is the payload sent to the federation webservice.
type Request struct {
	Operator       string `json:"operator"`
	Secret         string `json:"secret"`
	Number         string `json:"number"`
	Surname        string `json:"surname"`
	GivenName      string `json:"given_name"`
	Sex            string `json:"sex"`
	BirthYear      int    `json:"birth_year"`
	Consent        bool   `json:"consent"`
	FederationCode string `json:"federation_code"`
	EventDate      string `json:"event_date"` // DD/MM/YYYY, federation convention
}

// ProviderIdentity is the candidate identity record the provider returns on
// a successful lookup. Zero-valued fields were not provided.
type ProviderIdentity struct {
	Surname   string    `json:"surname"`
	GivenName string    `json:"given_name"`
	Sex       string    `json:"sex"`
	BirthDate string    `json:"birth_date"` // DD/MM/YYYY
	Club      string    `json:"club"`
	ClubCode  string    `json:"club_code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Response is the federation webservice reply.
type Response struct {
	Connected bool              `json:"connected"`
	ErrorCode string            `json:"error_code,omitempty"`
	Identity  *ProviderIdentity `json:"identity,omitempty"`
}

// HasIdentityFields reports whether the provider returned anything usable.
func (r Response) HasIdentityFields() bool {
	if r.Identity == nil {
		return false
	}
	id := r.Identity
	return id.Surname != "" || id.GivenName != "" || id.Sex != "" || id.BirthDate != ""
}

// Client calls the federation license webservice.
type Client interface {
	Check(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient is the production client. One call per Check, bounded by the
// configured timeout.
type HTTPClient struct {
	baseURL  string
	operator string
	secret   string
	http     *http.Client
}

func NewHTTPClient(cfg config.FederationConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:  cfg.BaseURL,
		operator: cfg.Operator,
		secret:   cfg.Secret,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) Check(ctx context.Context, req Request) (*Response, error) {
	req.Operator = c.operator
	req.Secret = c.secret

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal federation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/license/check", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build federation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call federation webservice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("federation webservice status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode federation response: %w", err)
	}
	return &out, nil
}

// MockClient returns deterministic data with a configurable latency to mimic
// real-world calls. Used in local development and handler tests.
type MockClient struct {
	Latency  time.Duration
	Response *Response
	Err      error
}

func (c *MockClient) Check(_ context.Context, req Request) (*Response, error) {
	time.Sleep(c.Latency)
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Response != nil {
		return c.Response, nil
	}
	return &Response{
		Connected: true,
		Identity: &ProviderIdentity{
			Surname:   req.Surname,
			GivenName: req.GivenName,
			Sex:       req.Sex,
			BirthDate: fmt.Sprintf("01/01/%d", req.BirthYear),
			Club:      "AC Sample",
		},
	}, nil
}
