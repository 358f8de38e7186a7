package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPCoordinator submits randomness requests to an external VRF coordinator
// over HTTP. The coordinator is expected to call back into the node with the
// request id and the drawn words once the proof is ready.
type HTTPCoordinator struct {
	client   HTTPDoer
	endpoint string
	apiKey   string
}

// NewHTTPCoordinator constructs a coordinator adapter. When the client is nil
// http.DefaultClient is used. The API key is optional and only added to the
// request headers when supplied.
func NewHTTPCoordinator(client HTTPDoer, endpoint, apiKey string) *HTTPCoordinator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCoordinator{
		client:   client,
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
	}
}

type randomWordsRequest struct {
	CorrelationID string `json:"correlationId"`
	RequestID     string `json:"requestId"`
	NumWords      uint32 `json:"numWords"`
}

// RequestRandomWords registers a request with the coordinator and returns the
// id the fulfillment callback must echo. The id is derived from a fresh
// correlation UUID so retried submissions never collide.
func (c *HTTPCoordinator) RequestRandomWords(ctx context.Context, numWords uint32) ([32]byte, error) {
	var id [32]byte
	if c == nil || c.endpoint == "" {
		return id, fmt.Errorf("oracle: coordinator not configured")
	}
	if numWords == 0 {
		return id, ErrNoWordCount
	}
	correlation := uuid.NewString()
	copy(id[:], crypto.Keccak256([]byte(correlation)))

	payload, err := json.Marshal(randomWordsRequest{
		CorrelationID: correlation,
		RequestID:     fmt.Sprintf("%x", id),
		NumWords:      numWords,
	})
	if err != nil {
		return [32]byte{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return [32]byte{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return [32]byte{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return [32]byte{}, fmt.Errorf("oracle: coordinator status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return id, nil
}
