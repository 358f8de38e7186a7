package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManualSourceIssuesUniqueIDs(t *testing.T) {
	source := NewManualSource()

	first, err := source.RequestRandomWords(context.Background(), 3)
	require.NoError(t, err)
	second, err := source.RequestRandomWords(context.Background(), 3)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	numWords, ok := source.Pending(first)
	require.True(t, ok)
	require.Equal(t, uint32(3), numWords)

	source.Consume(first)
	_, ok = source.Pending(first)
	require.False(t, ok)
	_, ok = source.Pending(second)
	require.True(t, ok)
}

func TestManualSourceRejectsZeroWords(t *testing.T) {
	source := NewManualSource()
	_, err := source.RequestRandomWords(context.Background(), 0)
	require.ErrorIs(t, err, ErrNoWordCount)
}

type fakeDoer struct {
	status   int
	body     string
	lastReq  *http.Request
	lastBody []byte
	err      error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if req.Body != nil {
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		f.lastBody = payload
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestHTTPCoordinatorSubmitsRequest(t *testing.T) {
	doer := &fakeDoer{status: http.StatusAccepted}
	coordinator := NewHTTPCoordinator(doer, "https://vrf.example/requests", "secret")

	id, err := coordinator.RequestRandomWords(context.Background(), 3)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, id)

	require.Equal(t, http.MethodPost, doer.lastReq.Method)
	require.Equal(t, "https://vrf.example/requests", doer.lastReq.URL.String())
	require.Equal(t, "application/json", doer.lastReq.Header.Get("Content-Type"))
	require.Equal(t, "secret", doer.lastReq.Header.Get("x-api-key"))

	var payload randomWordsRequest
	require.NoError(t, json.Unmarshal(doer.lastBody, &payload))
	require.NotEmpty(t, payload.CorrelationID)
	require.Equal(t, uint32(3), payload.NumWords)
	require.Equal(t, fmt.Sprintf("%x", id), payload.RequestID)
}

func TestHTTPCoordinatorIDsDoNotCollide(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK}
	coordinator := NewHTTPCoordinator(doer, "https://vrf.example/requests", "")

	first, err := coordinator.RequestRandomWords(context.Background(), 1)
	require.NoError(t, err)
	second, err := coordinator.RequestRandomWords(context.Background(), 1)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Empty(t, doer.lastReq.Header.Get("x-api-key"))
}

func TestHTTPCoordinatorSurfacesStatusErrors(t *testing.T) {
	doer := &fakeDoer{status: http.StatusServiceUnavailable, body: "maintenance window"}
	coordinator := NewHTTPCoordinator(doer, "https://vrf.example/requests", "")

	_, err := coordinator.RequestRandomWords(context.Background(), 3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "maintenance window")
}

func TestHTTPCoordinatorValidatesInput(t *testing.T) {
	coordinator := NewHTTPCoordinator(&fakeDoer{status: http.StatusOK}, "", "")
	_, err := coordinator.RequestRandomWords(context.Background(), 3)
	require.Error(t, err)

	coordinator = NewHTTPCoordinator(&fakeDoer{status: http.StatusOK}, "https://vrf.example", "")
	_, err = coordinator.RequestRandomWords(context.Background(), 0)
	require.ErrorIs(t, err, ErrNoWordCount)
}
