package invoker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	token     string
	err       error
	audiences []string
}

func (s *stubTokens) FetchIdentityToken(_ context.Context, audience string) (string, error) {
	s.audiences = append(s.audiences, audience)
	if s.err != nil {
		return "", s.err
	}
	return s.token, s.err
}

func TestPostSuccess(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Created"}`))
	}))
	defer server.Close()

	tokens := &stubTokens{token: "test-token"}
	inv := New(tokens, 5*time.Second)

	body, err := inv.Post(context.Background(), server.URL, "client-id", map[string]string{"conf": "abc123"})
	require.NoError(t, err)
	assert.Equal(t, `{"message":"Created"}`, body)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.JSONEq(t, `{"conf":"abc123"}`, gotBody)
	assert.Equal(t, []string{"client-id"}, tokens.audiences, "token must be scoped to the IAP client id")
}

func TestPostForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	inv := New(&stubTokens{token: "test-token"}, 5*time.Second)

	_, err := inv.Post(context.Background(), server.URL, "client-id", nil)
	var forbidden *ForbiddenError
	require.True(t, errors.As(err, &forbidden))
}

func TestPostBadResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream broke"))
	}))
	defer server.Close()

	inv := New(&stubTokens{token: "test-token"}, 5*time.Second)

	_, err := inv.Post(context.Background(), server.URL, "client-id", nil)
	var bad *BadResponseError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, http.StatusBadGateway, bad.Status)
	assert.Equal(t, "upstream broke", bad.Body)
}

func TestPostTransient(t *testing.T) {
	// A server that is already gone yields a connection error, not a status.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	inv := New(&stubTokens{token: "test-token"}, 2*time.Second)

	_, err := inv.Post(context.Background(), url, "client-id", nil)
	var transient *TransientError
	require.True(t, errors.As(err, &transient))
}

func TestPostTokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request may be sent without an identity token")
	}))
	defer server.Close()

	inv := New(&stubTokens{err: errors.New("metadata server unavailable")}, 5*time.Second)

	_, err := inv.Post(context.Background(), server.URL, "client-id", nil)
	require.Error(t, err)

	var transient *TransientError
	assert.False(t, errors.As(err, &transient), "credential failure is not a downstream classification")
}
