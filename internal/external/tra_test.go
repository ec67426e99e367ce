package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTRAClient_SubmitRoutesByEndpoint(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"code":"TRA-1"}`))
	}))
	defer srv.Close()

	client := NewTRAClient(TRAConfig{BaseURL: srv.URL + "/", Token: "secret"})

	resp, err := client.Submit(context.Background(), "secondary", map[string]any{"nombre": "Pedro"})

	require.NoError(t, err)
	assert.Equal(t, "/two", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "Pedro", gotBody["nombre"])
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"code":"TRA-1"}`, string(resp.Body))
}

func TestTRAClient_NonJSONBodyIsQuoted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("accepted"))
	}))
	defer srv.Close()

	client := NewTRAClient(TRAConfig{BaseURL: srv.URL, PrimaryPath: "/guests"})

	resp, err := client.Submit(context.Background(), "primary", map[string]any{})

	require.NoError(t, err)
	assert.Equal(t, `"accepted"`, string(resp.Body))
}

func TestTRAClient_Non2xxKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"invalid document"}`))
	}))
	defer srv.Close()

	client := NewTRAClient(TRAConfig{BaseURL: srv.URL})

	_, err := client.Submit(context.Background(), "primary", map[string]any{})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.JSONEq(t, `{"error":"invalid document"}`, string(httpErr.Body))
}

func TestTRAClient_UnknownEndpoint(t *testing.T) {
	client := NewTRAClient(TRAConfig{BaseURL: "http://unused"})

	_, err := client.Submit(context.Background(), "tertiary", map[string]any{})

	require.Error(t, err)
}

func TestTRAConfig_Missing(t *testing.T) {
	cfg := TRAConfig{BaseURL: "http://x", Token: "t", EstablishmentName: "Hostel", Cost: " "}

	assert.Equal(t, []string{
		"TRA_ESTABLISHMENT_RNT", "TRA_ROOM_NUMBER", "TRA_ACCOMMODATION_TYPE", "TRA_COST",
	}, cfg.Missing())
}

func TestHTTPError_TruncatesBody(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	err := &HTTPError{StatusCode: 500, Body: long}

	assert.Len(t, err.Error(), len("unexpected status code: 500: ")+512+3)
}
