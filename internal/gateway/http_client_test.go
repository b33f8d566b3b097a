package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworkforce/recordmirror/internal/records"
)

func TestHTTPClientFetchAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/users", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("X-Correlation-Id"), "mirror_"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":1,"name":"Leanne Graham","username":"Bret","address":{"city":"Gwenborough","geo":{"lat":"-37.3159","lng":"81.1496"}},"company":{"name":"Romaguera-Crona"}},
			{"id":2,"name":"Ervin Howell","username":"Antonette","address":{"city":"Wisokyburgh"},"company":{"name":"Deckow-Crist"}}
		]`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/users/", server.Client())
	recs, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Leanne Graham", recs[0].Name)
	assert.JSONEq(t, `{"lat":"-37.3159","lng":"81.1496"}`, string(recs[0].Address["geo"]))
}

func TestHTTPClientSendsPartialFormBody(t *testing.T) {
	var gotBody map[string]any
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":3,"name":"New"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/users", server.Client())
	err := client.Update(context.Background(), 3, records.FormData{
		Name:    records.Str("New"),
		Address: &records.FormAddress{City: records.Str("Gwenborough")},
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/users/3", gotPath)
	assert.Equal(t, map[string]any{
		"name":    "New",
		"address": map[string]any{"city": "Gwenborough"},
	}, gotBody)

	require.NoError(t, client.Create(context.Background(), records.FormData{Name: records.Str("X"), Username: records.Str("x")}))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/users", gotPath)
}

func TestHTTPClientDoesNotRetryFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/users", server.Client())
	err := client.Delete(context.Background(), 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSync))

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "delete", syncErr.Op)
	assert.Equal(t, 4, syncErr.ID)
	assert.Equal(t, http.StatusServiceUnavailable, syncErr.StatusCode)
	assert.Equal(t, "maintenance", syncErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPClientMapsNotFoundAndTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	}))
	client := NewHTTPClient(server.URL+"/users", server.Client())
	_, err := client.Fetch(context.Background(), 99)
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, http.StatusNotFound, syncErr.StatusCode)
	assert.Equal(t, "Not Found", syncErr.Message)
	server.Close()

	_, err = client.FetchAll(context.Background())
	require.True(t, errors.As(err, &syncErr))
	assert.Zero(t, syncErr.StatusCode)
	assert.NotNil(t, syncErr.Err)
}

func TestHTTPClientRejectsUndecodableSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/users", server.Client())
	_, err := client.FetchAll(context.Background())
	assert.True(t, errors.Is(err, ErrSync))
}

func TestNewHTTPClientDefaults(t *testing.T) {
	client := NewHTTPClient("  ", nil)
	assert.Equal(t, DefaultBaseURL, client.BaseURL())
}
