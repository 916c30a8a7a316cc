package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cueso/internal/model"
)

func newCatalogServer(t *testing.T, catalog []catalogEntry, invoke http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tools", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(catalog)
	})
	mux.HandleFunc("/tools/", invoke)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_DiscoversCatalog(t *testing.T) {
	srv := newCatalogServer(t, []catalogEntry{
		{Name: "weather", Description: "get weather", InputSchema: map[string]any{"type": "object"}},
	}, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected invoke during discovery")
	})

	exec, err := New(context.Background(), []ServerConfig{{Name: "srv1", BaseURL: srv.URL}}, time.Second)
	require.NoError(t, err)

	defs := exec.Tools()
	require.Len(t, defs, 1)
	require.Equal(t, "weather", defs[0].Name)
}

func TestNew_CollidingToolNamesAcrossServersError(t *testing.T) {
	srvA := newCatalogServer(t, []catalogEntry{{Name: "weather"}}, nil)
	srvB := newCatalogServer(t, []catalogEntry{{Name: "weather"}}, nil)

	_, err := New(context.Background(), []ServerConfig{
		{Name: "a", BaseURL: srvA.URL},
		{Name: "b", BaseURL: srvB.URL},
	}, time.Second)
	require.Error(t, err)
}

func TestNew_DiscoveryFailureErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(context.Background(), []ServerConfig{{Name: "a", BaseURL: srv.URL}}, time.Second)
	require.Error(t, err)
}

func TestExecute_Success(t *testing.T) {
	srv := newCatalogServer(t, []catalogEntry{{Name: "weather"}}, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tools/weather/invoke", r.URL.Path)
		_ = json.NewEncoder(w).Encode(invokeResponse{Result: `{"temp":72}`})
	})

	exec, err := New(context.Background(), []ServerConfig{{Name: "a", BaseURL: srv.URL}}, time.Second)
	require.NoError(t, err)

	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: "weather", Arguments: []byte(`{}`)})
	require.False(t, result.Error)
	require.Equal(t, `{"temp":72}`, result.Content)
}

func TestExecute_ServerReportedErrorConvertsToErrorResult(t *testing.T) {
	srv := newCatalogServer(t, []catalogEntry{{Name: "weather"}}, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(invokeResponse{Error: "upstream unavailable"})
	})

	exec, err := New(context.Background(), []ServerConfig{{Name: "a", BaseURL: srv.URL}}, time.Second)
	require.NoError(t, err)

	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: "weather", Arguments: []byte(`{}`)})
	require.True(t, result.Error)
	require.Equal(t, "upstream unavailable", result.Content)
}

func TestExecute_TransportFailureConvertsToErrorResult(t *testing.T) {
	srv := newCatalogServer(t, []catalogEntry{{Name: "weather"}}, nil)
	exec, err := New(context.Background(), []ServerConfig{{Name: "a", BaseURL: srv.URL}}, time.Second)
	require.NoError(t, err)
	srv.Close() // subsequent invoke calls now fail transport-level

	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: "weather", Arguments: []byte(`{}`)})
	require.True(t, result.Error)
}

func TestExecute_Non2xxConvertsToErrorResult(t *testing.T) {
	srv := newCatalogServer(t, []catalogEntry{{Name: "weather"}}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	exec, err := New(context.Background(), []ServerConfig{{Name: "a", BaseURL: srv.URL}}, time.Second)
	require.NoError(t, err)

	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: "weather", Arguments: []byte(`{}`)})
	require.True(t, result.Error)
}

func TestExecute_UnknownToolConvertsToErrorResult(t *testing.T) {
	srv := newCatalogServer(t, nil, nil)
	exec, err := New(context.Background(), []ServerConfig{{Name: "a", BaseURL: srv.URL}}, time.Second)
	require.NoError(t, err)

	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: "unknown", Arguments: []byte(`{}`)})
	require.True(t, result.Error)
}
