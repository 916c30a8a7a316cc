package direct

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"cueso/internal/model"
	"cueso/internal/roku"
)

func testDefs() []model.ToolDefinition {
	emptyObject := map[string]any{"type": "object", "properties": map[string]any{}}
	return []model.ToolDefinition{
		{
			Name: ToolFindContent,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"title": map[string]any{"type": "string"}},
				"required":   []string{"title"},
			},
			PauseAfter: true,
		},
		{
			Name: ToolLaunchContent,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"channel_id": map[string]any{"type": "integer"},
					"content_id": map[string]any{"type": "string"},
					"media_type": map[string]any{"type": "string"},
				},
				"required": []string{"channel_id", "content_id", "media_type"},
			},
		},
		{Name: ToolGetDeviceInfo, InputSchema: emptyObject},
		{Name: ToolGetActiveApp, InputSchema: emptyObject},
		{
			Name: ToolSendKey,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"key": map[string]any{"type": "string"}},
				"required":   []string{"key"},
			},
		},
	}
}

type fakeSearcher struct {
	matches []ContentMatch
	err     error
	lastQ   ContentQuery
}

func (f *fakeSearcher) Search(_ context.Context, q ContentQuery) ([]ContentMatch, error) {
	f.lastQ = q
	return f.matches, f.err
}

func newExecutor(t *testing.T, rokuClient *roku.Client, search ContentSearcher) *Executor {
	t.Helper()
	exec, err := New(rokuClient, search, testDefs())
	require.NoError(t, err)
	return exec
}

func TestFindContent_Success(t *testing.T) {
	search := &fakeSearcher{matches: []ContentMatch{{ChannelID: 12, ContentID: "abc", MediaType: "tv", Title: "Seinfeld"}}}
	exec := newExecutor(t, nil, search)

	result := exec.Execute(context.Background(), model.ToolCall{
		ID: "c1", Name: ToolFindContent, Arguments: []byte(`{"title":"Seinfeld"}`),
	})
	require.False(t, result.Error)
	require.Equal(t, "Seinfeld", search.lastQ.Title)
	require.JSONEq(t, `{"success":true,"matches":[{"channel_id":12,"content_id":"abc","media_type":"tv","title":"Seinfeld"}]}`, result.Content)
}

func TestFindContent_SchemaViolationMissingTitle(t *testing.T) {
	exec := newExecutor(t, nil, &fakeSearcher{})
	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: ToolFindContent, Arguments: []byte(`{}`)})
	require.True(t, result.Error)
	require.Contains(t, result.Content, "schema")
}

func TestFindContent_SearchError(t *testing.T) {
	exec := newExecutor(t, nil, &fakeSearcher{err: context.DeadlineExceeded})
	result := exec.Execute(context.Background(), model.ToolCall{
		ID: "c1", Name: ToolFindContent, Arguments: []byte(`{"title":"Foo"}`),
	})
	require.True(t, result.Error)
}

func newTestRokuServer(t *testing.T, handler http.HandlerFunc) *roku.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	// srv.Listener.Addr() is host:port; roku.Client respects an explicit
	// port in Addr rather than forcing 8060.
	addr := srv.Listener.Addr().String()
	client, err := roku.New(roku.Options{Addr: addr})
	require.NoError(t, err)
	return client
}

func TestLaunchContent_Success(t *testing.T) {
	var gotPath string
	rokuClient := newTestRokuServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	exec := newExecutor(t, rokuClient, &fakeSearcher{})

	result := exec.Execute(context.Background(), model.ToolCall{
		ID: "c1", Name: ToolLaunchContent,
		Arguments: []byte(`{"channel_id":12,"content_id":"abc","media_type":"tv"}`),
	})
	require.False(t, result.Error)
	require.Equal(t, "/launch/12", gotPath)
}

func TestLaunchContent_MissingChannelID(t *testing.T) {
	rokuClient := newTestRokuServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("executor must not call the device when required args are missing")
	})
	exec := newExecutor(t, rokuClient, &fakeSearcher{})

	result := exec.Execute(context.Background(), model.ToolCall{
		ID: "c1", Name: ToolLaunchContent, Arguments: []byte(`{"content_id":"abc","media_type":"tv"}`),
	})
	require.True(t, result.Error)
	require.Contains(t, result.Content, "schema")
}

func TestLaunchContent_DeviceNon2xx(t *testing.T) {
	rokuClient := newTestRokuServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	exec := newExecutor(t, rokuClient, &fakeSearcher{})

	result := exec.Execute(context.Background(), model.ToolCall{
		ID: "c1", Name: ToolLaunchContent,
		Arguments: []byte(`{"channel_id":12,"content_id":"abc","media_type":"tv"}`),
	})
	require.True(t, result.Error)
}

func TestGetDeviceInfo_Success(t *testing.T) {
	rokuClient := newTestRokuServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query/device-info", r.URL.Path)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<device-info><model-name>Roku Ultra</model-name><serial-number>X1</serial-number></device-info>`))
	})
	exec := newExecutor(t, rokuClient, &fakeSearcher{})

	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: ToolGetDeviceInfo, Arguments: []byte(`{}`)})
	require.False(t, result.Error)
	require.Contains(t, result.Content, "Roku Ultra")
}

func TestGetActiveApp_Success(t *testing.T) {
	rokuClient := newTestRokuServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query/active-app", r.URL.Path)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<active-app><app id="12">Netflix</app></active-app>`))
	})
	exec := newExecutor(t, rokuClient, &fakeSearcher{})

	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: ToolGetActiveApp, Arguments: []byte(`{}`)})
	require.False(t, result.Error)
	require.Contains(t, result.Content, "Netflix")
}

func TestSendKey_Success(t *testing.T) {
	var gotPath string
	rokuClient := newTestRokuServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	exec := newExecutor(t, rokuClient, &fakeSearcher{})

	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: ToolSendKey, Arguments: []byte(`{"key":"Home"}`)})
	require.False(t, result.Error)
	require.Equal(t, "/keypress/Home", gotPath)
}

func TestSendKey_MissingKey(t *testing.T) {
	exec := newExecutor(t, nil, &fakeSearcher{})
	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: ToolSendKey, Arguments: []byte(`{}`)})
	require.True(t, result.Error)
}

func TestExecute_UnknownTool(t *testing.T) {
	exec := newExecutor(t, nil, &fakeSearcher{})
	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: "nonexistent", Arguments: []byte(`{}`)})
	require.True(t, result.Error)
}

func TestExecute_MalformedArgumentsFailValidation(t *testing.T) {
	exec := newExecutor(t, nil, &fakeSearcher{})
	result := exec.Execute(context.Background(), model.ToolCall{ID: "c1", Name: ToolFindContent, Arguments: []byte(`not-json`)})
	require.True(t, result.Error)
	require.Contains(t, result.Content, "not valid JSON")
}
