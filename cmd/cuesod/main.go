// Command cuesod runs the conversational Roku control-plane server: it
// exposes the streaming bridge over WebSocket plus the session REST surface
// on a single HTTP listener.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"cueso/internal/bridge"
	"cueso/internal/config"
	"cueso/internal/driver"
	"cueso/internal/executor/direct"
	"cueso/internal/model"
	"cueso/internal/provider"
	anthropicprovider "cueso/internal/provider/anthropic"
	openaiprovider "cueso/internal/provider/openai"
	"cueso/internal/registry"
	"cueso/internal/roku"
	"cueso/internal/session/inmem"
	"cueso/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zapLog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer zapLog.Sync() //nolint:errcheck
	logger := telemetry.NewZapLogger(zapLog)
	tracer := telemetry.NewOTELTracer()
	metrics := telemetry.NewOTELMetrics()

	prov, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("build provider: %w", err)
	}

	rokuClient, err := roku.New(roku.Options{Addr: cfg.RokuAddr, Timeout: cfg.RequestTimeout})
	if err != nil {
		return fmt.Errorf("build roku client: %w", err)
	}

	reg, err := buildRegistry(rokuClient)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	store := inmem.New()
	d := driver.New(prov, reg, logger, tracer, metrics)

	defaultCfg := model.SessionConfig{
		SystemPrompt:  cuesoSystemPrompt,
		MaxIterations: cfg.DefaultMaxIterations,
		ProviderOverrides: &model.ProviderOverrides{
			Model: cfg.DefaultModel,
		},
	}

	h := bridge.New(store, d, defaultCfg, logger, cfg.AllowedOrigins)

	sessionRoutes := h.SessionRoutes()
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.Handle("/sessions", sessionRoutes)
	mux.Handle("/sessions/", sessionRoutes)

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info(context.Background(), "starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	err = <-errc
	logger.Info(context.Background(), "shutting down", "reason", err)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error(context.Background(), "server shutdown error", "error", shutdownErr)
	}
	wg.Wait()
	return nil
}

func buildProvider(cfg config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return newAnthropicClient(cfg)
	case config.ProviderOpenAI:
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

const cuesoSystemPrompt = `You are Cueso, a voice-driven assistant controlling a Roku TV. ` +
	`Use the available tools to find and launch content and to navigate the device. ` +
	`Keep spoken replies short and confirm actions you take.`

// buildTools assembles the static direct-executor tool catalog, including
// each tool's JSON Schema (compiled later by direct.New).
func buildTools() []model.ToolDefinition {
	emptyObject := map[string]any{"type": "object", "properties": map[string]any{}}
	return []model.ToolDefinition{
		{
			Name:        direct.ToolFindContent,
			Description: "Search for watchable content (movie, TV show, or episode) across installed channels.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":      map[string]any{"type": "string"},
					"media_type": map[string]any{"type": "string", "enum": []string{"movie", "tv", "episode"}},
					"season":     map[string]any{"type": "integer"},
					"episode":    map[string]any{"type": "integer"},
				},
				"required": []string{"title"},
			},
			PauseAfter: true,
		},
		{
			Name:        direct.ToolLaunchContent,
			Description: "Launch a specific piece of content on the device via its channel and content ids.",
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
		{
			Name:        direct.ToolGetDeviceInfo,
			Description: "Return the device's model, serial number, software version, and network type.",
			InputSchema: emptyObject,
		},
		{
			Name:        direct.ToolGetActiveApp,
			Description: "Return the channel currently in the foreground on the device.",
			InputSchema: emptyObject,
		},
		{
			Name:        direct.ToolSendKey,
			Description: "Send a single remote-control keypress (e.g. Home, Select, Up, Down, Left, Right, Back, Play).",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": map[string]any{"type": "string"},
				},
				"required": []string{"key"},
			},
		},
	}
}

func buildRegistry(rokuClient *roku.Client) (*registry.Registry, error) {
	defs := buildTools()
	exec, err := direct.New(rokuClient, noSearcher{}, defs)
	if err != nil {
		return nil, err
	}
	entries := make([]registry.Entry, 0, len(defs))
	for _, def := range defs {
		entries = append(entries, registry.Entry{Definition: def, Executor: exec})
	}
	return registry.New(entries)
}

// noSearcher is the default ContentSearcher: find_content always reports no
// matches until an external search provider is configured. Content discovery
// is out of this system's scope per spec.md §1.
type noSearcher struct{}

func (noSearcher) Search(ctx context.Context, q direct.ContentQuery) ([]direct.ContentMatch, error) {
	return nil, nil
}

func newAnthropicClient(cfg config.Config) (*anthropicprovider.Client, error) {
	c := sdk.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	return anthropicprovider.New(&c.Messages, anthropicprovider.Options{DefaultModel: cfg.DefaultModel})
}

func newOpenAIClient(cfg config.Config) (*openaiprovider.Client, error) {
	c := openaisdk.NewClient(cfg.OpenAIAPIKey)
	return openaiprovider.New(c, openaiprovider.Options{DefaultModel: cfg.DefaultModel})
}
