package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mimi-labs/voicestream/src/channel"
	"github.com/mimi-labs/voicestream/src/config"
	"github.com/mimi-labs/voicestream/src/logger"
	"github.com/mimi-labs/voicestream/src/server"
	"github.com/mimi-labs/voicestream/src/services"
	"github.com/mimi-labs/voicestream/src/services/gemini"
	"github.com/mimi-labs/voicestream/src/session"
	"github.com/mimi-labs/voicestream/src/transports"
	"github.com/mimi-labs/voicestream/src/turn"
)

func main() {
	logger.Init()
	log := logger.WithPrefix("Main")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Configuration error: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	menu, err := loadMenu(cfg.MenuFile)
	if err != nil {
		log.Error("Loading menu catalog: %v", err)
		os.Exit(1)
	}
	log.Info("Menu catalog loaded with %d items", menu.Len())

	dialer, err := channel.NewGeminiDialer(ctx, channel.GeminiConfig{
		APIKey:       cfg.GeminiAPIKey,
		Model:        cfg.LiveModel,
		Voice:        cfg.Voice,
		LanguageCode: cfg.LanguageCode,
		SystemPrompt: cfg.SystemPrompt,
		UseVertex:    cfg.UseVertex,
		ProjectID:    cfg.VertexProject,
		Location:     cfg.VertexRegion,
	})
	if err != nil {
		log.Error("Speech channel setup failed: %v", err)
		os.Exit(1)
	}

	sessions := session.NewRegistry(dialer, cfg.ProcessorConfig(), cfg.TranscriptCap)
	clients := transports.NewClientRegistry()
	turns := turn.New(clients, turn.Config{
		Timeout:      cfg.TurnTimeout,
		PollInterval: cfg.PollInterval,
	})
	responder := gemini.NewResponder(gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.ClassifierModel,
		Timeout: cfg.ClassifierTimeout,
	}, menu)

	mux := http.NewServeMux()
	mux.Handle("/ws", transports.NewWebSocketServer(clients))
	server.New(sessions, responder, turns).Routes(mux)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Info("Listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown: %v", err)
	}
	sessions.CloseAll()
	log.Info("Shutdown complete")
}

// loadMenu reads the catalog JSON file, an array of menu items. An
// unset path yields an empty catalog.
func loadMenu(path string) (*services.Menu, error) {
	if path == "" {
		return services.NewMenu(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []services.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return services.NewMenu(items), nil
}
