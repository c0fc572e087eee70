// Command assistant is the terminal client for the education platform's
// AI assistant.
package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opencampus/assistant-cli/internal/backend"
	"github.com/opencampus/assistant-cli/internal/cache"
	"github.com/opencampus/assistant-cli/internal/chat"
	"github.com/opencampus/assistant-cli/internal/config"
	"github.com/opencampus/assistant-cli/internal/domain"
	"github.com/opencampus/assistant-cli/internal/store"
	"github.com/opencampus/assistant-cli/internal/tui"
)

func main() {
	cfg := config.Load()

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	localCache, err := cache.Open(cfg.CachePath)
	if err != nil {
		logger.Fatal("failed to open local cache",
			zap.Error(err),
			zap.String("path", cfg.CachePath))
	}
	defer localCache.Close()

	client := backend.NewClient(cfg.BackendURL, backend.StaticToken(cfg.APIToken), cfg.RequestTimeout)
	conversations := store.New(client, logger)

	settings := domain.ChatSettings{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		UseContext:  cfg.UseContext,
	}
	chatService := chat.NewService(conversations, client, settings, logger)

	// Paint from the last-known-good snapshot; the first Load replaces it.
	ctx := context.Background()
	if snapshot, err := localCache.LoadConversations(ctx); err == nil {
		conversations.Seed(snapshot)
	} else {
		logger.Warn("failed to read conversation snapshot", zap.Error(err))
	}
	if stats, err := localCache.LoadStats(ctx); err == nil {
		chatService.SeedStats(stats)
	} else {
		logger.Warn("failed to read cached stats", zap.Error(err))
	}
	if templateID, err := localCache.SelectedTemplate(ctx); err == nil {
		chatService.SelectTemplate(templateID)
	} else {
		logger.Warn("failed to read template selection", zap.Error(err))
	}

	program := tea.NewProgram(
		tui.New(conversations, chatService, cfg.RequestTimeout, logger),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		logger.Fatal("terminal UI failed", zap.Error(err))
	}

	// Persist last-known-good state for the next session.
	if err := localCache.SaveStats(ctx, chatService.Stats()); err != nil {
		logger.Warn("failed to persist stats", zap.Error(err))
	}
	if err := localCache.SaveConversations(ctx, conversations.Conversations()); err != nil {
		logger.Warn("failed to persist conversation snapshot", zap.Error(err))
	}
	if err := localCache.SaveSelectedTemplate(ctx, chatService.SelectedTemplate()); err != nil {
		logger.Warn("failed to persist template selection", zap.Error(err))
	}
}

// buildLogger writes structured logs to a file so they do not interleave
// with the terminal UI.
func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"assistant.log"}
	cfg.ErrorOutputPaths = []string{"assistant.log"}
	return cfg.Build()
}
