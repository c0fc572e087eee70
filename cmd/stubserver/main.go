// Command stubserver runs an in-memory implementation of the assistant
// backend contract for offline development of the client.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/opencampus/assistant-cli/internal/stub"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	port := 8000
	if val := os.Getenv("STUB_PORT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			port = p
		}
	}
	token := os.Getenv("STUB_TOKEN")

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	stub.NewHandler(token).RegisterRoutes(e)

	logger.Info("stub backend listening",
		zap.Int("port", port),
		zap.Bool("auth_enabled", token != ""))
	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil {
		logger.Fatal("stub backend failed", zap.Error(err))
	}
}
