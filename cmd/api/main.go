package main

import (
	"context"
	"os"

	"github.com/aits/backend/internal/pkg/logger"
	"github.com/aits/backend/internal/server"
)

// @title AITS API
// @version 1.0
// @description Academic Issue Tracking System. Students raise academic issues, registrars route them to lecturers and lecturers resolve them.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT access token, prefixed with "Bearer "

func main() {
	srv, err := server.NewServer(context.Background(), "")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
