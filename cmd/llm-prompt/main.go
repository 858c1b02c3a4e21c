package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/complianceauditflow/internal/llm"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
	"github.com/Lllllllleong/complianceauditflow/internal/services"
)

var (
	promptInstance *services.PromptFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandlePrompt", handlePrompt)
}

func main() {}

func handlePrompt(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		promptInstance, initErr = services.NewPrompt(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Prompt function initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := promptInstance.Process(r.Context(), &req)
	if err != nil {
		var completionErr *llm.CompletionError
		switch {
		case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, models.ErrConfiguration):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.As(err, &completionErr):
			http.Error(w, completionErr.Error(), http.StatusBadGateway)
		default:
			http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
