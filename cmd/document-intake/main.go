package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/complianceauditflow/internal/services"
)

const objectFinalized = "google.cloud.storage.object.v1.finalized"

var (
	intake     *services.IntakeFunction
	intakeOnce sync.Once
	intakeErr  error
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	functions.CloudEvent("IntakeDocument", intakeDocument)
}

func main() {}

func intakeDocument(ctx context.Context, e cloudevents.Event) error {
	logCtx := slog.With("eventId", e.ID(), "eventType", e.Type(), "subject", e.Subject())
	if e.Type() != "" && e.Type() != objectFinalized {
		logCtx.Info("Ignoring storage event that is not an object finalize.")
		return nil
	}

	intakeOnce.Do(func() {
		intake, intakeErr = services.NewIntake(context.Background())
	})
	if intakeErr != nil {
		logCtx.Error("Intake function could not start", "error", intakeErr)
		return intakeErr
	}

	var upload services.GCSEvent
	if err := json.Unmarshal(e.Data(), &upload); err != nil {
		logCtx.Error("Storage event payload is not an object", "error", err, "data", string(e.Data()))
		return fmt.Errorf("failed to decode storage event: %w", err)
	}
	return intake.Process(ctx, upload)
}
