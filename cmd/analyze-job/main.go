package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/redflag-ai/redflag/internal/models"
	"github.com/redflag-ai/redflag/internal/services"
)

var (
	analyzerInstance *services.Analyzer
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The framework routes the Pub/Sub
	// event here.
	functions.CloudEvent("AnalyzeJob", analyzeJob)
}

// main is required by the Go Functions Framework.
func main() {}

// analyzeJob is the Cloud Function entry point. Apart from initialization
// failures it always returns nil: the job document carries the outcome, and
// redelivering a message cannot fix anything the document doesn't already
// record.
func analyzeJob(ctx context.Context, e cloudevents.Event) error {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		analyzerInstance, initErr = services.NewAnalyzer(context.Background())
	})
	if initErr != nil {
		// Returning the error lets the platform retry on a healthy instance.
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	logCtx := slog.With("runId", uuid.NewString())

	var msg models.MessagePublishedData
	if err := json.Unmarshal(e.Data(), &msg); err != nil {
		logCtx.Error("Failed to unmarshal event data. Dropping message.", "error", err, "data", string(e.Data()))
		return nil
	}

	var payload models.AnalyzeJobMessage
	if len(msg.Message.Data) > 0 {
		if err := json.Unmarshal(msg.Message.Data, &payload); err != nil {
			logCtx.Error("Failed to unmarshal message payload. Dropping message.", "error", err, "data", string(msg.Message.Data))
			return nil
		}
	}
	if payload.JobID == "" {
		payload.JobID = msg.Message.Attributes["jobId"]
	}
	if payload.JobID == "" {
		logCtx.Error("Message carries no jobId. Dropping message.", "messageId", msg.Message.MessageID)
		return nil
	}

	logCtx = logCtx.With("jobId", payload.JobID, "messageId", msg.Message.MessageID)
	logCtx.Info("Received analyze request.")

	if err := analyzerInstance.Process(ctx, payload.JobID); err != nil {
		// The outcome is already recorded on the job document; acking here
		// prevents a futile redelivery loop.
		logCtx.Error("Job processing finished with error.", "error", err)
	}
	return nil
}
