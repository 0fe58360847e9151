package services

import (
	"context"

	"github.com/redflag-ai/redflag/internal/models"
)

// JobStore is the job-side persistence the analyzer depends on.
type JobStore interface {
	Get(ctx context.Context, id string) (*models.Job, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkComplete(ctx context.Context, id, reportID, warn string) error
	MarkError(ctx context.Context, id, code, message string) error
}

// ReportStore persists finished reports.
type ReportStore interface {
	Save(ctx context.Context, report *models.Report) error
	SetImagesDeleted(ctx context.Context, id string, deleted bool) error
}

// ImageStore reads and deletes uploaded screenshot objects. Delete must
// treat an already-missing object as success.
type ImageStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// TextRecognizer extracts text from one image.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, image []byte) (string, error)
}

// TextModel produces a raw model response for a single prompt. The response
// is expected, but never guaranteed, to be a JSON object.
type TextModel interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}
