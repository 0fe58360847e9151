package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/redflag-ai/redflag/internal/gcp"
	"github.com/redflag-ai/redflag/internal/models"
	"github.com/redflag-ai/redflag/internal/store"
)

const (
	ocrConcurrency       = 4
	maxErrorMessageRunes = 500
)

// AnalyzerConfig holds all configuration for the analyzer service.
type AnalyzerConfig struct {
	ProjectID          string
	UploadsBucket      string
	JobsCollection     string
	ReportsCollection  string
	VertexAIRegion     string
	ClassifierProvider string
	ClassifierModel    string
	OpenAIModel        string
	FreeMaxFiles       int
	ProMaxFiles        int
	CleanerRulesFile   string
}

// Analyzer holds the dependencies for the screenshot-to-report pipeline.
type Analyzer struct {
	jobs         JobStore
	reports      ReportStore
	images       ImageStore
	ocr          TextRecognizer
	classifier   *Classifier
	cleanerRules []*regexp.Regexp
	config       AnalyzerConfig
}

// loadAnalyzerConfig loads and validates all necessary environment variables
// for this service.
func loadAnalyzerConfig() (*AnalyzerConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	uploadsBucket := gcp.GetEnv("UPLOADS_BUCKET", "")
	if uploadsBucket == "" {
		return nil, fmt.Errorf("UPLOADS_BUCKET environment variable must be set")
	}

	return &AnalyzerConfig{
		ProjectID:          projectID,
		UploadsBucket:      uploadsBucket,
		JobsCollection:     gcp.GetEnv("JOBS_COLLECTION", "jobs"),
		ReportsCollection:  gcp.GetEnv("REPORTS_COLLECTION", "reports"),
		VertexAIRegion:     gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ClassifierProvider: gcp.GetEnv("CLASSIFIER_PROVIDER", "vertex"),
		ClassifierModel:    gcp.GetEnv("CLASSIFIER_MODEL", "gemini-1.5-flash"),
		OpenAIModel:        gcp.GetEnv("OPENAI_MODEL", "gpt-4o-mini"),
		FreeMaxFiles:       gcp.GetEnvInt("FREE_MAX_FILES", 2),
		ProMaxFiles:        gcp.GetEnvInt("PRO_MAX_FILES", 10),
		CleanerRulesFile:   gcp.GetEnv("CLEANER_RULES_FILE", ""),
	}, nil
}

// NewAnalyzer creates a new Analyzer instance with all production clients.
func NewAnalyzer(ctx context.Context) (*Analyzer, error) {
	config, err := loadAnalyzerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	visionClient, err := gcp.NewVisionClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	model, err := newTextModel(ctx, config)
	if err != nil {
		return nil, err
	}

	var cleanerRules []*regexp.Regexp
	if config.CleanerRulesFile != "" {
		cleanerRules, err = LoadCleanerRules(config.CleanerRulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load cleaner rules: %w", err)
		}
	}

	f := &Analyzer{
		jobs:         store.NewFirestoreJobStore(firestoreClient, config.JobsCollection),
		reports:      store.NewFirestoreReportStore(firestoreClient, config.ReportsCollection),
		images:       store.NewGCSImageStore(storageClient, config.UploadsBucket),
		ocr:          NewVisionRecognizer(visionClient),
		classifier:   NewClassifier(model),
		cleanerRules: cleanerRules,
		config:       *config,
	}
	slog.Info("Analyzer logic initialized.",
		"provider", config.ClassifierProvider, "jobsCollection", config.JobsCollection)
	return f, nil
}

// newTextModel selects the classifier backend. Vertex AI is the default;
// CLASSIFIER_PROVIDER=openai switches to the OpenAI API.
func newTextModel(ctx context.Context, config *AnalyzerConfig) (TextModel, error) {
	switch config.ClassifierProvider {
	case "openai":
		apiKey := gcp.GetEnv("OPENAI_API_KEY", "")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable must be set when CLASSIFIER_PROVIDER=openai")
		}
		return NewOpenAIModel(openai.NewClient(apiKey), config.OpenAIModel), nil
	case "vertex":
		vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.ClassifierModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		return NewVertexModel(vertexClient.ClassifierModel), nil
	default:
		return nil, fmt.Errorf("unknown CLASSIFIER_PROVIDER %q", config.ClassifierProvider)
	}
}

// Process runs one job end to end. By the time it returns, the job document
// reflects the outcome; the returned error only describes what went wrong
// for the caller's logs. Process converges without redelivery, so the
// triggering message is acked regardless.
func (a *Analyzer) Process(ctx context.Context, jobID string) (err error) {
	start := time.Now()
	logCtx := slog.With("jobId", jobID)

	defer func() {
		if r := recover(); r != nil {
			logCtx.Error("Panic while processing job.", "panic", r)
			err = a.failJob(ctx, logCtx, jobID, models.ErrCodePipelineFailed, fmt.Errorf("internal error: %v", r))
		}
	}()

	job, err := a.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			logCtx.Warn("Job not found. Dropping message.")
			return nil
		}
		logCtx.Error("Failed to load job", "error", err)
		return err
	}
	if job.Status == models.JobStatusUserDeleted {
		logCtx.Info("Job belongs to a deleted user. Dropping message.")
		return nil
	}

	logCtx = logCtx.With("plan", job.Plan, "files", len(job.Files))
	logCtx.Info("Starting analysis.")

	if err := a.jobs.MarkProcessing(ctx, jobID); err != nil {
		return a.failJob(ctx, logCtx, jobID, models.ErrCodePipelineFailed,
			fmt.Errorf("failed to mark job processing: %w", err))
	}

	if limit := a.maxFilesFor(job.Plan); len(job.Files) > limit {
		return a.failJob(ctx, logCtx, jobID, models.ErrCodeTooManyFiles,
			fmt.Errorf("job has %d files but the %s plan allows at most %d", len(job.Files), job.Plan, limit))
	}

	texts, ocrFailures := a.recognizeAll(ctx, logCtx, job.Files)

	var raw map[string]any
	if len(job.Files) == 0 {
		// Nothing to analyze; skip the model call and emit a minimal report.
		raw = map[string]any{}
	} else {
		transcript := BuildTranscript(texts)
		raw = a.classifier.Classify(ctx, job.Instructions, transcript)
	}

	now := time.Now().UTC()
	report := &models.Report{
		ID:        job.ID,
		JobID:     job.ID,
		UserID:    job.UserID,
		JSON:      Normalize(raw),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.reports.Save(ctx, report); err != nil {
		return a.failJob(ctx, logCtx, jobID, models.ErrCodePipelineFailed,
			fmt.Errorf("failed to save report: %w", err))
	}

	var warns []string
	if ocrFailures > 0 {
		warns = append(warns, fmt.Sprintf("%d of %d screenshots produced no text", ocrFailures, len(job.Files)))
	}
	if len(raw) == 0 && len(job.Files) > 0 {
		warns = append(warns, "classifier returned no analysis")
	}

	paths := make([]string, len(job.Files))
	for i, file := range job.Files {
		paths[i] = file.Path
	}
	if err := PurgeImages(ctx, a.images, paths); err != nil {
		warns = append(warns, "some uploaded images could not be deleted")
	} else if err := a.reports.SetImagesDeleted(ctx, report.ID, true); err != nil {
		logCtx.Warn("Failed to record image deletion on report", "error", err)
		warns = append(warns, "image deletion not recorded")
	}

	if err := a.jobs.MarkComplete(ctx, jobID, report.ID, strings.Join(warns, "; ")); err != nil {
		return a.failJob(ctx, logCtx, jobID, models.ErrCodePipelineFailed,
			fmt.Errorf("failed to finalize job: %w", err))
	}

	logCtx.Info("Analysis complete.",
		"riskScore", report.JSON.RiskScore,
		"riskLabel", report.JSON.RiskLabel,
		"tactics", len(report.JSON.Tactics),
		"durationMs", time.Since(start).Milliseconds())
	return nil
}

// recognizeAll runs the read-preprocess-OCR chain over every file with
// bounded concurrency. Results keep upload order. Per-file failures leave an
// empty slot and are counted, never propagated; a screenshot the pipeline
// cannot read should cost the user one placeholder, not the whole job.
func (a *Analyzer) recognizeAll(ctx context.Context, logCtx *slog.Logger, files []models.FileReference) ([]string, int) {
	texts := make([]string, len(files))
	var failures atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ocrConcurrency)
	for i, file := range files {
		g.Go(func() error {
			text, err := a.processImage(gctx, file.Path)
			if err != nil {
				logCtx.Warn("Screenshot processing failed.", "path", file.Path, "error", err)
				failures.Add(1)
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	_ = g.Wait() // workers always return nil

	return texts, int(failures.Load())
}

// processImage reads, preprocesses, and OCRs one uploaded screenshot.
func (a *Analyzer) processImage(ctx context.Context, path string) (string, error) {
	raw, err := a.images.Read(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}

	prepared, err := PreprocessImage(raw)
	if err != nil {
		// Vision accepts PNG and JPEG directly, so an undecodable upload
		// still gets a chance as-is.
		slog.Warn("Image preprocessing failed, sending original bytes to OCR.", "path", path, "error", err)
		prepared = raw
	}

	text, err := a.ocr.RecognizeText(ctx, prepared)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return CleanTranscript(text, a.cleanerRules), nil
}

// failJob records a terminal failure on the job document and returns an
// error describing the original problem. The stored message is truncated so
// a huge upstream error cannot bloat the job document.
func (a *Analyzer) failJob(ctx context.Context, logCtx *slog.Logger, jobID, code string, cause error) error {
	logCtx.Error("Job failed", "code", code, "error", cause)
	msg := truncateRunes(cause.Error(), maxErrorMessageRunes)
	if err := a.jobs.MarkError(ctx, jobID, code, msg); err != nil {
		logCtx.Error("CRITICAL: Failed to update job status to error after a processing failure.", "updateError", err)
	}
	return fmt.Errorf("job %s failed: %w", jobID, cause)
}

// maxFilesFor returns the per-plan screenshot limit. Unknown plans get the
// free tier's limit.
func (a *Analyzer) maxFilesFor(plan string) int {
	if plan == models.PlanPro {
		return a.config.ProMaxFiles
	}
	return a.config.FreeMaxFiles
}
