package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/redflag-ai/redflag/internal/models"
)

// FirestoreJobStore reads and transitions job documents in a single collection.
type FirestoreJobStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreJobStore(client *firestore.Client, collection string) *FirestoreJobStore {
	return &FirestoreJobStore{client: client, collection: collection}
}

func (s *FirestoreJobStore) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

// Get loads a job by id. A missing document maps to models.ErrJobNotFound.
func (s *FirestoreJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	snap, err := s.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	var job models.Job
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	job.ID = snap.Ref.ID
	return &job, nil
}

// MarkProcessing moves a job into the processing state.
func (s *FirestoreJobStore) MarkProcessing(ctx context.Context, id string) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.JobStatusProcessing},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if _, err := s.doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to mark job %s processing: %w", id, err)
	}
	return nil
}

// MarkComplete records the finished report reference. Any error left over
// from a previous failed run is cleared so a redelivered message converges
// on a clean terminal state.
func (s *FirestoreJobStore) MarkComplete(ctx context.Context, id, reportID, warn string) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.JobStatusComplete},
		{Path: "reportId", Value: reportID},
		{Path: "error", Value: firestore.Delete},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if warn != "" {
		updates = append(updates, firestore.Update{Path: "warn", Value: warn})
	}
	if _, err := s.doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to mark job %s complete: %w", id, err)
	}
	return nil
}

// MarkError records a terminal failure. Uploaded files are left in place so
// the user can retry or delete the job themselves.
func (s *FirestoreJobStore) MarkError(ctx context.Context, id, code, message string) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.JobStatusError},
		{Path: "error", Value: &models.JobError{Code: code, Message: message}},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if _, err := s.doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to mark job %s errored: %w", id, err)
	}
	return nil
}

// FirestoreReportStore persists normalized reports keyed by job id.
type FirestoreReportStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreReportStore(client *firestore.Client, collection string) *FirestoreReportStore {
	return &FirestoreReportStore{client: client, collection: collection}
}

// Save writes the report document, replacing any previous run's output for
// the same job.
func (s *FirestoreReportStore) Save(ctx context.Context, report *models.Report) error {
	if _, err := s.client.Collection(s.collection).Doc(report.ID).Set(ctx, report); err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.ID, err)
	}
	return nil
}

// SetImagesDeleted flips the purge marker once source images are removed.
func (s *FirestoreReportStore) SetImagesDeleted(ctx context.Context, id string, deleted bool) error {
	updates := []firestore.Update{
		{Path: "images_deleted", Value: deleted},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if _, err := s.client.Collection(s.collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to set images_deleted on report %s: %w", id, err)
	}
	return nil
}
