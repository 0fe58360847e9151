package gcp

import (
	"context"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"google.golang.org/api/option"
)

// NewVisionClient creates a Cloud Vision image annotator client. Inline
// credentials in GOOGLE_CREDENTIALS take precedence over a credentials file
// path; with neither set, application default credentials are used.
func NewVisionClient(ctx context.Context) (*vision.ImageAnnotatorClient, error) {
	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vision client: %w", err)
	}
	return client, nil
}
