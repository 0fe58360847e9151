package services

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// VisionRecognizer extracts text from screenshots with Cloud Vision.
// Document text detection handles the dense small fonts of chat interfaces
// better than plain text detection does.
type VisionRecognizer struct {
	client *vision.ImageAnnotatorClient
}

func NewVisionRecognizer(client *vision.ImageAnnotatorClient) *VisionRecognizer {
	return &VisionRecognizer{client: client}
}

// RecognizeText runs document text detection on a single image and returns
// the full text annotation. An image with no detectable text yields "".
func (r *VisionRecognizer) RecognizeText(ctx context.Context, image []byte) (string, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := r.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision annotate failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("vision returned no responses")
	}

	annotation := resp.Responses[0]
	if annotation.Error != nil {
		return "", fmt.Errorf("vision error: %s", annotation.Error.Message)
	}
	return strings.TrimSpace(annotation.GetFullTextAnnotation().GetText()), nil
}
