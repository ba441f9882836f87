// Package extraction turns a claim bundle into raw text through the vision
// collaborator.
package extraction

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

// Instruction is sent with every bundle. Front is always the first image.
const Instruction = `You are an OCR assistant for an auto insurance company.
The images are the front and back of one handwritten or printed claim statement, in that order.
Transcribe every piece of text you can read from both images, in reading order, into a single plain-text document.
Keep field labels next to their values (for example "Policy Number: ..."), keep checkbox states as [x] or [ ], and keep dates, amounts and identifiers exactly as written.
Mark text you cannot read as [illegible]. Do not summarize, interpret, translate or add anything that is not on the page. Do not wrap the output in markdown.`

// Adapter reads a bundle's artifacts and asks the vision collaborator for
// their text. It never returns an error: every problem becomes a failure
// outcome on the RawExtraction.
type Adapter struct {
	reader      port.ArtifactReader
	vision      port.VisionExtractor
	instruction string
}

// NewAdapter creates an Adapter using the default Instruction.
func NewAdapter(reader port.ArtifactReader, vision port.VisionExtractor) *Adapter {
	return &Adapter{reader: reader, vision: vision, instruction: Instruction}
}

// WithReader returns a copy of the adapter reading artifacts from reader.
func (a *Adapter) WithReader(reader port.ArtifactReader) *Adapter {
	cp := *a
	cp.reader = reader
	return &cp
}

// Extract transcribes the bundle. Only complete bundles, or bundles flagged
// SingleImage with a front side, are sent to the vision collaborator.
func (a *Adapter) Extract(ctx context.Context, bundle domain.ClaimBundle) (out domain.RawExtraction) {
	keys := bundle.Artifacts()
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("extraction.Adapter: recovered from panic",
				zap.String("claim_id", bundle.ClaimID), zap.Any("panic", r))
			out = failure(bundle.ClaimID, keys, fmt.Sprintf("extraction panicked: %v", r), nil)
		}
	}()

	if !extractable(bundle) {
		return failure(bundle.ClaimID, keys, domain.ErrIncompleteBundle.Error(), domain.ErrIncompleteBundle)
	}

	images := make([]port.ImageInput, 0, len(keys))
	for _, key := range keys {
		data, err := a.reader.ReadArtifact(ctx, key)
		if err != nil {
			return failure(bundle.ClaimID, keys, fmt.Sprintf("reading %s: %v", key, err), err)
		}
		contentType, ok := ContentType(key, data)
		if !ok {
			return failure(bundle.ClaimID, keys, fmt.Sprintf("%s: %s", key, domain.ErrUnsupportedFileType), domain.ErrUnsupportedFileType)
		}
		images = append(images, port.ImageInput{Name: path.Base(key), ContentType: contentType, Data: data})
	}

	vout, err := a.vision.ExtractText(ctx, port.VisionInput{Images: images, Instruction: a.instruction})
	if err != nil {
		return failure(bundle.ClaimID, keys, fmt.Sprintf("vision service: %v", err), err)
	}
	text := strings.TrimSpace(vout.Text)
	if text == "" {
		return failure(bundle.ClaimID, keys, "vision service returned no text", nil)
	}

	zap.L().Info("extraction.Adapter: extracted text",
		zap.String("claim_id", bundle.ClaimID), zap.Int("characters", len(text)),
		zap.String("model", vout.ModelUsed))
	return domain.RawExtraction{
		ClaimID: bundle.ClaimID,
		Outcome: domain.OutcomeSuccess,
		Text:    text,
		Model:   vout.ModelUsed,
		Sources: keys,
	}
}

// SingleImageBundle builds a bundle for one uploaded image, used as the front.
func SingleImageBundle(claimID, key string) domain.ClaimBundle {
	return domain.ClaimBundle{
		ClaimID:     claimID,
		Sides:       map[domain.ImageSide]string{domain.SideFront: key},
		SingleImage: true,
	}
}

// ContentType sniffs the image type of data, falling back to the key's
// extension. It reports false for anything that is not an image.
func ContentType(key string, data []byte) (string, bool) {
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected, true
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
	if ct, ok := domain.AllowedExtensions[ext]; ok {
		return ct, true
	}
	return "", false
}

func extractable(b domain.ClaimBundle) bool {
	if b.SingleImage {
		return b.Sides[domain.SideFront] != ""
	}
	return b.Complete()
}

func failure(claimID string, keys []string, msg string, cause error) domain.RawExtraction {
	zap.L().Warn("extraction.Adapter: extraction failed",
		zap.String("claim_id", claimID), zap.String("error", msg))
	return domain.RawExtraction{
		ClaimID: claimID,
		Outcome: domain.OutcomeFailure,
		Error:   msg,
		Sources: keys,
		Cause:   cause,
	}
}
