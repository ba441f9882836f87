package extraction

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"claimflow/internal/domain"
)

// OCR result statuses.
const (
	OCRStatusSuccess = "success"
	OCRStatusError   = "error"
)

// OCRResult is the on-disk form of a RawExtraction, read back by the
// structuring command.
type OCRResult struct {
	Status   string   `json:"status"`
	Text     string   `json:"text"`
	FilePath string   `json:"file_path"`
	Sources  []string `json:"sources,omitempty"`
	Model    string   `json:"model,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// NewOCRResult converts an extraction outcome. filePath names the primary
// artifact.
func NewOCRResult(raw domain.RawExtraction, filePath string) OCRResult {
	res := OCRResult{
		Status:   OCRStatusSuccess,
		Text:     raw.Text,
		FilePath: filePath,
		Sources:  raw.Sources,
		Model:    raw.Model,
	}
	if !raw.Succeeded() {
		res.Status = OCRStatusError
		res.Error = raw.Error
	}
	return res
}

// ParseOCRResult decodes an OCR result document. A result whose status is
// error, or that carries no text, is rejected as invalid input.
func ParseOCRResult(data []byte) (*OCRResult, error) {
	var res OCRResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, eris.Wrapf(domain.ErrInvalidInput, "extraction: OCR result is not valid JSON: %v", err)
	}
	if res.Status == OCRStatusError {
		msg := res.Error
		if msg == "" {
			msg = "no error message"
		}
		return nil, eris.Wrapf(domain.ErrInvalidInput, "extraction: OCR failed for %s: %s", res.FilePath, msg)
	}
	if res.Text == "" {
		return nil, eris.Wrap(domain.ErrInvalidInput, "extraction: OCR result has no text")
	}
	return &res, nil
}
