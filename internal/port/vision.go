package port

import "context"

// ImageInput is one image handed to the vision collaborator.
type ImageInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// VisionInput carries the images of one claim, in reading order, plus the
// transcription instruction.
type VisionInput struct {
	Images      []ImageInput
	Instruction string
}

// VisionOutput is the transcribed text.
type VisionOutput struct {
	Text      string
	ModelUsed string
}

// VisionExtractor abstracts the external OCR/vision service.
type VisionExtractor interface {
	ExtractText(ctx context.Context, input VisionInput) (*VisionOutput, error)
}
