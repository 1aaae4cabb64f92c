// Package transcribe converts bounded-duration audio clips into text via an
// external speech-to-text provider.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrConversionFailed indicates the external media conversion tool failed
// or timed out.
var ErrConversionFailed = errors.New("media conversion failed")

// ErrTranscriptionFailed indicates the speech-to-text provider failed.
var ErrTranscriptionFailed = errors.New("transcription failed")

// Converter converts a media file into a format accepted by the
// transcription provider. The single-capability interface keeps the
// external tool behind a fake-able seam.
type Converter interface {
	// Convert returns the path of the converted artifact.
	Convert(ctx context.Context, path string) (string, error)
}

// Transcriber produces text from an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Adapter composes format conversion and transcription. Temporary media
// artifacts, including the input file, are removed on every exit path.
type Adapter struct {
	converter   Converter
	transcriber Transcriber
}

// NewAdapter creates a transcription adapter.
func NewAdapter(converter Converter, transcriber Transcriber) *Adapter {
	return &Adapter{converter: converter, transcriber: transcriber}
}

// Transcribe converts the clip at path and returns its transcript. The
// input file and any converted artifact are deleted before returning,
// whether or not transcription succeeded.
func (a *Adapter) Transcribe(ctx context.Context, path string) (string, error) {
	defer func() { _ = os.Remove(path) }()

	converted, err := a.converter.Convert(ctx, path)
	if converted != "" && converted != path {
		defer func() { _ = os.Remove(converted) }()
	}
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", path, err)
	}

	text, err := a.transcriber.Transcribe(ctx, converted)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", converted, err)
	}
	return text, nil
}
