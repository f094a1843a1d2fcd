package tts

import (
	"context"
	"fmt"

	"github.com/kpkanth7/pdfbook/internal/config"
)

// Request contains parameters for one synthesis call.
type Request struct {
	Text  string
	Voice string
	Rate  int // words per minute
}

// Voice describes one installed voice.
type Voice struct {
	ID       string
	Name     string
	Language string
}

// Synthesizer is the contract for producing audio. Synthesize renders the
// request as a WAV file at outPath; the engine is an exclusive resource, so
// implementations serialize concurrent calls.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request, outPath string) error
	Voices(ctx context.Context) ([]Voice, error)
}

// New returns the Synthesizer selected by cfg.Mode.
func New(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSynth(), nil
	case "exec":
		return NewExecSynth(cfg.Command)
	case "system":
		return NewSystemSynth()
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}
