package tts

import (
	"context"
	"math"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	mockSampleRate = 22050
	mockChannels   = 1
)

type mockSynth struct {
	mu sync.Mutex
}

// NewMockSynth returns a synthesizer that renders a deterministic tone whose
// duration scales with the text length. Used by tests and dry runs.
func NewMockSynth() Synthesizer {
	return &mockSynth{}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request, outPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fatalErr("mock", "cancelled: %v", err)
	}

	// Roughly 20ms of audio per character, clamped so empty or huge chunks
	// still produce something bounded.
	samples := len(req.Text) * mockSampleRate / 50
	if samples < mockSampleRate/10 {
		samples = mockSampleRate / 10
	}
	if samples > mockSampleRate*30 {
		samples = mockSampleRate * 30
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: mockChannels, SampleRate: mockSampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, samples),
	}
	freq := 220.0 + float64(req.Rate)
	for i := range buf.Data {
		buf.Data[i] = int(8000 * math.Sin(2*math.Pi*freq*float64(i)/mockSampleRate))
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fatalErr("mock", "create output: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, mockSampleRate, 16, mockChannels, 1)
	if err := enc.Write(buf); err != nil {
		return transientErr("mock", "write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		return transientErr("mock", "close wav encoder: %v", err)
	}
	return nil
}

func (m *mockSynth) Voices(context.Context) ([]Voice, error) {
	return []Voice{
		{ID: "mock-en", Name: "Mock English", Language: "en_US"},
		{ID: "mock-fr", Name: "Mock French", Language: "fr_FR"},
	}, nil
}
