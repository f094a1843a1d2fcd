package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/kpkanth7/pdfbook/internal/config"
)

func TestErrorClassification(t *testing.T) {
	te := transientErr("mock", "boom")
	fe := fatalErr("mock", "gone")

	if !IsTransient(te) || IsFatal(te) {
		t.Fatal("transient error misclassified")
	}
	if !IsFatal(fe) || IsTransient(fe) {
		t.Fatal("fatal error misclassified")
	}
	// Unclassified errors are treated as fatal.
	if !IsFatal(errors.New("unknown")) {
		t.Fatal("unclassified error should count as fatal")
	}

	var se *SynthError
	if !errors.As(te, &se) || se.Engine != "mock" {
		t.Fatalf("expected SynthError with engine, got %v", te)
	}
}

func TestNewSelectsEngine(t *testing.T) {
	if _, err := New(config.TTSConfig{Mode: "mock"}); err != nil {
		t.Fatalf("mock engine: %v", err)
	}
	if _, err := New(config.TTSConfig{Mode: "exec", Command: "piper --output"}); err != nil {
		t.Fatalf("exec engine: %v", err)
	}
	if _, err := New(config.TTSConfig{Mode: "polly"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestExecSynthRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecSynth(""); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestMockSynthWritesValidWav(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "chunk.wav")

	synth := NewMockSynth()
	err := synth.Synthesize(context.Background(), Request{Text: "Hello there.", Rate: 170}, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("artifact is not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if len(buf.Data) == 0 {
		t.Fatal("artifact carries no samples")
	}
	if buf.Format.SampleRate != mockSampleRate {
		t.Fatalf("unexpected sample rate %d", buf.Format.SampleRate)
	}
}

func TestMockSynthCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMockSynth().Synthesize(ctx, Request{Text: "x"}, filepath.Join(t.TempDir(), "x.wav"))
	if err == nil || !IsFatal(err) {
		t.Fatalf("expected fatal error on cancelled context, got %v", err)
	}
}

func TestParseSayVoices(t *testing.T) {
	out := "Alex                en_US    # Most people recognize me by my voice.\n" +
		"Amelie              fr_CA    # Bonjour!\n" +
		"\n"
	voices := parseSayVoices(out)
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0].Name != "Alex" || voices[0].Language != "en_US" {
		t.Fatalf("unexpected first voice: %+v", voices[0])
	}
	if voices[1].Name != "Amelie" || voices[1].Language != "fr_CA" {
		t.Fatalf("unexpected second voice: %+v", voices[1])
	}
}

func TestParseEspeakVoices(t *testing.T) {
	out := "Pty Language Age/Gender VoiceName          File          Other Languages\n" +
		" 5  en-gb          M  english             en\n" +
		" 5  fr-fr          M  french              fr\n"
	voices := parseEspeakVoices(out)
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0].Name != "english" || voices[0].Language != "en-gb" {
		t.Fatalf("unexpected first voice: %+v", voices[0])
	}
}
