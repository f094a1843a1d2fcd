package tts

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

type systemSynth struct {
	binary string
	mu     sync.Mutex
}

// NewSystemSynth finds a platform speech engine on PATH: macOS `say`, or
// espeak-ng / espeak elsewhere. Engine absence is fatal up front rather than
// per chunk.
func NewSystemSynth() (Synthesizer, error) {
	for _, candidate := range []string{"say", "espeak-ng", "espeak"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return &systemSynth{binary: path}, nil
		}
	}
	return nil, fatalErr("system", "no system speech engine found (looked for say, espeak-ng, espeak)")
}

func (s *systemSynth) Synthesize(ctx context.Context, req Request, outPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var args []string
	if s.isSay() {
		// `say` writes WAV when asked for an LEI16 data format.
		args = []string{"-o", outPath, "--data-format=LEI16@22050", "-r", strconv.Itoa(req.Rate)}
		if req.Voice != "" {
			args = append(args, "-v", req.Voice)
		}
		args = append(args, req.Text)
	} else {
		args = []string{"-w", outPath, "-s", strconv.Itoa(req.Rate)}
		if req.Voice != "" {
			args = append(args, "-v", req.Voice)
		}
		args = append(args, req.Text)
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fatalErr("system", "cancelled: %v", ctx.Err())
		}
		return transientErr("system", "%s failed: %v: %s", s.binary, err, string(output))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return transientErr("system", "stat artifact: %v", err)
	}
	if info.Size() == 0 {
		return transientErr("system", "%s produced an empty file", s.binary)
	}
	return nil
}

func (s *systemSynth) Voices(ctx context.Context) ([]Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var args []string
	if s.isSay() {
		args = []string{"-v", "?"}
	} else {
		args = []string{"--voices"}
	}
	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fatalErr("system", "list voices: %v", err)
	}
	if s.isSay() {
		return parseSayVoices(stdout.String()), nil
	}
	return parseEspeakVoices(stdout.String()), nil
}

func (s *systemSynth) isSay() bool {
	return strings.HasSuffix(s.binary, "/say") || s.binary == "say"
}

// parseSayVoices reads `say -v ?` output, one voice per line:
//
//	Alex                en_US    # Most people recognize me by my voice.
func parseSayVoices(out string) []Voice {
	var voices []Voice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, " \r")
		if line == "" {
			continue
		}
		comment := strings.Index(line, "#")
		head := line
		if comment >= 0 {
			head = strings.TrimSpace(line[:comment])
		}
		fields := strings.Fields(head)
		if len(fields) < 2 {
			continue
		}
		lang := fields[len(fields)-1]
		name := strings.Join(fields[:len(fields)-1], " ")
		voices = append(voices, Voice{ID: name, Name: name, Language: lang})
	}
	return voices
}

// parseEspeakVoices reads `espeak --voices` output, skipping the header:
//
//	Pty Language Age/Gender VoiceName          File          Other Languages
//	 5  en-gb          M  english             en
func parseEspeakVoices(out string) []Voice {
	var voices []Voice
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{ID: fields[3], Name: fields[3], Language: fields[1]})
	}
	return voices
}
