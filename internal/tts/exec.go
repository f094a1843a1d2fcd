package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execSynth struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Rate  int    `json:"rate"`
}

type execResponse struct {
	WAVBase64 string `json:"wav_base64"`
}

type execVoicesResponse struct {
	Voices []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Language string `json:"language"`
	} `json:"voices"`
}

// NewExecSynth wraps a user-supplied command as a synthesizer. The command
// reads a JSON request on stdin and replies with {"wav_base64": ...} on
// stdout; invoked with a single "voices" argument it lists installed voices.
func NewExecSynth(command string) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fatalErr("exec", "parse tts command: %v", err)
	}
	if len(args) == 0 {
		return nil, fatalErr("exec", "tts command empty")
	}
	return &execSynth{cmd: args}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req Request, outPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := exec.LookPath(e.cmd[0]); err != nil {
		return fatalErr("exec", "tts command not found: %v", err)
	}

	payload, err := json.Marshal(execRequest{Text: req.Text, Voice: req.Voice, Rate: req.Rate})
	if err != nil {
		return fatalErr("exec", "marshal request: %v", err)
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fatalErr("exec", "cancelled: %v", ctx.Err())
		}
		return transientErr("exec", "tts command failed: %v: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return transientErr("exec", "decode tts response: %v", err)
	}
	wavBytes, err := base64.StdEncoding.DecodeString(resp.WAVBase64)
	if err != nil {
		return transientErr("exec", "decode wav payload: %v", err)
	}
	if len(wavBytes) == 0 {
		return transientErr("exec", "tts command produced empty audio")
	}
	if err := os.WriteFile(outPath, wavBytes, 0o644); err != nil {
		return fatalErr("exec", "write artifact: %v", err)
	}
	return nil
}

func (e *execSynth) Voices(ctx context.Context) ([]Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args := append(append([]string{}, e.cmd[1:]...), "voices")
	cmd := exec.CommandContext(ctx, e.cmd[0], args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fatalErr("exec", "list voices: %v", err)
	}
	var resp execVoicesResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fatalErr("exec", "decode voices response: %v", err)
	}
	voices := make([]Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, Voice{ID: v.ID, Name: v.Name, Language: v.Language})
	}
	return voices, nil
}
