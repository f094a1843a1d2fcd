package player

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/mattn/go-shellwords"

	"github.com/kpkanth7/pdfbook/internal/config"
)

// candidates are tried in order when no player command is configured. Each
// entry plays a single WAV path appended as the last argument and exits when
// playback ends.
var candidates = [][]string{
	{"afplay"},
	{"paplay"},
	{"aplay", "-q"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
}

// Player shells out to a system audio player, one file at a time.
type Player struct {
	cmd    []string
	logger *slog.Logger
}

// New resolves the playback command: an explicit config command wins,
// otherwise the first candidate found on PATH.
func New(cfg config.PlayerConfig, log *slog.Logger) (*Player, error) {
	return newWithLookPath(cfg, log, exec.LookPath)
}

func newWithLookPath(cfg config.PlayerConfig, log *slog.Logger, lookPath func(string) (string, error)) (*Player, error) {
	logger := log.With(slog.String("component", "player"))

	if cfg.Command != "" {
		args, err := shellwords.NewParser().Parse(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("parse player command: %w", err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("player command empty")
		}
		if _, err := lookPath(args[0]); err != nil {
			return nil, fmt.Errorf("player %s not found: %w", args[0], err)
		}
		return &Player{cmd: args, logger: logger}, nil
	}

	for _, c := range candidates {
		if path, err := lookPath(c[0]); err == nil {
			cmd := append([]string{path}, c[1:]...)
			logger.Debug("audio player resolved", slog.String("binary", path))
			return &Player{cmd: cmd, logger: logger}, nil
		}
	}
	return nil, fmt.Errorf("no audio player found (looked for afplay, paplay, aplay, ffplay)")
}

// Play blocks until the file has been played or ctx is cancelled.
func (p *Player) Play(ctx context.Context, path string) error {
	args := append(append([]string{}, p.cmd[1:]...), path)
	cmd := exec.CommandContext(ctx, p.cmd[0], args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("playback of %s failed: %w: %s", path, err, string(output))
	}
	return nil
}
