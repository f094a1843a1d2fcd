package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Job modes, mirrored by the -mode CLI flag.
const (
	ModeSpeak = "speak"
	ModeSave  = "save"
	ModeBoth  = "both"
)

// Output formats for assembled audio.
const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
)

// Speaking rate bounds in words per minute.
const (
	MinRate     = 80
	MaxRate     = 350
	DefaultRate = 170
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	BaseName string `yaml:"base_name"`
	Format   string `yaml:"format"`
}

type ChunkerConfig struct {
	MaxChars int `yaml:"max_chars"`
}

type TTSConfig struct {
	Mode      string `yaml:"mode"` // mock, exec, system
	Command   string `yaml:"command"`
	Voice     string `yaml:"voice"`
	Rate      int    `yaml:"rate"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type JobStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
}

type PlayerConfig struct {
	Command string `yaml:"command"`
}

type Config struct {
	AppName   string          `yaml:"app_name"`
	Mode      string          `yaml:"mode"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Output    OutputConfig    `yaml:"output"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	TTS       TTSConfig       `yaml:"tts"`
	JobStore  JobStoreConfig  `yaml:"job_store"`
	Player    PlayerConfig    `yaml:"player"`
}

func Default() Config {
	return Config{
		AppName: "pdfbook",
		Mode:    ModeSpeak,
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			PrometheusBind: "",
		},
		Output: OutputConfig{
			Dir:    "output_audio",
			Format: FormatWAV,
		},
		Chunker: ChunkerConfig{
			MaxChars: 1200,
		},
		TTS: TTSConfig{
			Mode:      "system",
			Rate:      DefaultRate,
			TimeoutMS: 60000,
		},
		JobStore: JobStoreConfig{
			Path:          "./data/pdfbook-jobs.db",
			RetentionMode: "persistent",
		},
		Player: PlayerConfig{},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.AppName, "PDFBOOK_APP_NAME")
	overrideString(&cfg.Mode, "PDFBOOK_MODE")
	overrideString(&cfg.Telemetry.LogLevel, "PDFBOOK_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.PrometheusBind, "PDFBOOK_TELEMETRY_PROMETHEUS_BIND")
	overrideString(&cfg.Output.Dir, "PDFBOOK_OUTPUT_DIR")
	overrideString(&cfg.Output.BaseName, "PDFBOOK_OUTPUT_BASE_NAME")
	overrideString(&cfg.Output.Format, "PDFBOOK_OUTPUT_FORMAT")
	overrideInt(&cfg.Chunker.MaxChars, "PDFBOOK_CHUNKER_MAX_CHARS")
	overrideString(&cfg.TTS.Mode, "PDFBOOK_TTS_MODE")
	overrideString(&cfg.TTS.Command, "PDFBOOK_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "PDFBOOK_TTS_VOICE")
	overrideInt(&cfg.TTS.Rate, "PDFBOOK_TTS_RATE")
	overrideInt(&cfg.TTS.TimeoutMS, "PDFBOOK_TTS_TIMEOUT_MS")
	overrideString(&cfg.JobStore.Path, "PDFBOOK_JOB_STORE_PATH")
	overrideString(&cfg.JobStore.RetentionMode, "PDFBOOK_JOB_STORE_RETENTION_MODE")
	overrideString(&cfg.Player.Command, "PDFBOOK_PLAYER_COMMAND")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

// ErrInvalidConfiguration wraps every validation failure so callers can
// distinguish configuration problems from runtime ones.
var ErrInvalidConfiguration = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

func Validate(cfg Config) error {
	if cfg.AppName == "" {
		return invalidf("app_name must not be empty")
	}
	switch cfg.Mode {
	case ModeSpeak, ModeSave, ModeBoth:
	default:
		return invalidf("mode must be one of speak|save|both, got %q", cfg.Mode)
	}
	if cfg.Chunker.MaxChars <= 0 {
		return invalidf("chunker.max_chars must be positive, got %d", cfg.Chunker.MaxChars)
	}
	switch cfg.TTS.Mode {
	case "mock", "exec", "system":
	default:
		return invalidf("tts.mode must be one of mock|exec|system, got %q", cfg.TTS.Mode)
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return invalidf("tts.command must be set when mode=exec")
	}
	if cfg.TTS.Rate < MinRate || cfg.TTS.Rate > MaxRate {
		return invalidf("tts.rate must be between %d and %d, got %d", MinRate, MaxRate, cfg.TTS.Rate)
	}
	if cfg.TTS.TimeoutMS <= 0 {
		return invalidf("tts.timeout_ms must be positive")
	}
	switch cfg.Output.Format {
	case FormatWAV, FormatMP3:
	default:
		return invalidf("output.format must be one of wav|mp3, got %q", cfg.Output.Format)
	}
	if cfg.Output.Dir == "" {
		return invalidf("output.dir must not be empty")
	}
	switch cfg.JobStore.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return invalidf("job_store.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.JobStore.RetentionMode == "persistent" && cfg.JobStore.Path == "" {
		return invalidf("job_store.path must not be empty when retention_mode=persistent")
	}
	return nil
}
