package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
	StoreDir       string   `yaml:"store_dir"` // JetStream storage for the embedded server
}

// ModelConfig selects the acoustic model variant and its weight source.
type ModelConfig struct {
	Family        string  `yaml:"family"` // jasper or quartznet
	Blocks        int     `yaml:"blocks"`
	Repeat        int     `yaml:"repeat"`
	Classes       int     `yaml:"classes"`
	NormEps       float64 `yaml:"norm_eps"`
	Separable     bool    `yaml:"separable"`
	DenseResidual bool    `yaml:"dense_residual"`
	ParamsDir     string  `yaml:"params_dir"`
}

// FrontendConfig parameterizes the mel-spectrogram front end.
type FrontendConfig struct {
	SampleRate int     `yaml:"sample_rate"`
	WindowSec  float64 `yaml:"window_sec"`
	HopSec     float64 `yaml:"hop_sec"`
	NFFT       int     `yaml:"n_fft"`
	NumMels    int     `yaml:"n_mels"`
	Preemph    float64 `yaml:"preemphasis"`
	Dither     float64 `yaml:"dither"`
}

type STTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Mode            string `yaml:"mode"` // local, exec, mock
	Command         string `yaml:"command"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	FrameDurationMS int    `yaml:"frame_duration_ms"`
	PartialEveryMS  int    `yaml:"partial_every_ms"`
	PublishInterim  bool   `yaml:"publish_interim"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Model       ModelConfig      `yaml:"model"`
	Frontend    FrontendConfig   `yaml:"frontend"`
	STT         STTConfig        `yaml:"stt"`
	EventStore  EventStoreConfig `yaml:"event_store"`
}

func Default() Config {
	return Config{
		RuntimeName: "quartz-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
			StoreDir:       "./data/nats",
		},
		Model: ModelConfig{
			Family:    "quartznet",
			Blocks:    5,
			Repeat:    5,
			Classes:   29,
			NormEps:   1e-3,
			Separable: true,
		},
		Frontend: FrontendConfig{
			SampleRate: 16000,
			WindowSec:  0.02,
			HopSec:     0.01,
			NFFT:       512,
			NumMels:    64,
			Preemph:    0.97,
			Dither:     0,
		},
		STT: STTConfig{
			Enabled:         true,
			Mode:            "local",
			SampleRate:      16000,
			Channels:        1,
			FrameDurationMS: 20,
			PartialEveryMS:  800,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/quartz-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
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
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "QUARTZ_RUNTIME_NAME")
	overrideString(&cfg.Environment, "QUARTZ_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "QUARTZ_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "QUARTZ_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "QUARTZ_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "QUARTZ_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "QUARTZ_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "QUARTZ_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "QUARTZ_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "QUARTZ_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "QUARTZ_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "QUARTZ_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "QUARTZ_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "QUARTZ_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "QUARTZ_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "QUARTZ_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Bus.StoreDir, "QUARTZ_BUS_STORE_DIR")
	overrideString(&cfg.Model.Family, "QUARTZ_MODEL_FAMILY")
	overrideInt(&cfg.Model.Blocks, "QUARTZ_MODEL_BLOCKS")
	overrideInt(&cfg.Model.Repeat, "QUARTZ_MODEL_REPEAT")
	overrideInt(&cfg.Model.Classes, "QUARTZ_MODEL_CLASSES")
	overrideBool(&cfg.Model.Separable, "QUARTZ_MODEL_SEPARABLE")
	overrideBool(&cfg.Model.DenseResidual, "QUARTZ_MODEL_DENSE_RESIDUAL")
	overrideString(&cfg.Model.ParamsDir, "QUARTZ_MODEL_PARAMS_DIR")
	overrideInt(&cfg.Frontend.SampleRate, "QUARTZ_FRONTEND_SAMPLE_RATE")
	overrideInt(&cfg.Frontend.NFFT, "QUARTZ_FRONTEND_N_FFT")
	overrideInt(&cfg.Frontend.NumMels, "QUARTZ_FRONTEND_N_MELS")
	overrideFloat(&cfg.Frontend.Dither, "QUARTZ_FRONTEND_DITHER")
	overrideBool(&cfg.STT.Enabled, "QUARTZ_STT_ENABLED")
	overrideString(&cfg.STT.Mode, "QUARTZ_STT_MODE")
	overrideString(&cfg.STT.Command, "QUARTZ_STT_COMMAND")
	overrideInt(&cfg.STT.SampleRate, "QUARTZ_STT_SAMPLE_RATE")
	overrideInt(&cfg.STT.Channels, "QUARTZ_STT_CHANNELS")
	overrideInt(&cfg.STT.FrameDurationMS, "QUARTZ_STT_FRAME_DURATION_MS")
	overrideInt(&cfg.STT.PartialEveryMS, "QUARTZ_STT_PARTIAL_EVERY_MS")
	overrideBool(&cfg.STT.PublishInterim, "QUARTZ_STT_PUBLISH_INTERIM")
	overrideString(&cfg.EventStore.Path, "QUARTZ_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "QUARTZ_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "QUARTZ_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "QUARTZ_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "QUARTZ_EVENT_STORE_VACUUM_ON_START")
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

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.Model.Family {
	case "jasper", "quartznet":
	default:
		return errors.New("model.family must be one of jasper|quartznet")
	}
	if cfg.Model.Blocks < 5 || cfg.Model.Blocks%5 != 0 {
		return errors.New("model.blocks must be a positive multiple of 5")
	}
	if cfg.Model.Repeat < 1 {
		return errors.New("model.repeat must be >= 1")
	}
	if cfg.Model.Classes < 2 {
		return errors.New("model.classes must be >= 2")
	}
	if cfg.Frontend.SampleRate <= 0 {
		return errors.New("frontend.sample_rate must be positive")
	}
	if cfg.Frontend.NFFT <= 0 {
		return errors.New("frontend.n_fft must be positive")
	}
	if cfg.Frontend.NumMels <= 0 {
		return errors.New("frontend.n_mels must be positive")
	}
	if cfg.Frontend.WindowSec <= 0 || cfg.Frontend.HopSec <= 0 {
		return errors.New("frontend.window_sec and frontend.hop_sec must be positive")
	}
	if cfg.STT.Enabled {
		switch cfg.STT.Mode {
		case "local", "exec", "mock":
		default:
			return errors.New("stt.mode must be one of local|exec|mock")
		}
		if cfg.STT.SampleRate <= 0 {
			return errors.New("stt.sample_rate must be positive")
		}
		if cfg.STT.Channels <= 0 {
			return errors.New("stt.channels must be positive")
		}
		if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	return nil
}
