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
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// ElementConfig is the element's configuration surface. Speaker, language
// and voice_reference are optional; whether they are required depends on
// the loaded model and is only checked once the backend loads.
type ElementConfig struct {
	Model           string `yaml:"model"`
	Speaker         string `yaml:"speaker"`
	Language        string `yaml:"language"`
	VoiceReference  string `yaml:"voice_reference"`
	UseAcceleration bool   `yaml:"use_acceleration"`
}

type BackendConfig struct {
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
	// MockRate and the mock flags shape the mock backend, mainly for
	// development and integration testing without a real model.
	MockRate         int  `yaml:"mock_rate"`
	MockMultiLingual bool `yaml:"mock_multi_lingual"`
	MockMultiSpeaker bool `yaml:"mock_multi_speaker"`
}

type SynthLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	MaxRows int    `yaml:"max_rows"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Element     ElementConfig   `yaml:"element"`
	Backend     BackendConfig   `yaml:"backend"`
	SynthLog    SynthLogConfig  `yaml:"synth_log"`
}

func Default() Config {
	return Config{
		ServiceName: "coquittsd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Element: ElementConfig{
			Model: "tts_models/tr/common-voice/glow-tts",
		},
		Backend: BackendConfig{
			Mode:     "mock",
			MockRate: 22050,
		},
		SynthLog: SynthLogConfig{
			Enabled: true,
			Path:    "./data/synth-log.db",
			MaxRows: 10000,
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
	overrideString(&cfg.ServiceName, "COQUITTS_SERVICE_NAME")
	overrideString(&cfg.Environment, "COQUITTS_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "COQUITTS_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "COQUITTS_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "COQUITTS_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "COQUITTS_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "COQUITTS_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "COQUITTS_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "COQUITTS_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "COQUITTS_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "COQUITTS_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "COQUITTS_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "COQUITTS_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "COQUITTS_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "COQUITTS_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "COQUITTS_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Element.Model, "COQUITTS_ELEMENT_MODEL")
	overrideString(&cfg.Element.Speaker, "COQUITTS_ELEMENT_SPEAKER")
	overrideString(&cfg.Element.Language, "COQUITTS_ELEMENT_LANGUAGE")
	overrideString(&cfg.Element.VoiceReference, "COQUITTS_ELEMENT_VOICE_REFERENCE")
	overrideBool(&cfg.Element.UseAcceleration, "COQUITTS_ELEMENT_USE_ACCELERATION")
	overrideString(&cfg.Backend.Mode, "COQUITTS_BACKEND_MODE")
	overrideString(&cfg.Backend.Command, "COQUITTS_BACKEND_COMMAND")
	overrideInt(&cfg.Backend.MockRate, "COQUITTS_BACKEND_MOCK_RATE")
	overrideBool(&cfg.Backend.MockMultiLingual, "COQUITTS_BACKEND_MOCK_MULTI_LINGUAL")
	overrideBool(&cfg.Backend.MockMultiSpeaker, "COQUITTS_BACKEND_MOCK_MULTI_SPEAKER")
	overrideBool(&cfg.SynthLog.Enabled, "COQUITTS_SYNTH_LOG_ENABLED")
	overrideString(&cfg.SynthLog.Path, "COQUITTS_SYNTH_LOG_PATH")
	overrideInt(&cfg.SynthLog.MaxRows, "COQUITTS_SYNTH_LOG_MAX_ROWS")
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
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
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
	if cfg.Element.Model == "" {
		return errors.New("element.model must not be empty")
	}
	switch cfg.Backend.Mode {
	case "mock":
		if cfg.Backend.MockRate <= 0 {
			return errors.New("backend.mock_rate must be positive")
		}
	case "exec":
		if cfg.Backend.Command == "" {
			return errors.New("backend.command must be set when mode=exec")
		}
	default:
		return errors.New("backend.mode must be one of mock|exec")
	}
	if cfg.SynthLog.Enabled {
		if cfg.SynthLog.Path == "" {
			return errors.New("synth_log.path must not be empty when enabled")
		}
		if cfg.SynthLog.MaxRows < 0 {
			return errors.New("synth_log.max_rows must be >= 0")
		}
	}
	return nil
}
