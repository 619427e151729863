package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liuscraft/orion-therapy/internal/dialogue"
)

const DefaultPath = "config/therapybot.json"

type AppConfig struct {
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Dialogue DialogueConfig `json:"dialogue" yaml:"dialogue"`
	NLU      NLUConfig      `json:"nlu" yaml:"nlu"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Store    StoreConfig    `json:"store" yaml:"store"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type DialogueConfig struct {
	HighConfidenceThreshold   float64           `json:"high_confidence_threshold" yaml:"high_confidence_threshold"`
	MediumConfidenceThreshold float64           `json:"medium_confidence_threshold" yaml:"medium_confidence_threshold"`
	MinConfidenceThreshold    float64           `json:"min_confidence_threshold" yaml:"min_confidence_threshold"`
	TotalExercises            int               `json:"total_exercises" yaml:"total_exercises"`
	TotalCalibrationPhrases   int               `json:"total_calibration_phrases" yaml:"total_calibration_phrases"`
	IntentFriendlyNames       map[string]string `json:"intent_friendly_names" yaml:"intent_friendly_names"`
	Exercises                 []string          `json:"exercises" yaml:"exercises"`
	CalibrationPhrases        []string          `json:"calibration_phrases" yaml:"calibration_phrases"`
}

type NLUConfig struct {
	Backend string        `json:"backend" yaml:"backend"`
	Wit     WitConfig     `json:"wit" yaml:"wit"`
	LLM     LLMConfig     `json:"llm" yaml:"llm"`
	Keyword KeywordConfig `json:"keyword" yaml:"keyword"`
}

type WitConfig struct {
	Token      string   `json:"token" yaml:"token"`
	Endpoint   string   `json:"endpoint" yaml:"endpoint"`
	APIVersion string   `json:"api_version" yaml:"api_version"`
	Timeout    Duration `json:"timeout" yaml:"timeout"`
}

type LLMConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
}

type KeywordConfig struct {
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

type ServerConfig struct {
	Addr            string   `json:"addr" yaml:"addr"`
	ResetDelay      Duration `json:"reset_delay" yaml:"reset_delay"`
	NoSpeechTimeout Duration `json:"no_speech_timeout" yaml:"no_speech_timeout"`
}

type StoreConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// Duration accepts "5s" style strings in both JSON and YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func DefaultConfig() *AppConfig {
	defaults := dialogue.DefaultConfig()

	return &AppConfig{
		Logging: LoggingConfig{},
		Dialogue: DialogueConfig{
			HighConfidenceThreshold:   defaults.HighConfidenceThreshold,
			MediumConfidenceThreshold: defaults.MediumConfidenceThreshold,
			MinConfidenceThreshold:    defaults.MinConfidenceThreshold,
			TotalExercises:            defaults.TotalExercises,
			TotalCalibrationPhrases:   defaults.TotalCalibrationPhrases,
			IntentFriendlyNames:       defaults.IntentFriendlyNames,
		},
		NLU: NLUConfig{
			Backend: "keyword",
			Wit: WitConfig{
				Endpoint:   "https://api.wit.ai",
				APIVersion: "20240304",
				Timeout:    Duration(10 * time.Second),
			},
			LLM: LLMConfig{
				BaseURL: "https://open.bigmodel.cn/api/paas/v4",
				Model:   "glm-4-flash",
			},
			Keyword: KeywordConfig{
				Confidence: 0.9,
			},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ResetDelay:      Duration(5 * time.Second),
			NoSpeechTimeout: Duration(15 * time.Second),
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    "./data/therapybot.db",
		},
	}
}

func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}

	if backend := strings.TrimSpace(os.Getenv("THERAPY_NLU_BACKEND")); backend != "" {
		c.NLU.Backend = backend
	}
	if token := strings.TrimSpace(os.Getenv("WIT_AI_TOKEN")); token != "" {
		c.NLU.Wit.Token = token
	}
	if key := strings.TrimSpace(os.Getenv("LLM_API_KEY")); key != "" {
		c.NLU.LLM.APIKey = key
	}

	if addr := strings.TrimSpace(os.Getenv("THERAPY_ADDR")); addr != "" {
		c.Server.Addr = addr
	}
	if path := strings.TrimSpace(os.Getenv("THERAPY_DB_PATH")); path != "" {
		c.Store.Path = path
	}
}

func (c *AppConfig) Validate() error {
	if err := c.DialogueConfig().Validate(); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(c.NLU.Backend)) {
	case "wit", "llm", "keyword":
	default:
		return fmt.Errorf("invalid nlu backend: %s", c.NLU.Backend)
	}
	if c.NLU.Keyword.Confidence < 0 || c.NLU.Keyword.Confidence > 1 {
		return fmt.Errorf("nlu.keyword.confidence must be within [0,1], got %v", c.NLU.Keyword.Confidence)
	}
	if c.NLU.Wit.Timeout < 0 {
		return errors.New("nlu.wit.timeout must be non-negative")
	}

	if c.Server.ResetDelay < 0 {
		return errors.New("server.reset_delay must be non-negative")
	}
	if c.Server.NoSpeechTimeout < 0 {
		return errors.New("server.no_speech_timeout must be non-negative")
	}
	if c.Store.Enabled && strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path is required when the store is enabled")
	}

	return nil
}

// ValidateKeys checks credentials for the selected NLU backend only.
func (c *AppConfig) ValidateKeys() error {
	switch strings.ToLower(strings.TrimSpace(c.NLU.Backend)) {
	case "wit":
		if strings.TrimSpace(c.NLU.Wit.Token) == "" {
			return errors.New("wit token is required")
		}
	case "llm":
		if strings.TrimSpace(c.NLU.LLM.APIKey) == "" {
			return errors.New("llm api_key is required")
		}
	}
	return nil
}

// DialogueConfig converts the loaded settings into a dialogue.Config. Built-in
// exercise and calibration texts fill in only for lists left empty whose count
// still matches the built-in list.
func (c *AppConfig) DialogueConfig() dialogue.Config {
	cfg := dialogue.Config{
		HighConfidenceThreshold:   c.Dialogue.HighConfidenceThreshold,
		MediumConfidenceThreshold: c.Dialogue.MediumConfidenceThreshold,
		MinConfidenceThreshold:    c.Dialogue.MinConfidenceThreshold,
		TotalExercises:            c.Dialogue.TotalExercises,
		TotalCalibrationPhrases:   c.Dialogue.TotalCalibrationPhrases,
		IntentFriendlyNames:       c.Dialogue.IntentFriendlyNames,
		Exercises:                 c.Dialogue.Exercises,
		CalibrationPhrases:        c.Dialogue.CalibrationPhrases,
	}

	defaults := dialogue.DefaultConfig()
	if len(cfg.Exercises) == 0 && cfg.TotalExercises == len(defaults.Exercises) {
		cfg.Exercises = defaults.Exercises
	}
	if len(cfg.CalibrationPhrases) == 0 && cfg.TotalCalibrationPhrases == len(defaults.CalibrationPhrases) {
		cfg.CalibrationPhrases = defaults.CalibrationPhrases
	}
	return cfg
}
