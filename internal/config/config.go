package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML scalars in
// time.ParseDuration form ("2s", "500ms", "1m30s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Settings holds application configuration loaded from YAML.
type Settings struct {
	DataDir string `yaml:"data_dir"`

	Influencers struct {
		Source string `yaml:"source"`
	} `yaml:"influencers"`

	Scoring struct {
		LikeWeight   float64 `yaml:"like_weight"`
		RepostWeight float64 `yaml:"repost_weight"`
		ReplyWeight  float64 `yaml:"reply_weight"`
		MinScore     float64 `yaml:"min_score"`
		ProtectCount int     `yaml:"protect_count"`
	} `yaml:"scoring"`

	Scan struct {
		MaxAgeMinutes int  `yaml:"max_age_minutes"`
		MaxPerCycle   int  `yaml:"max_per_cycle"`
		DedupWindow   int  `yaml:"dedup_window_hours"`
		MaxAttempts   int  `yaml:"max_generation_attempts"`
		MinTextWords  int  `yaml:"min_text_words"`
		RuleFilter    bool `yaml:"rule_filter"`
	} `yaml:"scan"`

	Generation struct {
		APIKey        string   `yaml:"api_key"`
		ModelName     string   `yaml:"model_name"`
		MaxRetries    int      `yaml:"max_retries"`
		RetryDelay    Duration `yaml:"retry_delay"`
		MaxConcurrent int      `yaml:"max_concurrent"`
		SlotDelay     Duration `yaml:"slot_delay"`
		Timeout       Duration `yaml:"timeout"`
		StyleProfile  string   `yaml:"style_profile"`
	} `yaml:"generation"`

	Report struct {
		RecentWindowHours int `yaml:"recent_window_hours"`
	} `yaml:"report"`

	Bird struct {
		Binary string `yaml:"binary"`
	} `yaml:"bird"`

	Notify struct {
		TelegramBotToken string `yaml:"telegram_bot_token"`
		TelegramChatID   int64  `yaml:"telegram_chat_id"`
	} `yaml:"notify"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadSettings loads configuration from a YAML file and applies defaults.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(s); err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}

	s.applyDefaults()

	// Allow secrets to come from the environment.
	s.Generation.APIKey = os.ExpandEnv(s.Generation.APIKey)
	s.Notify.TelegramBotToken = os.ExpandEnv(s.Notify.TelegramBotToken)

	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.DataDir == "" {
		s.DataDir = "./data"
	}
	if s.Influencers.Source == "" {
		s.Influencers.Source = "./configs/influencers.yml"
	}

	if s.Scoring.LikeWeight == 0 {
		s.Scoring.LikeWeight = 1.0
	}
	if s.Scoring.RepostWeight == 0 {
		s.Scoring.RepostWeight = 2.0
	}
	if s.Scoring.ReplyWeight == 0 {
		s.Scoring.ReplyWeight = 1.5
	}
	if s.Scoring.MinScore == 0 {
		s.Scoring.MinScore = 60.0
	}
	if s.Scoring.ProtectCount == 0 {
		s.Scoring.ProtectCount = 3
	}

	if s.Scan.MaxAgeMinutes == 0 {
		s.Scan.MaxAgeMinutes = 30
	}
	if s.Scan.MaxPerCycle == 0 {
		s.Scan.MaxPerCycle = 10
	}
	if s.Scan.DedupWindow == 0 {
		s.Scan.DedupWindow = 24
	}
	if s.Scan.MaxAttempts == 0 {
		s.Scan.MaxAttempts = 3
	}
	if s.Scan.MinTextWords == 0 {
		s.Scan.MinTextWords = 5
	}

	if s.Generation.ModelName == "" {
		s.Generation.ModelName = "gemini-2.0-flash-exp"
	}
	if s.Generation.MaxRetries == 0 {
		s.Generation.MaxRetries = 3
	}
	if s.Generation.RetryDelay == 0 {
		s.Generation.RetryDelay = Duration(2 * time.Second)
	}
	if s.Generation.MaxConcurrent == 0 {
		s.Generation.MaxConcurrent = 3
	}
	if s.Generation.SlotDelay == 0 {
		s.Generation.SlotDelay = Duration(2 * time.Second)
	}
	if s.Generation.Timeout == 0 {
		s.Generation.Timeout = Duration(30 * time.Second)
	}

	if s.Report.RecentWindowHours == 0 {
		s.Report.RecentWindowHours = 24
	}

	if s.Bird.Binary == "" {
		s.Bird.Binary = "bird"
	}

	if s.Server.Port == "" {
		s.Server.Port = "8002"
	}
}

// DerivedInfluencersPath is where the mutable influencer cache lives.
func (s *Settings) DerivedInfluencersPath() string {
	return filepath.Join(s.DataDir, "influencers.json")
}

// LedgerPath is where the deduplication ledger database lives.
func (s *Settings) LedgerPath() string {
	return filepath.Join(s.DataDir, "ledger.db")
}

// CommentsDir is the root of the comment status partitions.
func (s *Settings) CommentsDir() string {
	return filepath.Join(s.DataDir, "comments")
}

// DedupWindow returns the author recency window as a duration.
func (s *Settings) DedupWindowDuration() time.Duration {
	return time.Duration(s.Scan.DedupWindow) * time.Hour
}

// RecentWindow returns the reporting trailing window as a duration.
func (s *Settings) RecentWindow() time.Duration {
	return time.Duration(s.Report.RecentWindowHours) * time.Hour
}

// ParseError signals malformed configuration. It aborts startup.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config parse error in %s: %s", e.Path, e.Reason)
}
