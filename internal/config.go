package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	Librarian LibrarianConfig   `yaml:"librarian"`
	LLM       LLMConfig         `yaml:"llm"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Git       GitConfig         `yaml:"git"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Librarian.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LibrarianConfig holds the vault layout and pipeline tuning knobs. All
// paths are relative to the vault root.
type LibrarianConfig struct {
	CaptureDir             string        `yaml:"capture_dir"`
	ReviewDir              string        `yaml:"review_dir"`
	SystemInstructionsPath string        `yaml:"system_instructions_path"`
	TagGlossaryPath        string        `yaml:"tag_glossary_path"`
	RegistryOutputPath     string        `yaml:"registry_output_path"`
	HistoryPath            string        `yaml:"history_path"`
	ScanRoots              []string      `yaml:"scan_roots"`
	CooldownDays           int           `yaml:"cooldown_days"`
	FreshnessWindow        time.Duration `yaml:"freshness_window"`
	TopN                   int           `yaml:"top_n"`
}

// Validate validates the librarian configuration.
func (c *LibrarianConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CaptureDir, validation.Required),
		validation.Field(&c.ReviewDir, validation.Required),
		validation.Field(&c.HistoryPath, validation.Required),
		validation.Field(&c.CooldownDays, validation.Min(0)),
		validation.Field(&c.TopN, validation.Min(1)),
	)
}

// LLMConfig holds the language-model backend configuration. APIKey
// supports ${VAR} expansion when loaded from YAML.
type LLMConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// GitConfig controls the optional commit-and-push step after pipeline
// runs. When Enabled is false the vault is never touched by git.
type GitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Librarian: LibrarianConfig{
			CaptureDir:             "00. Inbox/0. Capture",
			ReviewDir:              "00. Inbox/1. Review Queue",
			SystemInstructionsPath: "30. Areas/4. Personal Management/Obsidian/Obsidian System Instructions.md",
			TagGlossaryPath:        "00. Inbox/00. Tag Glossary.md",
			RegistryOutputPath:     "99. System/Manual/02. Code Registry.md",
			HistoryPath:            "99. System/maintenance_history.json",
			ScanRoots:              []string{"20. Projects", "30. Areas"},
			CooldownDays:           7,
			FreshnessWindow:        time.Hour,
			TopN:                   20,
		},
		LLM: LLMConfig{
			Model:  "gemini-2.5-flash",
			APIKey: "${GEMINI_API_KEY}",
		},
		SQLite: SQLiteConfig{
			Path: "./othala.db",
		},
		Git: GitConfig{
			Enabled: false,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
