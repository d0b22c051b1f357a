package internal

import (
	"fmt"
	"log/slog"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/rulekeeper/internal/classify"
	"github.com/starford/rulekeeper/internal/locate"
	"github.com/starford/rulekeeper/internal/parser"
	"github.com/starford/rulekeeper/internal/rulestore"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Documents DocumentsConfig   `yaml:"documents"`
	Rules     RulesConfig       `yaml:"rules"`
	Journal   JournalConfig     `yaml:"journal"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Documents.Validate(); err != nil {
		return err
	}
	if err := c.Rules.Validate(); err != nil {
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

// DocumentsConfig controls which files hold rules.
type DocumentsConfig struct {
	// Filename is looked up in the working directory and its ancestors.
	Filename string `yaml:"filename"`
	// GlobalPath is used when no project document is found. Empty means
	// ~/.claude/<filename>.
	GlobalPath string `yaml:"global_path"`
}

// Validate validates the documents configuration.
func (c *DocumentsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Filename, validation.Required),
	)
}

var headerRe = regexp.MustCompile(`^#{1,5} \S`)

// RulesConfig controls the managed section and its categories.
type RulesConfig struct {
	SectionHeader        string `yaml:"section_header"`
	ReviewThresholdDays  int    `yaml:"review_threshold_days"`
	PruneEmptyCategories bool   `yaml:"prune_empty_categories"`

	classify.Table `yaml:",inline"`
}

// Validate validates the rules configuration.
func (c *RulesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SectionHeader, validation.Required,
			validation.Match(headerRe).Error("must be a markdown heading of level 1 to 5")),
		validation.Field(&c.ReviewThresholdDays, validation.Required, validation.Min(1)),
		validation.Field(&c.Categories, validation.Required),
	)
}

// JournalConfig holds the change journal location. An empty path disables
// the journal.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether changes are journaled.
func (c *JournalConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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
		Documents: DocumentsConfig{
			Filename: locate.DefaultFilename,
		},
		Rules: RulesConfig{
			SectionHeader:       parser.DefaultHeader,
			ReviewThresholdDays: rulestore.DefaultReviewThreshold,
			Table:               classify.DefaultTable(),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
