// Package config loads mobile-use's runtime configuration — LLM provider
// profiles, the device target, the step budget, and timeouts — via
// github.com/spf13/viper, grounded on SPEC_FULL.md's ambient-stack
// commitment to viper-backed profile loading. Environment variables
// override file values, matching viper's standard precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProviderProfile configures a single named LLM provider/model pairing,
// resolved into an llm.Profile by the caller (internal/config does not
// import internal/llm, keeping provider-client construction at the wiring
// layer in cmd/mobileuse).
type ProviderProfile struct {
	Name        string `mapstructure:"name"`
	Provider    string `mapstructure:"provider"` // "anthropic" | "openai" | "bedrock"
	Model       string `mapstructure:"model"`
	HighModel   string `mapstructure:"high_model"`
	SmallModel  string `mapstructure:"small_model"`
	APIKey      string `mapstructure:"api_key"`
	Region      string `mapstructure:"region"` // bedrock
	MaxTokens   int    `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
	Fallback    string `mapstructure:"fallback"`
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"` // 0 disables client-side throttling
}

// AgentProfiles names the provider profile each graph node uses by default;
// a task request may override any of these per spec.md §6 "UsingProfile".
type AgentProfiles struct {
	Planner      string `mapstructure:"planner"`
	Orchestrator string `mapstructure:"orchestrator"`
	Cortex       string `mapstructure:"cortex"`
	Executor     string `mapstructure:"executor"`
	Hopper       string `mapstructure:"hopper"`
	Outputter    string `mapstructure:"outputter"`
}

// DeviceTarget identifies which backend(s) to wire up and how to reach them.
type DeviceTarget struct {
	Platform  string `mapstructure:"platform"` // "android" | "ios"
	Serial    string `mapstructure:"serial"`   // native/ADB device serial
	BridgeURL string `mapstructure:"bridge_url"`
	DryRun    bool   `mapstructure:"dry_run"`
}

// Config is the fully resolved runtime configuration.
type Config struct {
	Providers       []ProviderProfile `mapstructure:"providers"`
	Agents          AgentProfiles     `mapstructure:"agents"`
	Device          DeviceTarget      `mapstructure:"device"`
	MaxSteps        int               `mapstructure:"max_steps"`
	NotifyTimeout   time.Duration     `mapstructure:"notify_timeout"`
	RedisAddr       string            `mapstructure:"redis_addr"`
	TraceDir        string            `mapstructure:"trace_dir"`
	MongoURI        string            `mapstructure:"mongo_uri"`
	MongoDatabase   string            `mapstructure:"mongo_database"`
}

// Load reads configuration from path (if non-empty), then environment
// variables prefixed MOBILEUSE_ (e.g. MOBILEUSE_MAX_STEPS), which override
// file values. path may point to a YAML or TOML file; viper infers the
// format from its extension.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOBILEUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("max_steps", 50)
	v.SetDefault("notify_timeout", 10*time.Second)
	v.SetDefault("device.platform", "android")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the minimal shape needed to wire a runnable agent: at
// least one provider profile, and every agent role profile resolving to a
// configured provider (spec.md §7 "ProfileNotFound" is a task-time error;
// this check catches the equivalent misconfiguration at load time).
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider profile is required")
	}
	known := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: provider profile missing a name")
		}
		known[p.Name] = true
	}
	for role, name := range map[string]string{
		"planner":      c.Agents.Planner,
		"orchestrator": c.Agents.Orchestrator,
		"cortex":       c.Agents.Cortex,
		"executor":     c.Agents.Executor,
		"hopper":       c.Agents.Hopper,
		"outputter":    c.Agents.Outputter,
	} {
		if name == "" {
			continue // caller may default unset roles to the executor profile
		}
		if !known[name] {
			return fmt.Errorf("config: agents.%s references unknown provider profile %q", role, name)
		}
	}
	return nil
}

// Provider looks up a named provider profile.
func (c *Config) Provider(name string) (ProviderProfile, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderProfile{}, false
}
