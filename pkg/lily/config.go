package lily

import (
	"fmt"
	"os"
	"reflect"

	"github.com/spf13/viper"

	"github.com/harunnryd/lily/pkg/configutil"
	"github.com/harunnryd/lily/pkg/leads"
	"github.com/harunnryd/lily/pkg/providers/deepgram"
	"github.com/harunnryd/lily/pkg/providers/resemble"
	"github.com/harunnryd/lily/pkg/session"
	"github.com/harunnryd/lily/pkg/synthesis"
	"github.com/harunnryd/lily/pkg/transports/twilio"
)

type Config struct {
	Synthesis   SynthesisConfig `mapstructure:"synthesis"`
	Deepgram    deepgram.Config `mapstructure:"deepgram"`
	Twilio      twilio.Config   `mapstructure:"twilio"`
	Leads       leads.Config    `mapstructure:"leads"`
	Session     session.Config  `mapstructure:"session"`
	Agent       AgentConfig     `mapstructure:"agent"`
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
	Privacy     PrivacyConfig   `mapstructure:"privacy"`
}

type SynthesisConfig struct {
	Pool     synthesis.PoolConfig `mapstructure:"pool"`
	Resemble resemble.Config      `mapstructure:"resemble"`
}

type AgentConfig struct {
	Name         string `mapstructure:"name"`
	DrainTimeout int    `mapstructure:"drain_timeout_s"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("synthesis.pool.size", 4)
	v.SetDefault("synthesis.pool.acquire_timeout", "5s")
	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "en-US")
	v.SetDefault("deepgram.sample_rate", 16000)
	v.SetDefault("deepgram.encoding", "linear16")
	v.SetDefault("deepgram.utterance_end_ms", 1000)
	v.SetDefault("session.inactivity_window", "10s")
	v.SetDefault("session.debt_upper_bound", 10000)
	v.SetDefault("session.debt_lower_bound", 7000)
	v.SetDefault("leads.source", "resembleai")
	v.SetDefault("leads.user", "resembleaiapi")
	v.SetDefault("leads.timeout_s", 10)
	v.SetDefault("leads.max_retries", 2)
	v.SetDefault("leads.retry_backoff_ms", 200)
	v.SetDefault("agent.name", "Lily")
	v.SetDefault("agent.drain_timeout_s", 10)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Synthesis struct {
			Pool     synthesis.PoolConfig `mapstructure:"pool"`
			Resemble map[string]any       `mapstructure:"resemble"`
		} `mapstructure:"synthesis"`
		Deepgram    map[string]any `mapstructure:"deepgram"`
		Twilio      twilio.Config  `mapstructure:"twilio"`
		Leads       leads.Config   `mapstructure:"leads"`
		Session     session.Config `mapstructure:"session"`
		Agent       AgentConfig    `mapstructure:"agent"`
		Environment string         `mapstructure:"environment"`
		LogLevel    string         `mapstructure:"log_level"`
		LogFormat   string         `mapstructure:"log_format"`
		Privacy     PrivacyConfig  `mapstructure:"privacy"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	cfg := Config{
		Synthesis:   SynthesisConfig{Pool: raw.Synthesis.Pool},
		Twilio:      raw.Twilio,
		Leads:       raw.Leads,
		Session:     raw.Session,
		Agent:       raw.Agent,
		Environment: raw.Environment,
		LogLevel:    raw.LogLevel,
		LogFormat:   raw.LogFormat,
		Privacy:     raw.Privacy,
	}
	if err := configutil.DecodeSettings(raw.Synthesis.Resemble, &cfg.Synthesis.Resemble); err != nil {
		return Config{}, fmt.Errorf("decode resemble settings: %w", err)
	}
	if err := configutil.DecodeSettings(raw.Deepgram, &cfg.Deepgram); err != nil {
		return Config{}, fmt.Errorf("decode deepgram settings: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := configutil.RequireString(c.Synthesis.Resemble.APIKey, "synthesis.resemble.api_key"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Synthesis.Resemble.VoiceID, "synthesis.resemble.voice_id"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Deepgram.APIKey, "deepgram.api_key"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Twilio.AccountSID, "twilio.account_sid"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Leads.BaseURL, "leads.base_url"); err != nil {
		return err
	}
	return configutil.RequireString(c.Session.TransferDestination, "session.transfer_destination")
}

// expandEnvStrings lets ${VAR} references in the config file pull secrets
// from the environment.
func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
