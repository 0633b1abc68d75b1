// Package config resolves tq settings from tq.toml, TQ_* environment
// variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/logging"
	"github.com/spf13/viper"
)

const (
	configName = "tq"
	configType = "toml"
	envPrefix  = "TQ"
)

type Config struct {
	Home        string
	Paths       Paths
	Telegram    Telegram
	Poll        Poll
	Store       Store
	Credentials Credentials
	Delivery    Delivery
	Login       Login
	Logging     logging.Config
}

type Paths struct {
	Accounts string
	Bots     string
	Sessions string
	Queries  string
	State    string
}

type Telegram struct {
	APIID             int
	APIHash           string
	ConnectionRetries int
}

// Identity returns the configured default API identity, if any.
func (t Telegram) Identity() (domain.APIIdentity, bool) {
	identity := domain.APIIdentity{ID: t.APIID, Hash: t.APIHash}
	if identity.Validate() != nil {
		return domain.APIIdentity{}, false
	}
	return identity, true
}

type Poll struct {
	Interval   time.Duration
	Settle     time.Duration
	Pacing     time.Duration
	LoginDelay time.Duration
	Window     int
	Probe      string
}

type Store struct {
	Policy       domain.StorePolicy
	HistoryLimit int
}

type Credentials struct {
	Backend string
}

type Delivery struct {
	Timeout time.Duration
}

type Login struct {
	MaxChallengeAttempts int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.accounts", "phone.txt")
	v.SetDefault("paths.bots", "bot.txt")
	v.SetDefault("paths.sessions", "sessions")
	v.SetDefault("paths.queries", "queries")
	v.SetDefault("paths.state", "state.toml")

	v.SetDefault("telegram.api_id", 0)
	v.SetDefault("telegram.api_hash", "")
	v.SetDefault("telegram.connection_retries", 5)

	v.SetDefault("poll.interval", "6h")
	v.SetDefault("poll.settle", "5s")
	v.SetDefault("poll.pacing", "2s")
	v.SetDefault("poll.login_delay", "2s")
	v.SetDefault("poll.window", 5)
	v.SetDefault("poll.probe", "/start")

	v.SetDefault("store.policy", string(domain.StorePolicyHistory))
	v.SetDefault("store.history_limit", 0)

	v.SetDefault("credentials.backend", "file")
	v.SetDefault("delivery.timeout", "10s")
	v.SetDefault("login.max_challenge_attempts", 5)

	defaults := logging.DefaultConfig()
	v.SetDefault("logging.level", defaults.Level)
	v.SetDefault("logging.format", defaults.Format)
	v.SetDefault("logging.time_format", defaults.TimeFormat)
	v.SetDefault("logging.show_caller", false)
}

// Load reads <home>/tq.toml when present and resolves relative paths against home.
func Load(v *viper.Viper, home string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	absHome, err := filepath.Abs(home)
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	setDefaults(v)
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(absHome)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	policy, err := domain.ParseStorePolicy(v.GetString("store.policy"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Home: absHome,
		Paths: Paths{
			Accounts: resolvePath(absHome, v.GetString("paths.accounts")),
			Bots:     resolvePath(absHome, v.GetString("paths.bots")),
			Sessions: resolvePath(absHome, v.GetString("paths.sessions")),
			Queries:  resolvePath(absHome, v.GetString("paths.queries")),
			State:    resolvePath(absHome, v.GetString("paths.state")),
		},
		Telegram: Telegram{
			APIID:             v.GetInt("telegram.api_id"),
			APIHash:           v.GetString("telegram.api_hash"),
			ConnectionRetries: v.GetInt("telegram.connection_retries"),
		},
		Poll: Poll{
			Interval:   v.GetDuration("poll.interval"),
			Settle:     v.GetDuration("poll.settle"),
			Pacing:     v.GetDuration("poll.pacing"),
			LoginDelay: v.GetDuration("poll.login_delay"),
			Window:     v.GetInt("poll.window"),
			Probe:      v.GetString("poll.probe"),
		},
		Store: Store{
			Policy:       policy,
			HistoryLimit: v.GetInt("store.history_limit"),
		},
		Credentials: Credentials{Backend: v.GetString("credentials.backend")},
		Delivery:    Delivery{Timeout: v.GetDuration("delivery.timeout")},
		Login:       Login{MaxChallengeAttempts: v.GetInt("login.max_challenge_attempts")},
		Logging: logging.Config{
			Level:      v.GetString("logging.level"),
			Format:     v.GetString("logging.format"),
			TimeFormat: v.GetString("logging.time_format"),
			ShowCaller: v.GetBool("logging.show_caller"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	// An identity is optional, but a half-set one is a typo, not a default.
	if c.Telegram.APIID != 0 || strings.TrimSpace(c.Telegram.APIHash) != "" {
		if _, ok := c.Telegram.Identity(); !ok {
			return fmt.Errorf("telegram.api_id and telegram.api_hash must be set together, with a positive api_id")
		}
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Poll.Settle < 0 || c.Poll.Pacing < 0 || c.Poll.LoginDelay < 0 {
		return fmt.Errorf("poll delays must not be negative")
	}
	if c.Poll.Window <= 0 {
		return fmt.Errorf("poll.window must be positive")
	}
	if strings.TrimSpace(c.Poll.Probe) == "" {
		return fmt.Errorf("poll.probe is required")
	}
	if c.Store.HistoryLimit < 0 {
		return fmt.Errorf("store.history_limit must not be negative")
	}
	if c.Login.MaxChallengeAttempts <= 0 {
		return fmt.Errorf("login.max_challenge_attempts must be positive")
	}
	return nil
}

func resolvePath(home, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(home, path)
}
