package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultPort             = "10000"
	defaultBotType          = "DEFAULT"
	defaultBaseURL          = "https://api.openai.com/v1"
	defaultAssistantVersion = "v2"
	defaultInstructions     = "You are running in %s mode."
	defaultPollInterval     = time.Second
	defaultPollMaxAttempts  = 120
	defaultPollMaxWait      = 2 * time.Minute
	defaultCallTimeout      = 30 * time.Second
)

// configKeys are read by Load and can never double as bot types.
var configKeys = map[string]bool{
	"PORT":                     true,
	"LOG_LEVEL":                true,
	"LOG_FORMAT":               true,
	"OPENAI_API_KEY":           true,
	"OPENAI_API_KEY_PARAM":     true,
	"OPENAI_BASE_URL":          true,
	"OPENAI_ASSISTANT_VERSION": true,
	"BOT_KEY_POLICY":           true,
	"BOT_TYPES":                true,
	"DEFAULT_BOT_TYPE":         true,
	"RUN_INSTRUCTIONS":         true,
	"POLL_INTERVAL":            true,
	"POLL_MAX_ATTEMPTS":        true,
	"POLL_MAX_WAIT":            true,
	"BACKEND_CALL_TIMEOUT":     true,
	"DATABASE_URL":             true,
}

// Config is resolved once at startup and passed explicitly to constructors.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	APIKey           string
	APIKeyParam      string
	BaseURL          string
	AssistantVersion string

	Bots           BotTable
	DefaultBotType string
	Instructions   string

	PollInterval    time.Duration
	PollMaxAttempts int
	PollMaxWait     time.Duration
	CallTimeout     time.Duration

	DatabaseURL string
}

// Lookup mirrors os.LookupEnv.
type Lookup func(key string) (string, bool)

// Load reads configuration from lookup, using environ to snapshot the bot
// table. The API key is not required here: it may come from SSM, see
// RequireAPIKey.
func Load(lookup Lookup, environ []string) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok {
			return strings.TrimSpace(v)
		}
		return def
	}

	policy, err := parseKeyPolicy(get("BOT_KEY_POLICY", ""))
	if err != nil {
		return Config{}, err
	}
	botTypes := parseBotTypes(get("BOT_TYPES", ""))
	if policy == KeyPolicyDirect {
		if len(botTypes) == 0 {
			return Config{}, errors.New("BOT_TYPES is required when BOT_KEY_POLICY=direct")
		}
		for _, bt := range botTypes {
			if isReservedKey(bt) {
				return Config{}, errors.Errorf("BOT_TYPES entry %q names a config or secret key", bt)
			}
		}
	}

	cfg := Config{
		Port:             get("PORT", defaultPort),
		LogLevel:         get("LOG_LEVEL", "info"),
		LogFormat:        get("LOG_FORMAT", "json"),
		APIKey:           get("OPENAI_API_KEY", ""),
		APIKeyParam:      get("OPENAI_API_KEY_PARAM", ""),
		BaseURL:          get("OPENAI_BASE_URL", defaultBaseURL),
		AssistantVersion: get("OPENAI_ASSISTANT_VERSION", defaultAssistantVersion),
		Bots:             NewBotTable(policy, botTypes, environ),
		DefaultBotType:   get("DEFAULT_BOT_TYPE", defaultBotType),
		DatabaseURL:      get("DATABASE_URL", ""),
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	// unset means default, explicitly empty disables instructions
	cfg.Instructions = defaultInstructions
	if v, ok := lookup("RUN_INSTRUCTIONS"); ok {
		cfg.Instructions = v
	}

	if cfg.PollInterval, err = duration(get("POLL_INTERVAL", ""), defaultPollInterval); err != nil {
		return Config{}, errors.Wrap(err, "POLL_INTERVAL")
	}
	if cfg.PollMaxWait, err = duration(get("POLL_MAX_WAIT", ""), defaultPollMaxWait); err != nil {
		return Config{}, errors.Wrap(err, "POLL_MAX_WAIT")
	}
	if cfg.CallTimeout, err = duration(get("BACKEND_CALL_TIMEOUT", ""), defaultCallTimeout); err != nil {
		return Config{}, errors.Wrap(err, "BACKEND_CALL_TIMEOUT")
	}
	if cfg.PollMaxAttempts, err = positiveInt(get("POLL_MAX_ATTEMPTS", ""), defaultPollMaxAttempts); err != nil {
		return Config{}, errors.Wrap(err, "POLL_MAX_ATTEMPTS")
	}

	return cfg, nil
}

// RequireAPIKey fails when neither a key nor an SSM parameter is configured.
func (c Config) RequireAPIKey() error {
	if c.APIKey == "" && c.APIKeyParam == "" {
		return errors.New("OPENAI_API_KEY not set (and no OPENAI_API_KEY_PARAM given)")
	}
	return nil
}

func duration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.Errorf("must be positive, got %s", raw)
	}
	return d, nil
}

func positiveInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
