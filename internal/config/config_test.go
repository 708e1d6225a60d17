package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func lookupFrom(vals map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := vals[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(lookupFrom(nil), nil)
	require.NoError(t, err)
	require.Equal(t, "10000", cfg.Port)
	require.Equal(t, "DEFAULT", cfg.DefaultBotType)
	require.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	require.Equal(t, "v2", cfg.AssistantVersion)
	require.Equal(t, "You are running in %s mode.", cfg.Instructions)
	require.Equal(t, time.Second, cfg.PollInterval)
	require.Equal(t, 120, cfg.PollMaxAttempts)
	require.Equal(t, 2*time.Minute, cfg.PollMaxWait)
	require.Equal(t, 30*time.Second, cfg.CallTimeout)
	require.Error(t, cfg.RequireAPIKey())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(lookupFrom(map[string]string{
		"PORT":              "8080",
		"OPENAI_API_KEY":    " sk-test ",
		"POLL_INTERVAL":     "1500ms",
		"POLL_MAX_ATTEMPTS": "5",
		"POLL_MAX_WAIT":     "10s",
		"RUN_INSTRUCTIONS":  "",
		"DEFAULT_BOT_TYPE":  "",
	}), nil)
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "sk-test", cfg.APIKey)
	require.Equal(t, 1500*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 5, cfg.PollMaxAttempts)
	require.Equal(t, 10*time.Second, cfg.PollMaxWait)
	require.Empty(t, cfg.Instructions)
	require.Empty(t, cfg.DefaultBotType)
	require.NoError(t, cfg.RequireAPIKey())
}

func TestLoad_APIKeyParamSatisfiesRequirement(t *testing.T) {
	cfg, err := Load(lookupFrom(map[string]string{"OPENAI_API_KEY_PARAM": "/bridge/openai-key"}), nil)
	require.NoError(t, err)
	require.NoError(t, cfg.RequireAPIKey())
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"POLL_INTERVAL":        "soon",
		"POLL_MAX_WAIT":        "-1s",
		"BACKEND_CALL_TIMEOUT": "0s",
		"POLL_MAX_ATTEMPTS":    "zero",
		"BOT_KEY_POLICY":       "fuzzy",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := Load(lookupFrom(map[string]string{key: val}), nil)
			require.Error(t, err)
		})
	}
}

func TestBotTable_Prefixed(t *testing.T) {
	table := NewBotTable(KeyPolicyPrefixed, nil, []string{
		"DEFAULT_BOT=asst_default",
		"sales_bot=asst_sales",
		"EMPTY_BOT=",
		"PATH=/usr/bin",
		"garbage",
	})

	id, ok := table.Lookup("sales")
	require.True(t, ok)
	require.Equal(t, "asst_sales", id)

	id, ok = table.Lookup("Default")
	require.True(t, ok)
	require.Equal(t, "asst_default", id)

	_, ok = table.Lookup("empty")
	require.False(t, ok)
	_, ok = table.Lookup("PATH")
	require.False(t, ok)
	_, ok = table.Lookup("")
	require.False(t, ok)

	require.Equal(t, []string{"DEFAULT", "SALES"}, table.Types())
}

func TestBotTable_PrefixedAllowList(t *testing.T) {
	table := NewBotTable(KeyPolicyPrefixed, []string{"sales"}, []string{
		"DEFAULT_BOT=asst_default",
		"SALES_BOT=asst_sales",
	})
	_, ok := table.Lookup("default")
	require.False(t, ok)
	require.Equal(t, []string{"SALES"}, table.Types())
}

func TestBotTable_Direct(t *testing.T) {
	table := NewBotTable(KeyPolicyDirect, []string{"support"}, []string{
		"support=asst_support",
		"SALES_BOT=asst_sales",
		"BILLING=asst_billing",
	})

	id, ok := table.Lookup("SUPPORT")
	require.True(t, ok)
	require.Equal(t, "asst_support", id)

	_, ok = table.Lookup("sales")
	require.False(t, ok)
	_, ok = table.Lookup("billing")
	require.False(t, ok, "only listed bot types resolve")
	require.Equal(t, []string{"SUPPORT"}, table.Types())
}

func TestBotTable_DirectNeverExposesConfigOrSecrets(t *testing.T) {
	env := []string{
		"OPENAI_API_KEY=sk-live-secret",
		"DATABASE_URL=postgres://u:pw@db/x",
		"BOT_KEY_POLICY=direct",
		"AWS_SECRET_ACCESS_KEY=aws-secret",
		"GITHUB_TOKEN=ghp_x",
		"SUPPORT=asst_support",
	}

	table := NewBotTable(KeyPolicyDirect, nil, env)
	for _, key := range []string{"OPENAI_API_KEY", "openai_api_key", "database_url", "bot_key_policy", "support"} {
		_, ok := table.Lookup(key)
		require.False(t, ok, key)
	}

	// even when someone lists them
	table = NewBotTable(KeyPolicyDirect, []string{"openai_api_key", "database_url", "aws_secret_access_key", "github_token", "support"}, env)
	for _, key := range []string{"OPENAI_API_KEY", "DATABASE_URL", "AWS_SECRET_ACCESS_KEY", "GITHUB_TOKEN"} {
		_, ok := table.Lookup(key)
		require.False(t, ok, key)
	}
	require.Equal(t, []string{"SUPPORT"}, table.Types())
}

func TestLoad_DirectPolicyNeedsBotTypes(t *testing.T) {
	env := []string{"OPENAI_API_KEY=sk-live-secret", "SUPPORT=asst_support"}

	_, err := Load(lookupFrom(map[string]string{"BOT_KEY_POLICY": "direct"}), env)
	require.ErrorContains(t, err, "BOT_TYPES")

	_, err = Load(lookupFrom(map[string]string{"BOT_KEY_POLICY": "direct", "BOT_TYPES": "support,openai_api_key"}), env)
	require.ErrorContains(t, err, "OPENAI_API_KEY")

	cfg, err := Load(lookupFrom(map[string]string{"BOT_KEY_POLICY": "direct", "BOT_TYPES": " support , "}), env)
	require.NoError(t, err)
	id, ok := cfg.Bots.Lookup("support")
	require.True(t, ok)
	require.Equal(t, "asst_support", id)
	_, ok = cfg.Bots.Lookup("OPENAI_API_KEY")
	require.False(t, ok)
}

func TestBotTableFromMap(t *testing.T) {
	table := BotTableFromMap(KeyPolicyPrefixed, map[string]string{"default": "asst_1"})
	id, ok := table.Lookup("DEFAULT")
	require.True(t, ok)
	require.Equal(t, "asst_1", id)
}
