package offer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/assistant-offer-bridge/internal/config"
)

func testBots() config.BotTable {
	return config.BotTableFromMap(config.KeyPolicyPrefixed, map[string]string{
		"DEFAULT": "asst_default",
		"SALES":   "asst_sales",
	})
}

func requireCode(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	require.Error(t, err)
	var oe *Error
	require.True(t, errors.As(err, &oe), "want *offer.Error, got %T", err)
	require.Equal(t, code, oe.Code)
	return oe
}

func TestValidate_MissingMessage(t *testing.T) {
	v := NewValidator(testBots(), "DEFAULT")
	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := v.Validate(Payload{Message: msg, BotType: "sales"})
		oe := requireCode(t, err, ErrorBadRequest)
		require.Contains(t, oe.Reason, "message")
	}
}

func TestValidate_UnknownBotTypeNamesKey(t *testing.T) {
	v := NewValidator(testBots(), "DEFAULT")
	_, err := v.Validate(Payload{Message: "hello", BotType: "pirate"})
	oe := requireCode(t, err, ErrorBadRequest)
	require.Equal(t, "unknown bot type `pirate`", oe.Reason)
}

func TestValidate_DefaultBotType(t *testing.T) {
	v := NewValidator(testBots(), "DEFAULT")
	req, err := v.Validate(Payload{Message: "hello"})
	require.NoError(t, err)
	require.Equal(t, Request{Message: "hello", BotType: "DEFAULT", AssistantID: "asst_default"}, req)
}

func TestValidate_ExplicitBotType(t *testing.T) {
	v := NewValidator(testBots(), "DEFAULT")
	req, err := v.Validate(Payload{Message: "hello", BotType: " sales "})
	require.NoError(t, err)
	require.Equal(t, "sales", req.BotType)
	require.Equal(t, "asst_sales", req.AssistantID)
}

func TestValidate_NoDefaultRequiresBotType(t *testing.T) {
	v := NewValidator(testBots(), "")
	_, err := v.Validate(Payload{Message: "hello"})
	oe := requireCode(t, err, ErrorBadRequest)
	require.Contains(t, oe.Reason, "bot_type")
}

func TestValidate_DefaultMissingFromTable(t *testing.T) {
	v := NewValidator(config.BotTableFromMap(config.KeyPolicyPrefixed, nil), "DEFAULT")
	_, err := v.Validate(Payload{Message: "hello"})
	oe := requireCode(t, err, ErrorBadRequest)
	require.Equal(t, "unknown bot type `DEFAULT`", oe.Reason)
}
