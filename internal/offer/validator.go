package offer

import (
	"fmt"
	"strings"
)

// Validator turns an inbound payload into a Request without touching the
// backend.
type Validator struct {
	bots           Bots
	defaultBotType string
}

// NewValidator builds a Validator. An empty defaultBotType makes bot_type
// mandatory.
func NewValidator(bots Bots, defaultBotType string) *Validator {
	return &Validator{bots: bots, defaultBotType: strings.TrimSpace(defaultBotType)}
}

func (v *Validator) Validate(p Payload) (Request, error) {
	message := strings.TrimSpace(p.Message)
	if message == "" {
		return Request{}, newError(ErrorBadRequest, "missing `message` in request body", "", nil)
	}

	botType := strings.TrimSpace(p.BotType)
	if botType == "" {
		botType = v.defaultBotType
	}
	if botType == "" {
		return Request{}, newError(ErrorBadRequest, "missing `bot_type` in request body", "", nil)
	}

	assistantID, ok := v.bots.Lookup(botType)
	if !ok || assistantID == "" {
		return Request{}, newError(ErrorBadRequest, fmt.Sprintf("unknown bot type `%s`", botType), "", nil)
	}

	return Request{
		Message:     p.Message,
		BotType:     botType,
		AssistantID: assistantID,
	}, nil
}
