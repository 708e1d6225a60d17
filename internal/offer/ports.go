package offer

import (
	"context"
	"time"
)

// Payload is the inbound body of POST /start-offer.
type Payload struct {
	Message string `json:"message"`
	BotType string `json:"bot_type"`
}

// Request is a validated exchange request.
type Request struct {
	Message     string
	BotType     string
	AssistantID string
}

// Reply is the success half of an exchange outcome.
type Reply struct {
	Text     string
	ThreadID string
	RunID    string
	Polls    int
}

// Bots resolves bot types to assistant ids. config.BotTable satisfies it.
type Bots interface {
	Lookup(botType string) (string, bool)
}

// Record is the outcome metadata of one exchange. It never carries message
// or reply text.
type Record struct {
	ExchangeID string
	BotType    string
	ThreadID   string
	RunID      string
	RunStatus  string
	Outcome    string
	Polls      int
	Duration   time.Duration
	CreatedAt  time.Time
}

// Repo — exchange ledger
type Repo interface {
	SaveExchange(ctx context.Context, rec *Record) error
}

// Service — validation plus the thread/run exchange
type Service interface {
	Validate(p Payload) (Request, error)
	Execute(ctx context.Context, req Request) (Reply, error)
}
