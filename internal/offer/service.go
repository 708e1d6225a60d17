package offer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Vovarama1992/assistant-offer-bridge/internal/ai"
)

// NoAssistantResponse is the reply when the thread holds no assistant text.
const NoAssistantResponse = "No assistant response."

const (
	roleAssistant = "assistant"
	outcomeDone   = "DONE"

	// same vocabulary as the Assistants API run object
	statusQueued     = "queued"
	statusInProgress = "in_progress"
	statusCancelling = "cancelling"
	statusCompleted  = "completed"

	recordTimeout = 5 * time.Second
)

type Options struct {
	// Instructions is sent with every run; "%s" is replaced by the bot type.
	// Empty sends none.
	Instructions    string
	PollInterval    time.Duration
	MaxPollAttempts int
	MaxWait         time.Duration
	CallTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxPollAttempts <= 0 {
		o.MaxPollAttempts = 120
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 2 * time.Minute
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	return o
}

type service struct {
	*Validator
	backend ai.Assistants
	repo    Repo
	opts    Options

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewService wires the exchange orchestrator. repo may be nil, in which case
// outcomes are only logged.
func NewService(v *Validator, backend ai.Assistants, repo Repo, opts Options) Service {
	return &service{
		Validator: v,
		backend:   backend,
		repo:      repo,
		opts:      opts.withDefaults(),
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// exchange is the per-call state; nothing in it outlives Execute.
type exchange struct {
	id        string
	req       Request
	threadID  string
	runID     string
	runStatus string
	polls     int
	started   time.Time
	log       zerolog.Logger
}

func (s *service) Execute(ctx context.Context, req Request) (reply Reply, err error) {
	ex := &exchange{
		id:      ExchangeIDFrom(ctx),
		req:     req,
		started: s.now(),
	}
	if ex.id == "" {
		ex.id = uuid.NewString()
	}
	ex.log = log.With().
		Str("component", "offer").
		Str("exchange_id", ex.id).
		Str("bot_type", req.BotType).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			reply = Reply{}
			err = newError(ErrorInternal, "Internal Server Error", fmt.Sprint(r), nil)
		}
		s.finish(ctx, ex, err)
	}()

	ex.log.Info().Int("message_len", len(req.Message)).Msg("exchange started")

	text, err := s.run(ctx, ex)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text, ThreadID: ex.threadID, RunID: ex.runID, Polls: ex.polls}, nil
}

func (s *service) run(ctx context.Context, ex *exchange) (string, error) {
	// CreatingThread
	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	threadID, err := s.backend.CreateThread(callCtx)
	cancel()
	if err != nil {
		return "", s.backendFailure(ctx, err)
	}
	ex.threadID = threadID
	ex.log = ex.log.With().Str("thread_id", threadID).Logger()

	// PostingMessage
	callCtx, cancel = context.WithTimeout(ctx, s.opts.CallTimeout)
	err = s.backend.PostMessage(callCtx, threadID, ex.req.Message)
	cancel()
	if err != nil {
		return "", s.backendFailure(ctx, err)
	}

	// StartingRun
	callCtx, cancel = context.WithTimeout(ctx, s.opts.CallTimeout)
	run, err := s.backend.StartRun(callCtx, threadID, ex.req.AssistantID, s.instructions(ex.req.BotType))
	cancel()
	if err != nil {
		return "", s.backendFailure(ctx, err)
	}
	ex.runID = run.ID
	ex.runStatus = run.Status
	ex.log = ex.log.With().Str("run_id", run.ID).Logger()
	ex.log.Debug().Str("status", run.Status).Msg("run started")

	// Polling
	if err := s.poll(ctx, ex); err != nil {
		return "", err
	}
	if ex.runStatus != statusCompleted {
		return "", newError(ErrorRunFailed, "Run failed with status: "+ex.runStatus, ex.runStatus, nil)
	}

	// FetchingReply
	callCtx, cancel = context.WithTimeout(ctx, s.opts.CallTimeout)
	msgs, err := s.backend.ListMessages(callCtx, threadID)
	cancel()
	if err != nil {
		return "", s.backendFailure(ctx, err)
	}
	return extractReply(msgs), nil
}

// poll waits until ex.runStatus leaves the pending set. It only returns an
// error for timeouts, cancellation and failed status calls; the caller
// decides what a non-pending status means.
func (s *service) poll(ctx context.Context, ex *exchange) error {
	deadline := ex.started.Add(s.opts.MaxWait)

	for isPending(ex.runStatus) {
		if ex.polls >= s.opts.MaxPollAttempts {
			return newError(ErrorTimeout,
				fmt.Sprintf("run still %s after %d polls", ex.runStatus, ex.polls), ex.runStatus, nil)
		}
		if !s.now().Before(deadline) {
			return newError(ErrorTimeout,
				fmt.Sprintf("run still %s after %s", ex.runStatus, s.opts.MaxWait), ex.runStatus, nil)
		}

		if err := s.sleep(ctx, s.opts.PollInterval); err != nil {
			return contextFailure(ctx, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
		run, err := s.backend.GetRun(callCtx, ex.threadID, ex.runID)
		cancel()
		ex.polls++
		if err != nil {
			return s.backendFailure(ctx, err)
		}
		ex.runStatus = run.Status
		ex.log.Debug().Int("poll", ex.polls).Str("status", run.Status).Msg("run polled")
	}
	return nil
}

func (s *service) instructions(botType string) string {
	return strings.ReplaceAll(s.opts.Instructions, "%s", botType)
}

// backendFailure classifies an error returned by an ai.Assistants call.
// ctx is the exchange context, not the per-call one.
func (s *service) backendFailure(ctx context.Context, err error) *Error {
	if ctx.Err() != nil {
		return contextFailure(ctx, err)
	}

	var ce *ai.CallError
	if errors.As(err, &ce) && ce.StatusCode != 0 {
		return newError(ErrorBackendCall,
			fmt.Sprintf("API call failed: %s returned %d", ce.Step, ce.StatusCode), ce.Body, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrorTimeout, "backend call timed out", "", err)
	}
	return newError(ErrorInternal, "Internal Server Error", err.Error(), err)
}

func contextFailure(ctx context.Context, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(ErrorTimeout, "exchange deadline exceeded", "", err)
	}
	return newError(ErrorCancelled, "exchange cancelled by caller", "", err)
}

func (s *service) finish(ctx context.Context, ex *exchange, err error) {
	rec := &Record{
		ExchangeID: ex.id,
		BotType:    ex.req.BotType,
		ThreadID:   ex.threadID,
		RunID:      ex.runID,
		RunStatus:  ex.runStatus,
		Outcome:    outcomeDone,
		Polls:      ex.polls,
		Duration:   s.now().Sub(ex.started),
		CreatedAt:  ex.started,
	}

	var oe *Error
	if errors.As(err, &oe) {
		rec.Outcome = string(oe.Code)
		ev := ex.log.Error()
		if oe.Code == ErrorCancelled {
			ev = ex.log.Warn()
		}
		ev.Str("code", string(oe.Code)).Str("details", short(oe.Details)).Err(oe.Err).
			Int("polls", ex.polls).Dur("took", rec.Duration).Msg(oe.Reason)
	} else {
		ex.log.Info().Int("polls", ex.polls).Dur("took", rec.Duration).Msg("exchange done")
	}

	if s.repo == nil {
		return
	}
	// recorded even when the caller has gone away
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.repo.SaveExchange(saveCtx, rec); err != nil {
		ex.log.Warn().Err(err).Msg("ledger write failed")
	}
}

func isPending(status string) bool {
	switch status {
	case statusQueued, statusInProgress, statusCancelling:
		return true
	}
	return false
}

// extractReply picks the newest assistant message; msgs are newest-first.
func extractReply(msgs []ai.Message) string {
	for _, m := range msgs {
		if m.Role != roleAssistant {
			continue
		}
		if len(m.Texts) > 0 && m.Texts[0] != "" {
			return m.Texts[0]
		}
		return NoAssistantResponse
	}
	return NoAssistantResponse
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const shortLimit = 180

// short trims s for log lines without splitting a UTF-8 sequence.
func short(s string) string {
	if len(s) <= shortLimit {
		return s
	}
	cut := shortLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
