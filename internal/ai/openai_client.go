package ai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const orderNewestFirst = "desc"

// OpenAIClient drives the Assistants API. go-openai adds the bearer
// credential and the OpenAI-Beta header to every call.
type OpenAIClient struct {
	client *openai.Client
}

type Option func(*openai.ClientConfig)

func WithBaseURL(baseURL string) Option {
	return func(c *openai.ClientConfig) {
		if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
			c.BaseURL = baseURL
		}
	}
}

func WithAssistantVersion(version string) Option {
	return func(c *openai.ClientConfig) {
		if version != "" {
			c.AssistantVersion = version
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *openai.ClientConfig) {
		if httpClient != nil {
			c.HTTPClient = httpClient
		}
	}
}

func NewOpenAIClient(apiKey string, opts ...Option) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ai: api key must not be empty")
	}
	cfg := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.HTTPClient = captureDoer{next: cfg.HTTPClient}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}, nil
}

func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	ctx, raw := withRawBody(ctx)
	thread, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", callError(StepCreateThread, raw, err)
	}
	return thread.ID, nil
}

func (c *OpenAIClient) PostMessage(ctx context.Context, threadID, text string) error {
	ctx, raw := withRawBody(ctx)
	_, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    "user",
		Content: text,
	})
	if err != nil {
		return callError(StepPostMessage, raw, err)
	}
	return nil
}

func (c *OpenAIClient) StartRun(ctx context.Context, threadID, assistantID, instructions string) (Run, error) {
	ctx, raw := withRawBody(ctx)
	run, err := c.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID:  assistantID,
		Instructions: instructions,
	})
	if err != nil {
		return Run{}, callError(StepStartRun, raw, err)
	}
	return Run{ID: run.ID, Status: string(run.Status)}, nil
}

func (c *OpenAIClient) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	ctx, raw := withRawBody(ctx)
	run, err := c.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return Run{}, callError(StepGetRun, raw, err)
	}
	return Run{ID: run.ID, Status: string(run.Status)}, nil
}

func (c *OpenAIClient) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	ctx, raw := withRawBody(ctx)
	order := orderNewestFirst
	list, err := c.client.ListMessage(ctx, threadID, nil, &order, nil, nil, nil)
	if err != nil {
		return nil, callError(StepListMessages, raw, err)
	}

	out := make([]Message, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg := Message{Role: string(m.Role)}
		for _, part := range m.Content {
			if part.Text != nil {
				msg.Texts = append(msg.Texts, part.Text.Value)
			}
		}
		out = append(out, msg)
	}
	return out, nil
}

// callError keeps whatever the backend said about the failure as Body: the
// raw response body when one was captured, else what go-openai decoded.
func callError(step string, raw *rawBody, err error) error {
	ce := &CallError{Step: step, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		ce.StatusCode = apiErr.HTTPStatusCode
		ce.Body = apiErr.Message
		if ce.Body == "" {
			ce.Body = apiErr.Error()
		}
	case errors.As(err, &reqErr):
		ce.StatusCode = reqErr.HTTPStatusCode
		ce.Body = string(reqErr.Body)
	}
	if ce.StatusCode != 0 && len(raw.data) > 0 {
		ce.Body = string(raw.data)
	}
	return ce
}

const maxErrorBody = 64 << 10

type rawBodyKey struct{}

// rawBody holds the body of the last failed response seen for one call.
type rawBody struct {
	data []byte
}

func withRawBody(ctx context.Context) (context.Context, *rawBody) {
	raw := &rawBody{}
	return context.WithValue(ctx, rawBodyKey{}, raw), raw
}

// captureDoer copies failed response bodies into the call's rawBody before
// go-openai decodes them, then hands the body on unchanged.
type captureDoer struct {
	next openai.HTTPDoer
}

func (d captureDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.next.Do(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	raw, ok := req.Context().Value(rawBodyKey{}).(*rawBody)
	if !ok {
		return resp, nil
	}

	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	raw.data = buf
	resp.Body = io.NopCloser(bytes.NewReader(buf))
	return resp, nil
}
