package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/vita/internal/gateway"
	"github.com/kalambet/vita/internal/storage"
)

const sessionType = "health_planning"

// Store abstracts all persistence the orchestrator touches.
// Implemented by storage.Store.
type Store interface {
	ToolStore
	GetSession(id, userID string) (storage.AgentSession, error)
	CreateSession(s storage.AgentSession) error
	SaveAction(a storage.AgentAction) error
	UpsertMemory(m storage.AgentMemory) error
}

// ChatClient is the upstream chat completion API. Implemented by
// gateway.Client.
type ChatClient interface {
	Chat(ctx context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error)
}

// ChatMessage is one entry of the caller-supplied conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest is one inbound chat turn.
type TurnRequest struct {
	Messages  []ChatMessage `json:"messages"`
	SessionID string        `json:"sessionId,omitempty"`
}

// TurnResponse is the terminal output of a turn: the assistant's final
// text, the session anchoring the turn, and the tools it invoked.
type TurnResponse struct {
	Message   string   `json:"message"`
	SessionID string   `json:"sessionId"`
	Actions   []string `json:"actions"`
}

// Orchestrator drives the tool-calling round trip: one model call with the
// tool catalogue, concurrent tool execution, then a follow-up call carrying
// the tool results for the final natural-language reply.
type Orchestrator struct {
	store  Store
	client ChatClient
	tools  *Toolset
	logger *slog.Logger
}

// New creates an Orchestrator around the given store and chat client.
func New(store Store, client ChatClient, tools *Toolset) *Orchestrator {
	return &Orchestrator{
		store:  store,
		client: client,
		tools:  tools,
		logger: slog.Default(),
	}
}

// HandleTurn processes one chat turn for userID. The turn is atomic from
// the caller's perspective: either the final response comes back, or an
// error does — there are no partial results. Upstream 429/402 propagate as
// typed gateway errors for the API layer to map.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID string, req TurnRequest) (TurnResponse, error) {
	if len(req.Messages) == 0 {
		return TurnResponse{}, errors.New("messages must not be empty")
	}

	session, err := o.resolveSession(userID, req.SessionID)
	if err != nil {
		return TurnResponse{}, err
	}

	messages := make([]gateway.Message, 0, len(req.Messages)+1)
	messages = append(messages, gateway.Message{Role: "system", Content: systemPrompt})
	for _, m := range req.Messages {
		messages = append(messages, gateway.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := o.client.Chat(ctx, gateway.ChatRequest{
		Messages:   messages,
		Tools:      agentTools(),
		ToolChoice: "auto",
	})
	if err != nil {
		return TurnResponse{}, fmt.Errorf("model call: %w", err)
	}

	choice := resp.First()
	final := choice
	actions := make([]string, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		actions = append(actions, tc.Function.Name)
	}

	if len(choice.ToolCalls) > 0 {
		toolResults := o.executeToolCalls(ctx, session, userID, choice.ToolCalls)

		// Second round: original conversation, the assistant's tool-call
		// message, then one tool-result message per call. No tool access —
		// the model must answer in natural language now.
		followUpMessages := append(messages, choice)
		followUpMessages = append(followUpMessages, toolResults...)

		followUp, err := o.client.Chat(ctx, gateway.ChatRequest{Messages: followUpMessages})
		if err != nil {
			return TurnResponse{}, fmt.Errorf("follow-up model call: %w", err)
		}
		final = followUp.First()
	}

	o.rememberPreferences(userID, req.Messages)

	return TurnResponse{
		Message:   final.Content,
		SessionID: session.ID,
		Actions:   actions,
	}, nil
}

// resolveSession loads the caller-supplied session if it exists and belongs
// to the user; otherwise a fresh one is created. A session id owned by
// another user is treated as absent, not as an error — the id is
// caller-controlled input.
func (o *Orchestrator) resolveSession(userID, sessionID string) (storage.AgentSession, error) {
	if sessionID != "" {
		session, err := o.store.GetSession(sessionID, userID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return storage.AgentSession{}, fmt.Errorf("resolving session: %w", err)
		}
	}

	session := storage.AgentSession{
		ID:          uuid.New().String(),
		UserID:      userID,
		SessionType: sessionType,
		Status:      "active",
	}
	if err := o.store.CreateSession(session); err != nil {
		return storage.AgentSession{}, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// executeToolCalls runs every requested tool concurrently and returns one
// tool-result message per call, in call order. Each call gets an
// agent_actions audit row no matter how it went; a failing tool becomes an
// error payload for the model, never an aborted turn.
func (o *Orchestrator) executeToolCalls(ctx context.Context, session storage.AgentSession, userID string, calls []gateway.ToolCall) []gateway.Message {
	results := make([]gateway.Message, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = o.executeOne(ctx, session, userID, call)
			return nil
		})
	}
	g.Wait()

	return results
}

func (o *Orchestrator) executeOne(ctx context.Context, session storage.AgentSession, userID string, call gateway.ToolCall) gateway.Message {
	name := call.Function.Name
	args := call.RawArguments()

	o.logger.Debug("executing tool", "tool", name, "session_id", session.ID)

	status := "completed"
	result, err := o.tools.Execute(ctx, name, args, userID)
	if err != nil {
		status = "failed"
		result = map[string]string{"error": err.Error()}
	}

	content, merr := json.Marshal(result)
	if merr != nil {
		status = "failed"
		content = []byte(fmt.Sprintf(`{"error":%q}`, merr.Error()))
	}

	// Audit row is unconditional: success and failure both leave a trace.
	action := storage.AgentAction{
		ID:         uuid.New().String(),
		SessionID:  session.ID,
		UserID:     userID,
		ActionType: name,
		ActionData: string(args),
		Status:     status,
		Result:     string(content),
	}
	if aerr := o.store.SaveAction(action); aerr != nil {
		o.logger.Error("failed to record agent action", "tool", name, "session_id", session.ID, "error", aerr)
	}

	return gateway.Message{
		Role:       "tool",
		ToolCallID: call.ID,
		Content:    string(content),
	}
}

// rememberPreferences extracts durable preferences from the user's side of
// the conversation and upserts them. Best effort: failures are logged and
// never fail the turn.
func (o *Orchestrator) rememberPreferences(userID string, messages []ChatMessage) {
	for _, m := range ExtractPreferences(messages) {
		m.UserID = userID
		if err := o.store.UpsertMemory(m); err != nil {
			o.logger.Warn("failed to store memory", "user_id", userID, "key", m.Key, "error", err)
		}
	}
}
