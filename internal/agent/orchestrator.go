package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

const (
	defaultMaxTurns    = 5
	defaultTemperature = 0.7

	// AbortedAnswer is returned when the budget runs out before the model produced any text.
	AbortedAnswer = "Maximum iterations reached. Please try a simpler query."
)

// ErrInvalidRequest is returned for a chat request that cannot start a conversation.
var ErrInvalidRequest = errors.New("invalid chat request")

// TransitionHook observes every state change of a run.
type TransitionHook func(from, to State, turn int)

// Orchestrator drives one conversation at a time through the state machine.
// It holds no per-run state and may be shared between goroutines.
type Orchestrator struct {
	agent        Agent
	tools        ToolExecutor
	model        string
	temperature  float64
	maxTokens    int
	maxTurns     int
	systemPrompt string
	hook         TransitionHook
	logger       *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(o *Orchestrator) { o.model = model }
}

// WithTemperature sets the sampling temperature used when a request does not set one.
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = t }
}

// WithMaxTokens sets the completion limit used when a request does not set one.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) { o.maxTokens = n }
}

// WithMaxTurns bounds how many times the model is called per run.
func WithMaxTurns(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(p string) Option {
	return func(o *Orchestrator) {
		if strings.TrimSpace(p) != "" {
			o.systemPrompt = p
		}
	}
}

// WithTransitionHook registers h to be called on every state change.
func WithTransitionHook(h TransitionHook) Option {
	return func(o *Orchestrator) { o.hook = h }
}

// WithLogger sets a logger for turns and tool calls.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator for agent and tools.
func New(agent Agent, tools ToolExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agent:        agent,
		tools:        tools,
		temperature:  defaultTemperature,
		maxTurns:     defaultMaxTurns,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = utils.OrNop(o.logger)
	return o
}

// MaxTurns returns the per-run turn budget.
func (o *Orchestrator) MaxTurns() int {
	return o.maxTurns
}

// Result is the outcome of a run.
type Result struct {
	ID           string
	Model        string
	State        State
	Message      models.Message
	Usage        models.Usage
	Turns        int
	ToolCalls    int
	Conversation []models.Message
}

// run is the mutable state of one conversation.
type run struct {
	o     *Orchestrator
	state State
	turn  int
}

func (r *run) to(next State) {
	if !CanTransition(r.state, next) {
		// unreachable unless the loop below is changed incorrectly
		panic(fmt.Sprintf("agent: illegal transition %s -> %s", r.state, next))
	}
	r.o.logger.Debug("agent transition",
		zap.String("from", r.state.String()), zap.String("to", next.String()), zap.Int("turn", r.turn))
	if r.o.hook != nil {
		r.o.hook(r.state, next, r.turn)
	}
	r.state = next
}

// Run answers the conversation in req. The model is called at most MaxTurns
// times. Tool failures are reported back to the model as tool results; a model
// failure ends the run with the model's error.
func (o *Orchestrator) Run(ctx context.Context, req models.ChatRequest) (*Result, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages must not be empty", ErrInvalidRequest)
	}
	for i, m := range req.Messages {
		switch m.Role {
		case models.RoleUser, models.RoleAssistant, models.RoleSystem:
		default:
			return nil, fmt.Errorf("%w: message %d has unsupported role %q", ErrInvalidRequest, i, m.Role)
		}
	}

	agentReq := Request{
		Model:       o.model,
		Tools:       o.tools.Specs(),
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	if req.Model != "" {
		agentReq.Model = req.Model
	}
	if req.Temperature != nil {
		agentReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		agentReq.MaxTokens = *req.MaxTokens
	}

	conversation := make([]models.Message, 0, len(req.Messages)+1+2*o.maxTurns)
	conversation = append(conversation, models.Message{Role: models.RoleSystem, Content: o.systemPrompt})
	conversation = append(conversation, req.Messages...)

	r := &run{o: o, state: AwaitingAgent}
	res := &Result{Model: agentReq.Model}
	lastContent := ""

	for {
		r.turn++
		agentReq.Messages = conversation
		resp, err := o.agent.Next(ctx, agentReq)
		if err != nil {
			r.to(Aborted)
			o.logger.Warn("agent turn failed", zap.Int("turn", r.turn), zap.Error(err))
			return nil, err
		}
		res.Turns = r.turn
		res.Usage.Add(resp.Usage)
		if resp.ID != "" {
			res.ID = resp.ID
		}
		if resp.Model != "" {
			res.Model = resp.Model
		}

		msg := resp.Message
		msg.Role = models.RoleAssistant
		if strings.TrimSpace(msg.Content) != "" {
			lastContent = msg.Content
		}

		if len(msg.ToolCalls) == 0 {
			r.to(Done)
			conversation = append(conversation, msg)
			res.State, res.Message, res.Conversation = Done, msg, conversation
			return res, nil
		}

		conversation = append(conversation, msg)
		// Pending tool calls are not run: no agent turn is left to read their results.
		if r.turn >= o.maxTurns {
			r.to(Aborted)
			o.logger.Warn("agent turn budget exhausted",
				zap.Int("max_turns", o.maxTurns), zap.Int("pending_tool_calls", len(msg.ToolCalls)))
			content := lastContent
			if content == "" {
				content = AbortedAnswer
			}
			res.State = Aborted
			res.Message = models.Message{Role: models.RoleAssistant, Content: content}
			res.Conversation = conversation
			return res, nil
		}

		r.to(ToolRequested)
		for _, call := range msg.ToolCalls {
			conversation = append(conversation, o.execute(ctx, call))
			res.ToolCalls++
		}
		r.to(ToolExecuted)
		r.to(AwaitingAgent)
	}
}

// execute runs one tool call. Errors become the tool result so the model can
// recover, for example by rephrasing the query.
func (o *Orchestrator) execute(ctx context.Context, call models.ToolCall) models.Message {
	name := call.Function.Name
	out, err := o.tools.Invoke(ctx, name, call.Function.Arguments)
	if err != nil {
		o.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		out = fmt.Sprintf("Error executing %s: %v", name, err)
	} else {
		o.logger.Debug("tool call completed",
			zap.String("tool", name), zap.String("arguments", utils.Truncate(call.Function.Arguments, 120)))
	}
	return models.Message{Role: models.RoleTool, ToolCallID: call.ID, Name: name, Content: out}
}
