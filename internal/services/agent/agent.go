// Package agent is the conversational boundary: it hands the transcript and
// the fixed tool set to the model, parses whatever the model invokes into a
// closed operation set, executes it against the core and asks the model to
// wrap the structured result in natural language.
package agent

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/refuel/internal/registry"
	"github.com/vadiminshakov/refuel/pkg/retrier"
	"go.uber.org/zap"
)

// maxToolIterations bounds the tool-call loop for a single user message.
const maxToolIterations = 6

const systemPrompt = `You are refuel, an assistant that manages auto top-up automations on the Supra network.
You can create, cancel, list and check auto top-up strategies, and show analytics, using the provided tools.
Every strategy watches one target account and tops it up with a fixed amount when the balance drops below the fixed threshold.
Use exactly one tool per user request when an action is needed, then summarize the structured result for the user in plain language.
If a result has mode SIMULATION, make clear to the user that the on-chain operation did not happen and the record is local only.
If you cannot map the request to a tool, answer conversationally.`

// Agent drives one conversation. It keeps the transcript between turns;
// there is a single user per process.
type Agent struct {
	logger  *zap.Logger
	client  *openai.Client
	model   string
	gateway executionGateway
	store   *registry.Registry
	oracle  balanceOracle
	retrier *retrier.Retrier

	history []openai.ChatCompletionMessageParamUnion
}

func New(client *openai.Client, model string, gw executionGateway, store *registry.Registry, oracle balanceOracle, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		logger:  logger,
		client:  client,
		model:   model,
		gateway: gw,
		store:   store,
		oracle:  oracle,
		retrier: retrier.New(retrier.WithMaxRetries(2)),
		history: []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)},
	}
}

// Chat processes one user message: model call, at most one round of tool
// dispatch per iteration, final natural-language reply. The next user message
// is not accepted until this one's dispatch completes.
func (a *Agent) Chat(ctx context.Context, userText string) (string, error) {
	a.history = append(a.history, openai.UserMessage(userText))
	tools := a.buildTools()

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := retrier.DoWithData(a.retrier, ctx, func(ctx context.Context) (*openai.ChatCompletion, error) {
			return a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Model:    shared.ChatModel(a.model),
				Messages: a.history,
				Tools:    tools,
			})
		})
		if err != nil {
			return "", errors.Wrap(err, "model request failed")
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("model returned no choices")
		}

		message := resp.Choices[0].Message
		a.history = append(a.history, message.ToParam())

		if len(message.ToolCalls) == 0 {
			return message.Content, nil
		}

		for _, toolCall := range message.ToolCalls {
			result := a.executeToolCall(ctx, toolCall.Function.Name, toolCall.Function.Arguments)
			resultJSON, _ := json.Marshal(result)
			a.history = append(a.history, openai.ToolMessage(string(resultJSON), toolCall.ID))
		}
	}

	a.logger.Warn("reached max tool iterations for one message")
	return "I could not finish processing that request, please try rephrasing it.", nil
}

// executeToolCall parses and dispatches one tool invocation. Every failure
// becomes a structured result so the model can apologize in its own words.
func (a *Agent) executeToolCall(ctx context.Context, name, rawArgs string) map[string]any {
	var args map[string]any
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			a.logger.Error("failed to parse tool arguments",
				zap.String("tool", name),
				zap.Error(err))
			return map[string]any{"success": false, "message": "could not parse tool arguments: " + err.Error()}
		}
	}

	op, err := parseOperation(name, args)
	if err != nil {
		a.logger.Warn("rejected tool invocation",
			zap.String("tool", name),
			zap.Error(err))
		return map[string]any{"success": false, "message": err.Error()}
	}

	a.logger.Info("dispatching operation",
		zap.String("tool", name),
		zap.Any("args", args))
	return a.dispatch(ctx, op)
}

func (a *Agent) buildTools() []openai.ChatCompletionToolParam {
	functionType := constant.Function("").Default()

	return []openai.ChatCompletionToolParam{
		{
			Type: functionType,
			Function: shared.FunctionDefinitionParam{
				Name:        toolCreate,
				Description: openai.String("Create an auto top-up strategy watching a target account"),
				Parameters: shared.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"strategyName": map[string]any{
							"type":        "string",
							"description": "User-supplied label for the strategy",
						},
						"targetAddress": map[string]any{
							"type":        "string",
							"description": "Account to watch, 0x followed by 64 hex characters",
						},
					},
					"required": []string{"strategyName", "targetAddress"},
				},
			},
		},
		{
			Type: functionType,
			Function: shared.FunctionDefinitionParam{
				Name:        toolCancel,
				Description: openai.String("Cancel an automation strategy by id; cancellation is permanent"),
				Parameters: shared.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"strategyId": map[string]any{
							"type":        "string",
							"description": "Id of the strategy to cancel",
						},
					},
					"required": []string{"strategyId"},
				},
			},
		},
		{
			Type: functionType,
			Function: shared.FunctionDefinitionParam{
				Name:        toolList,
				Description: openai.String("List all active auto top-up strategies"),
				Parameters: shared.FunctionParameters{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		},
		{
			Type: functionType,
			Function: shared.FunctionDefinitionParam{
				Name:        toolCheck,
				Description: openai.String("Check balance health of one strategy, or of all active ones when no id is given"),
				Parameters: shared.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"strategyId": map[string]any{
							"type":        "string",
							"description": "Optional strategy id",
						},
					},
				},
			},
		},
		{
			Type: functionType,
			Function: shared.FunctionDefinitionParam{
				Name:        toolAnalytics,
				Description: openai.String("Show aggregate statistics over all strategies"),
				Parameters: shared.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"timeframe": map[string]any{
							"type":        "string",
							"description": "Optional timeframe label, informational only",
						},
					},
				},
			},
		},
	}
}
