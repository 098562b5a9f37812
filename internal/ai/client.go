// Package ai wraps the OpenAI function-calling API used to route free-form
// user text to one of the tracker's structured operations.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"kharcha/internal/core"
)

// Operation names the classifier can select.
const (
	ActionParseExpense  = "parse_expense"
	ActionQueryExpenses = "query_expenses"
	ActionSummarize     = "summarize_expenses"
	ActionLastExpense   = "get_last_expense"
	ActionSplitExpense  = "split_expense"
	ActionMostExpensive = "get_most_expensive_expense"
	ActionRunSQL        = "run_sql"
)

// Intent is the classifier's decision for one piece of user text: either a
// free-text reply (Content, no Action) or a selected operation plus its raw
// decoded arguments.
type Intent struct {
	Action  string
	Args    map[string]any
	Content string
}

// Intents is the classifier contract consumed by the router and handlers.
type Intents interface {
	// Classify routes user text to an operation or a free-text reply.
	Classify(ctx context.Context, text string) (*Intent, error)
	// ParseExpense forces the direct-parse path: it fails unless the model
	// selected parse_expense for the given text.
	ParseExpense(ctx context.Context, text string) (map[string]any, error)
}

const systemPrompt = "You are an AI assistant for an expense tracker. " +
	"When the user provides details of a new expense (mentions amount, date, description, category), always call the parse_expense function. " +
	"When the user asks about stored expenses, use query_expenses. " +
	"When the user wants an overall summary, use summarize_expenses. " +
	"When the user requests the most recent entry explicitly, use get_last_expense. " +
	"When splitting a bill among participants, use split_expense. " +
	"When the user asks for the most expensive or highest expense ever, use get_most_expensive_expense. " +
	"For other insights (e.g., second-highest expense, total spending, average), generate an appropriate SQL SELECT query and call run_sql."

// functionDefinitions is the fixed menu of callable operations presented to
// the model on every request.
var functionDefinitions = []openai.FunctionDefinition{
	{
		Name:        ActionParseExpense,
		Description: "Parse a natural language expense entry into structured fields.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date": map[string]any{
					"type":        "string",
					"description": "Date of the expense in ISO format (YYYY-MM-DD).",
				},
				"amount": map[string]any{
					"type":        "number",
					"description": "Monetary amount of the expense.",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "A brief description of the expense.",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Category of the expense, e.g., food, transportation.",
				},
			},
			"required": []string{"date", "amount", "description"},
		},
	},
	{
		Name:        ActionQueryExpenses,
		Description: "Query stored expenses using optional filters.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start_date": map[string]any{
					"type":        "string",
					"description": "Start date for filtering (ISO format YYYY-MM-DD).",
				},
				"end_date": map[string]any{
					"type":        "string",
					"description": "End date for filtering (ISO format YYYY-MM-DD).",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Category name to filter by.",
				},
			},
		},
	},
	{
		Name:        ActionSummarize,
		Description: "Summarize expenses over a period, optionally by granularity.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start_date": map[string]any{
					"type":        "string",
					"description": "Start date for summary (ISO format YYYY-MM-DD).",
				},
				"end_date": map[string]any{
					"type":        "string",
					"description": "End date for summary (ISO format YYYY-MM-DD).",
				},
				"granularity": map[string]any{
					"type":        "string",
					"enum":        []string{"daily", "weekly", "monthly"},
					"description": "Time granularity for the summary.",
				},
			},
		},
	},
	{
		Name:        ActionLastExpense,
		Description: "Get the most recent expense record, including participants if any.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        ActionSplitExpense,
		Description: "Compute the equal share for a participant in a given expense.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expense_id": map[string]any{
					"type":        "integer",
					"description": "ID of the expense to split.",
				},
				"participant": map[string]any{
					"type":        "string",
					"description": "Participant name or 'me' for yourself.",
				},
			},
			"required": []string{"expense_id"},
		},
	},
	{
		Name:        ActionMostExpensive,
		Description: "Get the expense record with the highest amount.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        ActionRunSQL,
		Description: "Run a read-only SQL SELECT query against the expenses table.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sql": map[string]any{
					"type":        "string",
					"description": "A SQL SELECT statement on the expense table.",
				},
			},
			"required": []string{"sql"},
		},
	},
}

// Client calls the OpenAI chat completion API with function calling enabled.
// It performs no retries and no caching; transport errors propagate as-is.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey, model, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

var _ Intents = (*Client)(nil)

// Classify sends the text through one chat completion with the fixed
// function menu and decodes the model's choice.
func (c *Client) Classify(ctx context.Context, text string) (*Intent, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Functions:    functionDefinitions,
		FunctionCall: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	message := resp.Choices[0].Message
	if message.FunctionCall == nil {
		return &Intent{Content: message.Content}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(message.FunctionCall.Arguments), &args); err != nil {
		slog.WarnContext(ctx, "Undecodable function arguments",
			"action", message.FunctionCall.Name,
			"error", err)
		return nil, fmt.Errorf("%w: decode %s arguments: %v",
			core.ErrMalformedIntent, message.FunctionCall.Name, err)
	}

	return &Intent{Action: message.FunctionCall.Name, Args: args}, nil
}

// ParseExpense classifies the text and fails unless the model selected
// parse_expense. Used by the direct create endpoint and the router's
// last-expense reinterpretation fallback.
func (c *Client) ParseExpense(ctx context.Context, text string) (map[string]any, error) {
	intent, err := c.Classify(ctx, text)
	if err != nil {
		return nil, err
	}
	if intent.Action != ActionParseExpense {
		return nil, fmt.Errorf("unexpected response from model: action=%q", intent.Action)
	}
	return intent.Args, nil
}
