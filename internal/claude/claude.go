package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"
)

// TaskSummary is the minimal task info sent for dependency inference.
type TaskSummary struct {
	ID          string   `json:"id"`
	Path        string   `json:"path"`
	Description string   `json:"description,omitempty"`
	Kind        string   `json:"kind"` // "leaf", "container" or "milestone"
	DependsOn   []string `json:"depends_on,omitempty"`
}

// DepEdge is a single inferred dependency.
type DepEdge struct {
	TaskID      string `json:"task_id"`       // task that waits
	DependsOnID string `json:"depends_on_id"` // task it waits for
	Target      string `json:"target"`        // "onend" or "onstart"
	Reason      string `json:"reason"`
}

// InferDepsResult holds the parsed model response.
type InferDepsResult struct {
	Edges   []DepEdge `json:"edges"`
	Summary string    `json:"summary"`
}

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY not set")

// Client wraps the Anthropic SDK.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewClient creates a client. apiKey defaults to ANTHROPIC_API_KEY env.
// model defaults to Claude Sonnet.
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	inner := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	m := anthropic.ModelClaudeSonnet4_5
	if model != "" {
		m = anthropic.Model(model)
	}

	return &Client{inner: inner, model: m}, nil
}

const inferDepsPrompt = `You are an experienced production coordinator for an animation and VFX studio. Given the task breakdown of a production, infer dependency edges between the tasks.

Rules:
- Only add a dependency when one task really needs the output of another (a rig needs the model, lighting needs the animation).
- Use "onend" when the waiting task needs the other one finished, "onstart" when it may begin once the other has started.
- Prefer fewer edges. Do not add transitive or speculative dependencies.
- Do not create cycles. Never link a task to one of its own ancestors or descendants.
- Skip edges that are already listed in depends_on.
- Only use task IDs from the provided list.

Return your answer as JSON with this exact structure:
{
  "edges": [
    {"task_id": "<task that waits>", "depends_on_id": "<task it waits for>", "target": "onend", "reason": "<short explanation>"}
  ],
  "summary": "<one paragraph summary of the dependency structure>"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here are the tasks:
`

// buildPrompt constructs the full prompt for dependency inference.
func buildPrompt(tasks []TaskSummary) (string, error) {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tasks: %w", err)
	}
	return inferDepsPrompt + string(data), nil
}

// InferDeps asks the model for dependency edges between tasks.
func (c *Client) InferDeps(ctx context.Context, tasks []TaskSummary) (*InferDepsResult, error) {
	prompt, err := buildPrompt(tasks)
	if err != nil {
		return nil, err
	}

	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(4096),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude API call: %w", err)
	}
	return ParseInferDeps(responseText(resp))
}

// ParseInferDeps reads an edges response. Edges missing either id are
// dropped, an empty target means "onend".
func ParseInferDeps(text string) (*InferDepsResult, error) {
	text = stripJSONFences(text)
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("parse claude response: invalid JSON\nraw: %s", text)
	}

	result := &InferDepsResult{Summary: gjson.Get(text, "summary").String()}
	gjson.Get(text, "edges").ForEach(func(_, item gjson.Result) bool {
		e := DepEdge{
			TaskID:      strings.TrimSpace(item.Get("task_id").String()),
			DependsOnID: strings.TrimSpace(item.Get("depends_on_id").String()),
			Target:      strings.ToLower(item.Get("target").String()),
			Reason:      item.Get("reason").String(),
		}
		if e.TaskID == "" || e.DependsOnID == "" {
			return true
		}
		if e.Target == "" {
			e.Target = "onend"
		}
		result.Edges = append(result.Edges, e)
		return true
	})
	return result, nil
}

const explainFailurePrompt = `You are a TaskJuggler expert helping a production coordinator.

You will receive the project file a scheduler generated and the error output tj3 printed while scheduling it.

Explain in plain words which tasks or resources cause the failure and what to change in the production data to fix it (for example a missing resource, an impossible fixed date, or a dependency that can not be met).
Refer to tasks by the ids in the file (Task_N). Keep it short: a few sentences, then a bullet list of fixes.
`

// ExplainSolverFailure sends a failed run's tjp and solver output to the
// model and returns a human-readable diagnosis.
func (c *Client) ExplainSolverFailure(ctx context.Context, tjp, stderr string) (string, error) {
	var userContent strings.Builder
	userContent.WriteString("## tj3 output\n\n```\n")
	userContent.WriteString(stderr)
	userContent.WriteString("\n```\n\n## Project file\n\n```\n")
	userContent.WriteString(tjp)
	userContent.WriteString("\n```\n")

	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(2048),
		System: []anthropic.TextBlockParam{
			{Text: explainFailurePrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userContent.String())),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}
	return strings.TrimSpace(responseText(resp)), nil
}

func responseText(resp *anthropic.Message) string {
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text
}

// stripJSONFences removes markdown code fences the model sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
