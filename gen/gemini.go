package gen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/arbelos-io/glean/types"
)

// GeminiConfig configures the Gemini-backed generator.
type GeminiConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the API base URL. Useful for proxies/testing.
	BaseURL string

	// RequestsPerSecond throttles outbound calls. Zero disables the
	// limiter.
	RequestsPerSecond float64
	// Burst is the limiter burst size; defaults to 1 when a rate is set.
	Burst int
}

// Gemini generates SQL and summaries through the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewGemini builds a generator from cfg.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	g := &Gemini{client: client, model: strings.TrimSpace(cfg.Model)}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g, nil
}

type sqlResponse struct {
	SQL string `json:"sql"`
}

var sqlSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"sql": {Type: genai.TypeString},
	},
	Required: []string{"sql"},
}

// GenerateSQL asks the model for exactly one SELECT statement, returned
// through a structured JSON response so markdown fences and commentary
// never reach the validator.
func (g *Gemini) GenerateSQL(ctx context.Context, req SQLRequest) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(buildSQLPrompt(req)),
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   sqlSchema,
		},
	)
	if err != nil {
		return "", classifyErr(err)
	}

	var parsed sqlResponse
	if err := json.Unmarshal([]byte(resp.Text()), &parsed); err != nil {
		return "", types.NewRunError(types.CodeGenerationUnavailable, "collaborator returned malformed structured output", err)
	}
	sql := strings.TrimSpace(parsed.SQL)
	if sql == "" {
		return "", types.NewRunError(types.CodeGenerationUnavailable, "collaborator returned an empty statement", nil)
	}
	return sql, nil
}

// Summarize returns one complete prose answer for the executed result.
func (g *Gemini) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(buildSummaryPrompt(req)),
		&genai.GenerateContentConfig{CandidateCount: 1},
	)
	if err != nil {
		return "", classifyErr(err)
	}
	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", types.NewRunError(types.CodeGenerationUnavailable, "collaborator returned an empty answer", nil)
	}
	return answer, nil
}

// SummarizeStream delivers the answer incrementally through fn.
func (g *Gemini) SummarizeStream(ctx context.Context, req SummaryRequest, fn ChunkFunc) error {
	if err := g.wait(ctx); err != nil {
		return err
	}

	for resp, err := range g.client.Models.GenerateContentStream(
		ctx,
		g.model,
		genai.Text(buildSummaryPrompt(req)),
		&genai.GenerateContentConfig{CandidateCount: 1},
	) {
		if err != nil {
			return classifyErr(err)
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gemini) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return types.NewRunError(types.CodeCancelled, "rate limiter wait aborted", err)
	}
	return nil
}

func buildSQLPrompt(req SQLRequest) string {
	var b strings.Builder
	b.WriteString("You translate questions into a single read-only SQL statement.\n\n")
	b.WriteString("Database structure:\n")
	b.WriteString(req.Schema.Describe())
	b.WriteString("\nRules:\n")
	b.WriteString("- Produce exactly one SELECT (or WITH ... SELECT) statement.\n")
	b.WriteString("- Never modify data. No INSERT, UPDATE, DELETE, DDL, or transaction control.\n")
	b.WriteString("- Only reference tables and columns listed above.\n")
	b.WriteString("- No trailing semicolon, no commentary.\n\n")
	if req.PriorSQL != "" {
		fmt.Fprintf(&b, "Your previous statement was rejected.\nStatement: %s\nReason: %s\nProduce a corrected statement.\n\n", req.PriorSQL, req.PriorRejection)
	}
	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	return b.String()
}

func buildSummaryPrompt(req SummaryRequest) string {
	var b strings.Builder
	b.WriteString("You summarize SQL query results as a direct answer to the question.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	fmt.Fprintf(&b, "Statement: %s\n", req.SQL)
	b.WriteString("Result:\n")
	writeResult(&b, req.Result)
	b.WriteString("\nAnswer concisely in plain prose. ")
	b.WriteString("Quote numbers exactly as they appear in the result. ")
	if req.Result.Truncated {
		b.WriteString("The result was truncated at the row cap; say so. ")
	}
	if req.Result.Empty() {
		b.WriteString("The result is empty; say that no matching data was found. ")
	}
	return b.String()
}

// writeResult renders the result compactly for the prompt. Large cell
// values are clipped so the prompt stays bounded even at the row cap.
func writeResult(b *strings.Builder, r *types.QueryResult) {
	const cellLimit = 120
	b.WriteString(strings.Join(r.Columns, " | "))
	b.WriteByte('\n')
	for _, row := range r.Rows {
		for i, v := range row {
			if i > 0 {
				b.WriteString(" | ")
			}
			cell := fmt.Sprintf("%v", v)
			if len(cell) > cellLimit {
				cell = cell[:cellLimit] + "..."
			}
			b.WriteString(cell)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "(%d rows", r.RowCount)
	if r.Truncated {
		b.WriteString(", truncated")
	}
	b.WriteString(")\n")
}

// classifyErr wraps transient API failures as retryable run errors so the
// pipeline will grant the single retry.
func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return types.NewRunError(types.CodeGenerationUnavailable, "collaborator temporarily unavailable", err)
		}
		return types.NewRunError(types.CodeGenerationUnavailable, "collaborator rejected request", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return types.NewRunError(types.CodeGenerationUnavailable, "collaborator timed out", err)
	}
	return types.NewRunError(types.CodeGenerationUnavailable, "collaborator call failed", err)
}

var (
	_ TextGenerator       = (*Gemini)(nil)
	_ StreamingSummarizer = (*Gemini)(nil)
)
