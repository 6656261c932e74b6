package replygen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

const (
	DefaultModel       = "gemini-1.5-flash-002"
	DefaultLocation    = "us-central1"
	maxOutputTokens    = 256
	defaultTemperature = 0.7
	defaultTopP        = 0.9
)

// VertexConfig configures a VertexGenerator
type VertexConfig struct {
	ProjectID string
	Location  string
	Model     string
	// CredentialsFile is a service account key; empty uses application default credentials
	CredentialsFile string
	Logger          *slog.Logger
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexGenerator generates replies with a Gemini model on Vertex AI
type VertexGenerator struct {
	model  contentGenerator
	client *genai.Client
	name   string
	logger *slog.Logger
}

func NewVertexGenerator(ctx context.Context, cfg VertexConfig) (*VertexGenerator, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("vertex project id is required")
	}
	if cfg.Location == "" {
		cfg.Location = DefaultLocation
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	configureModel(model)

	g := newVertexGenerator(model, cfg.Model, cfg.Logger)
	g.client = client
	return g, nil
}

func newVertexGenerator(model contentGenerator, name string, logger *slog.Logger) *VertexGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &VertexGenerator{
		model:  model,
		name:   name,
		logger: logger.With("component", "replygen", "model", name),
	}
}

// configureModel applies sampling limits and disables safety blocking, so
// replies to heated comments are not refused
func configureModel(model *genai.GenerativeModel) {
	model.SetMaxOutputTokens(maxOutputTokens)
	model.SetTemperature(defaultTemperature)
	model.SetTopP(defaultTopP)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
}

// GenerateReply returns the text of the first candidate
func (g *VertexGenerator) GenerateReply(ctx context.Context, commentText, postText string) (string, error) {
	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, genai.Text(BuildPrompt(commentText, postText)))
	generateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		generateCount.WithLabelValues("error").Inc()
		return "", fmt.Errorf("generate reply: %w", err)
	}

	reply := responseText(resp)
	if reply == "" {
		generateCount.WithLabelValues("empty").Inc()
		return "", ErrEmptyReply
	}
	generateCount.WithLabelValues("ok").Inc()
	g.logger.Debug("reply generated", "chars", len(reply), "duration", time.Since(start))
	return reply, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}

// Close releases the underlying client, if any
func (g *VertexGenerator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
