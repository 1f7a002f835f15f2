package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"terratruce-gateway/internal/upstream"
	"terratruce-gateway/pkg/logging/logging"
)

// GeminiClient talks to the generateContent API and reads the
// {"candidates":[{"content":{"parts":[{"text":...}]}}]} envelope.
type GeminiClient struct {
	gw     *upstream.Gateway
	path   string // fixed path, used in proxy mode
	logger *zap.Logger
}

// NewGeminiClient wraps gw. With an empty path the request goes to
// /v1beta/models/{model}:generateContent; a proxy passes its own route.
func NewGeminiClient(gw *upstream.Gateway, path string, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		gw:     gw,
		path:   path,
		logger: logger.Named("gemini"),
	}
}

// GeneratePath returns the direct-mode route for model.
func GeneratePath(model string) string {
	return "/v1beta/models/" + model + ":generateContent"
}

// Generate sends req and returns the text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	start := time.Now()
	logger := logging.Or(ctx, c.logger)

	if req == nil {
		return "", fmt.Errorf("gemini: request is nil")
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("gemini: invalid request: %w", err)
	}

	path := c.path
	if path == "" {
		path = GeneratePath(req.Model)
	}

	raw, err := c.gw.PostJSON(ctx, path, geminiRequest{
		Contents: req.Contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:      req.Temperature,
			MaxOutputTokens:  req.MaxOutputTokens,
			ResponseMIMEType: req.ResponseMIMEType,
		},
	})
	if err != nil {
		return "", err
	}

	var gResp geminiResponse
	if err := json.Unmarshal(raw, &gResp); err != nil {
		return "", fmt.Errorf("gemini: decode upstream response: %w", err)
	}

	if len(gResp.Candidates) == 0 {
		logger.Warn("gemini returned no candidates", zap.String("model", req.Model))
		return "", ErrEmptyContent
	}

	var sb strings.Builder
	for _, p := range gResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}

	fields := []zap.Field{
		zap.String("model", req.Model),
		zap.String("finish_reason", gResp.Candidates[0].FinishReason),
		zap.Duration("duration", time.Since(start)),
	}
	if gResp.UsageMetadata != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", gResp.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", gResp.UsageMetadata.CandidatesTokenCount),
		)
	}
	logger.Info("gemini request completed", fields...)

	return text, nil
}
