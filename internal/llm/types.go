package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// Gemini names the assistant side "model".
	RoleModel = "model"
)

// ErrEmptyContent is returned when a 2xx response carries no text.
var ErrEmptyContent = errors.New("llm: provider returned no content")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the OpenAI-style request used for risk analysis and
// address extraction.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

func (r *CompletionRequest) Validate() error {
	if r.Model == "" {
		return errors.New("model is required")
	}

	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}

	for i, m := range r.Messages {
		if m.Role != RoleSystem && m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("invalid role %q in messages[%d]", m.Role, i)
		}
		if m.Content == "" && m.Role != RoleSystem {
			return fmt.Errorf("content is required for messages[%d]", i)
		}
		if len(m.Content) > maxMessageSize {
			return fmt.Errorf("messages[%d] content too large (%d bytes, max %d)",
				i, len(m.Content), maxMessageSize)
		}
	}

	if r.Temperature < 0 || r.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}

	return nil
}

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// GenerateRequest is the Gemini generateContent request used for chat.
type GenerateRequest struct {
	Model            string
	Contents         []Content
	Temperature      float32
	MaxOutputTokens  int
	ResponseMIMEType string
}

func (r *GenerateRequest) Validate() error {
	if r.Model == "" {
		return errors.New("model is required")
	}
	if len(r.Contents) == 0 {
		return errors.New("at least one content entry is required")
	}
	for i, c := range r.Contents {
		if c.Role != RoleUser && c.Role != RoleModel {
			return fmt.Errorf("invalid role %q in contents[%d]", c.Role, i)
		}
		if len(c.Parts) == 0 {
			return fmt.Errorf("contents[%d] has no parts", i)
		}
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	return nil
}

// GeminiRole maps a chat history role to its Gemini equivalent. System
// messages have no Gemini role and map to "".
func GeminiRole(role string) string {
	switch role {
	case RoleAssistant, RoleModel:
		return RoleModel
	case RoleUser:
		return RoleUser
	default:
		return ""
	}
}

// Completer returns the text of the first choice.
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// Generator returns the text of the first candidate.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
}
