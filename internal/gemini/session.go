package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// session is the decoded form of a continuation token: the prior
// exchange with the model, replayed as chat history on refinement. The
// rest of the system treats the token as an opaque string.
type session struct {
	Turns []turn `json:"turns"`
}

type turn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

func (s session) history() []*genai.Content {
	if len(s.Turns) == 0 {
		return nil
	}
	history := make([]*genai.Content, 0, len(s.Turns))
	for _, t := range s.Turns {
		history = append(history, &genai.Content{
			Role:  t.Role,
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}
	return history
}

func decodeSession(token string) (session, error) {
	var s session
	if token == "" {
		return s, nil
	}

	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return s, fmt.Errorf("failed to decode token: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return s, nil
}

func encodeSession(s session) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
