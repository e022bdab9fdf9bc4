// Package gemini interprets crawled pages and reviews keyword performance
// with Google Gemini.
package gemini

import (
	"context"
	"regexp"
	"strings"

	"github.com/jl-grey-man/smbintel"
	"google.golang.org/genai"
)

// DefaultModel is used when a caller leaves Model empty.
const DefaultModel = "gemini-2.5-flash"

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// NewClient creates a Gemini API client for the given key.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, smbintel.Errorf(smbintel.EINVALID, "gemini API key required")
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func generate(ctx context.Context, client *genai.Client, model, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if model == "" {
		model = DefaultModel
	}
	result, err := client.Models.GenerateContent(ctx, model,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: prompt}},
		}},
		config,
	)
	if err != nil {
		return "", smbintel.Errorf(smbintel.EUNAVAILABLE, "gemini: %v", err)
	}
	if result == nil {
		return "", smbintel.Errorf(smbintel.EINTERNAL, "gemini returned nil result")
	}
	return result.Text(), nil
}

func buildConfig(system string) *genai.GenerateContentConfig {
	temp := float32(0)
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}
}

// ExtractJSON returns the JSON object inside a model response. Code fences
// are stripped first; if the remainder is still not a bare object the
// outermost braces are used. Returns EINVALID when no object is present.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s, nil
	}
	if m := jsonObject.FindString(s); m != "" {
		return m, nil
	}
	return "", smbintel.Errorf(smbintel.EINVALID, "no JSON object in model response")
}
