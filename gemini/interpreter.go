package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jl-grey-man/smbintel"
	"google.golang.org/genai"
)

// MaxPromptText caps the page text sent to the model, in runes.
const MaxPromptText = 8000

var _ smbintel.Interpreter = (*Interpreter)(nil)

// InterpretSystemPrompt instructs the model to extract only signals that are
// literally present in the page text.
const InterpretSystemPrompt = `You extract business signals from Swedish web pages.

Rules:
- Extract ONLY what is literally written in the text. Never infer, guess or complete missing facts.
- original_quote must be copied verbatim from the text, character for character.
- If a field is not stated in the text, use null.
- signal_type describes the kind of source and is one of: job_posting, social_post, news_mention, forum_post, company_data.
- employee_count is an integer or null. Never write a range or a word.
- If the page contains no signals, return {"signals": [], "reason": "<short reason>"}.

Respond with ONLY the JSON, in this shape:
{"signals": [{
  "signal_type": "...",
  "person": {"name": null, "title": null, "company": null},
  "company": {"name": null, "industry": null, "employee_count": null},
  "content": {
    "original_quote": "...",
    "topic_tags": [],
    "expressed_problem": null,
    "expressed_need": null,
    "ai_awareness": null
  }
}]}`

// Interpreter implements smbintel.Interpreter using Google Gemini.
type Interpreter struct {
	client *genai.Client

	// Model defaults to DefaultModel.
	Model string
}

// NewInterpreter creates a new Interpreter.
func NewInterpreter(client *genai.Client) *Interpreter {
	return &Interpreter{client: client, Model: DefaultModel}
}

// Interpret asks the model for raw signals found in the record's text.
// Returns EINVALID when the response cannot be parsed at all.
func (i *Interpreter) Interpret(ctx context.Context, rec *smbintel.CrawlRecord) ([]json.RawMessage, error) {
	if rec == nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "record required")
	}
	text, err := generate(ctx, i.client, i.Model, BuildInterpretPrompt(rec), InterpretConfig())
	if err != nil {
		return nil, err
	}
	return ParseSignals(text)
}

// InterpretConfig returns the GenerateContentConfig for interpretation calls.
func InterpretConfig() *genai.GenerateContentConfig {
	return buildConfig(InterpretSystemPrompt)
}

// BuildInterpretPrompt builds the user prompt for one crawl record.
func BuildInterpretPrompt(rec *smbintel.CrawlRecord) string {
	text := rec.RawText
	if r := []rune(text); len(r) > MaxPromptText {
		text = string(r[:MaxPromptText])
	}

	var sb strings.Builder
	sb.WriteString("SOURCE METADATA:\n")
	fmt.Fprintf(&sb, "URL: %s\n", rec.SourceURL)
	fmt.Fprintf(&sb, "Title: %s\n", rec.Title)
	fmt.Fprintf(&sb, "Found via query: %s\n", rec.Provenance.Term)
	fmt.Fprintf(&sb, "Source hash: %s\n\n", rec.Fingerprint)
	sb.WriteString("RAW TEXT:\n")
	sb.WriteString(text)
	return sb.String()
}

// ParseSignals returns the entries of the response's "signals" array
// without interpreting them.
func ParseSignals(text string) ([]json.RawMessage, error) {
	obj, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Signals []json.RawMessage `json:"signals"`
	}
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "malformed model response: %v", err)
	}
	return resp.Signals, nil
}
