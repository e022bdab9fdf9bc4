package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jl-grey-man/smbintel"
	"google.golang.org/genai"
)

// MaxAdvisorClaims caps the accepted claims included in a review prompt.
const MaxAdvisorClaims = 50

// Thresholds used to annotate keyword performance in the review prompt.
const (
	underperformMinUses = 5
	underperformRate    = 0.05
	highPerformerRate   = 0.2
)

var _ smbintel.KeywordAdvisor = (*Advisor)(nil)

// AdvisorSystemPrompt describes the keyword review task.
const AdvisorSystemPrompt = `You maintain search keywords used to find Swedish small businesses talking about their problems.

Given verified signals and the current keyword list with its performance:
- Suggest 5-15 new Swedish keywords of 1-4 words in the language business owners use to describe pain, not industry jargon.
- Never suggest a keyword already in the current list.
- estimated_value is your estimate from 0 to 1 of how likely the keyword is to surface new signals.
- Suggest retiring keywords marked UNDERPERFORMING only when the signals give no reason to keep them.

Respond with ONLY the JSON, in this shape:
{"new_keywords": [{"keyword": "...", "reason": "...", "derived_from": "...", "estimated_value": 0.5}],
 "retire_candidates": [{"keyword": "...", "reason": "..."}]}`

// Advisor implements smbintel.KeywordAdvisor using Google Gemini.
type Advisor struct {
	client *genai.Client

	// Model defaults to DefaultModel.
	Model string
}

// NewAdvisor creates a new Advisor.
func NewAdvisor(client *genai.Client) *Advisor {
	return &Advisor{client: client, Model: DefaultModel}
}

// Propose asks the model to review keyword performance. The returned
// proposals are untrusted; the keyword manager sanitizes them.
func (a *Advisor) Propose(ctx context.Context, accepted []*smbintel.AcceptedClaim, cfg *smbintel.KeywordConfig) (*smbintel.Proposals, error) {
	if cfg == nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "keyword configuration required")
	}
	text, err := generate(ctx, a.client, a.Model, BuildAdvisorPrompt(accepted, cfg), AdvisorConfig())
	if err != nil {
		return nil, err
	}
	return ParseProposals(text)
}

// AdvisorConfig returns the GenerateContentConfig for review calls.
func AdvisorConfig() *genai.GenerateContentConfig {
	return buildConfig(AdvisorSystemPrompt)
}

// BuildAdvisorPrompt lists recent verified signals followed by every active
// keyword and its performance.
func BuildAdvisorPrompt(accepted []*smbintel.AcceptedClaim, cfg *smbintel.KeywordConfig) string {
	var sb strings.Builder

	sb.WriteString("VERIFIED SIGNALS:\n")
	n := 0
	for _, a := range accepted {
		if n == MaxAdvisorClaims {
			break
		}
		if a == nil || a.Claim == nil {
			continue
		}
		n++
		quote := a.Claim.Quote
		if r := []rune(quote); len(r) > 200 {
			quote = string(r[:200])
		}
		fmt.Fprintf(&sb, "- quote: %q\n", quote)
		if a.Claim.Problem != "" {
			fmt.Fprintf(&sb, "  problem: %s\n", a.Claim.Problem)
		}
		if a.Claim.Need != "" {
			fmt.Fprintf(&sb, "  need: %s\n", a.Claim.Need)
		}
	}
	if n == 0 {
		sb.WriteString("(none)\n")
	}

	sb.WriteString("\nCURRENT KEYWORDS:\n")
	for _, k := range cfg.Keywords {
		if !k.Active {
			continue
		}
		fmt.Fprintf(&sb, "- %s [%s] uses=%d hits=%d hit_rate=%.2f", k.Term, k.Pool, k.Uses, k.Hits, k.HitRate())
		switch {
		case k.Uses >= underperformMinUses && k.HitRate() < underperformRate:
			sb.WriteString(" UNDERPERFORMING")
		case k.HitRate() > highPerformerRate:
			sb.WriteString(" HIGH PERFORMER")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

type advisorResponse struct {
	NewKeywords []struct {
		Keyword        string  `json:"keyword"`
		Reason         string  `json:"reason"`
		DerivedFrom    string  `json:"derived_from"`
		EstimatedValue float64 `json:"estimated_value"`
	} `json:"new_keywords"`
	RetireCandidates []struct {
		Keyword string `json:"keyword"`
		Reason  string `json:"reason"`
	} `json:"retire_candidates"`
}

// ParseProposals converts a review response into proposals. Entries with a
// blank keyword are skipped.
func ParseProposals(text string) (*smbintel.Proposals, error) {
	obj, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var resp advisorResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "malformed model response: %v", err)
	}

	out := &smbintel.Proposals{}
	for _, nk := range resp.NewKeywords {
		if strings.TrimSpace(nk.Keyword) == "" {
			continue
		}
		rationale := nk.Reason
		if nk.DerivedFrom != "" {
			rationale = fmt.Sprintf("%s (from: %s)", nk.Reason, nk.DerivedFrom)
		}
		out.Add = append(out.Add, smbintel.AddProposal{
			Term:           nk.Keyword,
			Rationale:      rationale,
			EstimatedValue: nk.EstimatedValue,
		})
	}
	for _, rc := range resp.RetireCandidates {
		if strings.TrimSpace(rc.Keyword) == "" {
			continue
		}
		out.Retire = append(out.Retire, smbintel.RetireProposal{Term: rc.Keyword, Rationale: rc.Reason})
	}
	return out, nil
}
