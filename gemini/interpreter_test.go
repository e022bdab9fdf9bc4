package gemini_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInterpretPrompt(t *testing.T) {
	t.Parallel()

	t.Run("includes source metadata", func(t *testing.T) {
		t.Parallel()

		rec := &smbintel.CrawlRecord{
			Fingerprint: "abc123",
			SourceURL:   "https://forum.example.se/t/1",
			Title:       "Bokföring tar all tid",
			Provenance:  smbintel.Provenance{Term: "bokföring tar tid", Pool: smbintel.PoolExploit},
			RawText:     "Vi lägger tio timmar i veckan på bokföring.",
		}

		got := gemini.BuildInterpretPrompt(rec)

		assert.Contains(t, got, "URL: https://forum.example.se/t/1")
		assert.Contains(t, got, "Title: Bokföring tar all tid")
		assert.Contains(t, got, "Found via query: bokföring tar tid")
		assert.Contains(t, got, "Source hash: abc123")
		assert.True(t, strings.HasSuffix(got, "RAW TEXT:\nVi lägger tio timmar i veckan på bokföring."))
	})

	t.Run("truncates long text by runes", func(t *testing.T) {
		t.Parallel()

		rec := &smbintel.CrawlRecord{RawText: strings.Repeat("ö", gemini.MaxPromptText+50)}

		got := gemini.BuildInterpretPrompt(rec)

		_, text, ok := strings.Cut(got, "RAW TEXT:\n")
		require.True(t, ok)
		assert.Equal(t, gemini.MaxPromptText, len([]rune(text)))
	})
}

func TestInterpretConfig(t *testing.T) {
	t.Parallel()

	cfg := gemini.InterpretConfig()

	require.NotNil(t, cfg.Temperature)
	assert.Zero(t, *cfg.Temperature)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Contains(t, cfg.SystemInstruction.Parts[0].Text, "original_quote")
}

func TestParseSignals(t *testing.T) {
	t.Parallel()

	t.Run("returns each signal raw", func(t *testing.T) {
		t.Parallel()

		text := "```json\n" + `{"signals": [{"signal_type": "problem"}, {"signal_type": "need", "extra": true}]}` + "\n```"

		got, err := gemini.ParseSignals(text)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.JSONEq(t, `{"signal_type": "problem"}`, string(got[0]))
		assert.JSONEq(t, `{"signal_type": "need", "extra": true}`, string(got[1]))
	})

	t.Run("empty signals with reason", func(t *testing.T) {
		t.Parallel()

		got, err := gemini.ParseSignals(`{"signals": [], "reason": "product page"}`)

		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unparseable response is invalid", func(t *testing.T) {
		t.Parallel()

		_, err := gemini.ParseSignals(`{"signals": [ {"signal_type": }`)

		assert.Equal(t, smbintel.EINVALID, smbintel.ErrorCode(err))
	})

	t.Run("prose only is invalid", func(t *testing.T) {
		t.Parallel()

		_, err := gemini.ParseSignals("Sorry, I cannot help with that.")

		assert.Equal(t, smbintel.EINVALID, smbintel.ErrorCode(err))
	})
}

func TestInterpreter_Interpret_RequiresRecord(t *testing.T) {
	t.Parallel()

	interp := gemini.NewInterpreter(nil) // nil client ok for this test

	_, err := interp.Interpret(context.Background(), nil)

	assert.Equal(t, smbintel.EINVALID, smbintel.ErrorCode(err))
}

func TestInterpretSystemPrompt(t *testing.T) {
	t.Parallel()

	for _, st := range []smbintel.SignalType{
		smbintel.SignalJobPosting,
		smbintel.SignalSocialPost,
		smbintel.SignalNewsMention,
		smbintel.SignalForumPost,
		smbintel.SignalCompanyData,
	} {
		assert.Contains(t, gemini.InterpretSystemPrompt, string(st))
	}
}
