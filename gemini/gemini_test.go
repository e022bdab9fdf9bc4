package gemini_test

import (
	"testing"

	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"signals": []}`, `{"signals": []}`},
		{"fenced json", "```json\n{\"signals\": []}\n```", `{"signals": []}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding prose", "Here you go:\n{\"a\": {\"b\": 2}}\nThanks!", `{"a": {"b": 2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := gemini.ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no object is invalid", func(t *testing.T) {
		t.Parallel()
		_, err := gemini.ExtractJSON("I could not find anything.")
		assert.Equal(t, smbintel.EINVALID, smbintel.ErrorCode(err))
	})
}
