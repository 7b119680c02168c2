package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type shape struct {
		A string `json:"a"`
		B int    `json:"b"`
	}

	tests := []struct {
		name    string
		in      string
		want    shape
		wantErr bool
	}{
		{name: "bare object", in: `{"a":"x","b":2}`, want: shape{"x", 2}},
		{name: "whitespace", in: "\n  {\"a\":\"x\"}  \n", want: shape{A: "x"}},
		{name: "json fence", in: "```json\n{\"a\":\"y\",\"b\":3}\n```", want: shape{"y", 3}},
		{name: "bare fence", in: "```\n{\"b\":4}\n```", want: shape{B: 4}},
		{name: "unknown fields ignored", in: `{"a":"z","extra":true}`, want: shape{A: "z"}},
		{name: "empty", in: "   ", wantErr: true},
		{name: "prose", in: "Here is the JSON: {\"a\":\"x\"}", wantErr: true},
		{name: "trailing data", in: `{"a":"x"} {"a":"y"}`, wantErr: true},
		{name: "wrong type", in: `{"b":"two"}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got shape
			err := DecodeJSON(tc.in, &got)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStripFence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x", StripFence("```sql\nx\n```"))
	assert.Equal(t, "plain", StripFence("  plain  "))
	assert.Equal(t, "```", StripFence("```"))
	assert.Equal(t, "a b\nc", StripFence("```\na b\nc\n```"))
}
