package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_DefaultRules(t *testing.T) {
	engine, err := NewEngine(DefaultRules())
	require.NoError(t, err)

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "german invoice",
			content: "Rechnung Nr. 2024-118\nBetrag: 89,50 EUR",
			want:    []string{"financial", "invoice"},
		},
		{
			name:    "tax office letter",
			content: "Ihr Finanzamt informiert über die Steuererklärung 2024.",
			want:    []string{"important", "tax"},
		},
		{
			name:    "utility bill hits two rules",
			content: "Invoice for electricity and water usage, Q3.",
			want:    []string{"electricity", "financial", "invoice", "utility", "water"},
		},
		{
			name:    "case insensitive",
			content: "KONTOAUSZUG Januar",
			want:    []string{"bank-statement", "financial"},
		},
		{
			name:    "no match",
			content: "Lorem ipsum dolor sit amet.",
			want:    nil,
		},
		{
			name:    "word boundary respected",
			content: "contractor agreement",
			want:    nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, engine.Match(tc.content))
		})
	}
}

func TestNewEngine_InvalidPattern(t *testing.T) {
	_, err := NewEngine([]Rule{{Pattern: `(unclosed`, Tags: []string{"x"}}})
	require.Error(t, err)
}

func TestLoadFile_AppendsToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `rules:
  - pattern: '\b(gehalt|salary)\b'
    tags: [payroll]
    case_insensitive: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rules, len(DefaultRules())+1)

	engine, err := NewEngine(rules)
	require.NoError(t, err)
	assert.Equal(t, []string{"payroll"}, engine.Match("Gehalt für August"))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
