package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandevgo/chorus/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPrompts_AllSectionsPresent(t *testing.T) {
	p := DefaultPrompts()

	for name, field := range p.fields() {
		assert.NotEmpty(t, string(*field), name)
	}
	assert.Contains(t, string(p.Planner), "{current_date}")
	assert.Contains(t, string(p.Validator), "<fail>")
}

func TestPrompt_Format(t *testing.T) {
	p := Prompt("Today is {current_date}, topics: {max_topics}. {unknown}")

	got := p.Format("current_date", "2026-10-19", "max_topics", "12")

	assert.Equal(t, "Today is 2026-10-19, topics: 12. {unknown}", got)
}

func TestParsePromptSections(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "two sections",
			input: "[--- PROMPT: TITLE ---]\nshort title\n\n[--- PROMPT: VALIDATOR ---]\n  judge it \n",
			want:  map[string]string{"TITLE": "short title", "VALIDATOR": "judge it"},
		},
		{
			name:    "no headers",
			input:   "just text",
			wantErr: true,
		},
		{
			name:    "duplicate header",
			input:   "[--- PROMPT: TITLE ---]\na\n[--- PROMPT: TITLE ---]\nb",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePromptSections(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadPrompts_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.txt")
	require.NoError(t, os.WriteFile(path, []byte("[--- PROMPT: TITLE ---]\nname it\n"), 0644))

	p, err := LoadPrompts(path)
	require.NoError(t, err)

	assert.Equal(t, Prompt("name it"), p.Title)
	assert.Equal(t, DefaultPrompts().Planner, p.Planner)
}

func TestLoadPrompts_RejectsUnknownSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.txt")
	require.NoError(t, os.WriteFile(path, []byte("[--- PROMPT: NARRATOR ---]\nhi\n"), 0644))

	_, err := LoadPrompts(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NARRATOR")
}

func TestDefaultRankingTable(t *testing.T) {
	table := DefaultRankingTable()

	assert.Equal(t, 1.0, table.Base)
	assert.Contains(t, table.Weights(core.SearchFinancial).Authority, "bloomberg.com")
	assert.Equal(t, 15.0, table.Weights(core.SearchHistorical).AuthorityBoost)
	assert.Empty(t, table.Weights(core.SearchGeneral).Authority)

	domains := table.AuthorityDomains(core.SearchHistorical, 0)
	assert.NotContains(t, domains, ".edu")
	assert.Len(t, table.AuthorityDomains(core.SearchNews, 3), 3)

	assert.Contains(t, table.RecencyWordsFor(core.SearchNews, 2026), "2026")
	assert.Contains(t, table.RecencyWordsFor(core.SearchHistorical, 2026), "breaking news")
}

func TestParseRankingTable_UnknownType(t *testing.T) {
	_, err := ParseRankingTable([]byte("types:\n  weather:\n    authority_boost: 1\n"))
	require.Error(t, err)
}

func TestPipelineConfig_Profiles(t *testing.T) {
	cfg := DefaultPipelineConfig()
	profiles := cfg.Profiles()

	assert.Equal(t, 90*time.Second, profiles[core.TaskValidate].Timeout)
	assert.Equal(t, 3, profiles[core.TaskValidate].MaxRetries)
	assert.Equal(t, 10*time.Minute, profiles[core.TaskSynthesize].Timeout)
	assert.Greater(t, profiles[core.TaskValidate].MaxRetries, profiles[core.TaskPlan].MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.RunTimeout)
}

func TestDefaultRetrievalConfig(t *testing.T) {
	cfg := DefaultRetrievalConfig()

	assert.Equal(t, 10, cfg.ScrapeTopN)
	assert.Equal(t, 5, cfg.MaxSourcesPerTopic)
	assert.Equal(t, 12000, cfg.MaxContentChars)
	assert.Equal(t, 200, cfg.MinContentChars)
}
