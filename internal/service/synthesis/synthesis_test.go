package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInvoker struct {
	out   string
	err   error
	msgs  [][]core.Message
	tasks []core.Task
}

func (s *stubInvoker) Invoke(ctx context.Context, task core.Task, msgs []core.Message) (string, error) {
	s.msgs = append(s.msgs, msgs)
	s.tasks = append(s.tasks, task)
	return s.out, s.err
}

func facts(refs ...int) []core.Facts {
	out := make([]core.Facts, len(refs))
	for i, r := range refs {
		out[i] = core.Facts{
			Candidate: core.Candidate{Ref: r, URL: "https://s" + string(rune('0'+r)) + ".com", Title: "Source"},
			Content:   "- fact",
		}
	}
	return out
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		in      Input
		want    Output
		wantErr bool
	}{
		{
			name: "used sources tag wins",
			raw:  "<think>plan</think>Revenue rose [1][2].\n<used_sources>1, 3, 9</used_sources>",
			in:   Input{Mode: ModeRetrieval, Facts: facts(1, 2, 3)},
			want: Output{Answer: "Revenue rose [1][2].", Reasoning: "plan", UsedRefs: []int{1, 3}},
		},
		{
			name: "inline markers",
			raw:  "Revenue rose [3], margins too [1] [3].",
			in:   Input{Mode: ModeRetrieval, Facts: facts(1, 2, 3)},
			want: Output{Answer: "Revenue rose [3], margins too [1] [3].", UsedRefs: []int{1, 3}},
		},
		{
			name: "no markers means all supplied",
			raw:  "Revenue rose.",
			in:   Input{Mode: ModeRetrieval, Facts: facts(2, 4)},
			want: Output{Answer: "Revenue rose.", UsedRefs: []int{2, 4}},
		},
		{
			name: "empty used sources cites nothing",
			raw:  "I could not find this in the sources [1].\n<used_sources></used_sources>",
			in:   Input{Mode: ModeRetrieval, Facts: facts(1, 2, 3)},
			want: Output{Answer: "I could not find this in the sources [1]."},
		},
		{
			name: "used sources none cites nothing",
			raw:  "I could not find this in the sources.\n<used_sources>none</used_sources>",
			in:   Input{Mode: ModeRetrieval, Facts: facts(1, 2, 3)},
			want: Output{Answer: "I could not find this in the sources."},
		},
		{
			name: "conversational has no refs",
			raw:  "Hello there [1].",
			in:   Input{Mode: ModeConversational},
			want: Output{Answer: "Hello there [1]."},
		},
		{
			name: "augment honored",
			raw:  "Partial answer.\n<additional_search><query> nvidia  guidance </query></additional_search>",
			in:   Input{Mode: ModeRetrieval, Facts: facts(1), AllowAugment: true},
			want: Output{Answer: "Partial answer.", UsedRefs: []int{1}, Augment: "nvidia guidance"},
		},
		{
			name: "augment stripped when not allowed",
			raw:  "Partial answer.<additional_search><query>more</query></additional_search>",
			in:   Input{Mode: ModeRetrieval, Facts: facts(1)},
			want: Output{Answer: "Partial answer.", UsedRefs: []int{1}},
		},
		{
			name: "augment only",
			raw:  "<additional_search><query>more data</query></additional_search>",
			in:   Input{Mode: ModeRetrieval, Facts: facts(1), AllowAugment: true},
			want: Output{Augment: "more data", UsedRefs: []int{1}},
		},
		{
			name:    "empty after stripping",
			raw:     "<think>...</think><used_sources>1</used_sources>",
			in:      Input{Mode: ModeRetrieval, Facts: facts(1)},
			wantErr: true,
		},
		{
			name:    "augment only but not allowed",
			raw:     "<additional_search><query>more data</query></additional_search>",
			in:      Input{Mode: ModeRetrieval, Facts: facts(1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutput(tt.raw, tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, core.ErrParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSynthesizer_PromptPerMode(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC) }
	prompts := config.DefaultPrompts()

	tests := []struct {
		mode       Mode
		wantSystem string
		wantSource bool
	}{
		{mode: ModeRetrieval, wantSystem: "numbered sources", wantSource: true},
		{mode: ModeConversational, wantSystem: "continuing a conversation"},
		{mode: ModeFallback, wantSystem: "returned nothing usable"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			llm := &stubInvoker{out: "answer"}
			s := New(llm, prompts).WithClock(clock)

			_, err := s.Synthesize(context.Background(), Input{
				Query: "what now?",
				Mode:  tt.mode,
				Facts: facts(1),
				Note:  "extra note",
			})
			require.NoError(t, err)

			require.Len(t, llm.msgs, 1)
			assert.Equal(t, core.TaskSynthesize, llm.tasks[0])
			system, user := llm.msgs[0][0].Content, llm.msgs[0][1].Content
			assert.Contains(t, system, tt.wantSystem)
			assert.Contains(t, system, "Monday, June 1, 2026")
			assert.Equal(t, tt.wantSource, strings.Contains(user, `<source ref="1"`))
			assert.Contains(t, user, "extra note")
			assert.True(t, strings.HasSuffix(user, "Question: what now?"))
		})
	}
}

func TestSummarizer(t *testing.T) {
	cites := []core.Citation{{Ref: 1, Title: "Reuters", URL: "https://reuters.com/x"}}

	t.Run("model summary", func(t *testing.T) {
		llm := &stubInvoker{out: "<think>x</think>The user asked about revenue. The assistant cited Reuters."}
		got := NewSummarizer(llm, config.DefaultPrompts()).Summarize(context.Background(), "q", "a [1]", cites)
		assert.Equal(t, "The user asked about revenue. The assistant cited Reuters.", got)
		assert.Contains(t, llm.msgs[0][1].Content, "Reuters (https://reuters.com/x)")
	})

	t.Run("fallback on error", func(t *testing.T) {
		llm := &stubInvoker{err: core.ErrTimeout}
		got := NewSummarizer(llm, config.DefaultPrompts()).Summarize(context.Background(), "rev?", "a", cites)
		assert.Equal(t, "Responded to the user query: 'rev?' using sources: Reuters.", got)
	})

	t.Run("no sources skips the model", func(t *testing.T) {
		llm := &stubInvoker{}
		got := NewSummarizer(llm, config.DefaultPrompts()).Summarize(context.Background(), "hi", "<think>x</think>Hello!", nil)
		assert.Equal(t, "Hello!", got)
		assert.Empty(t, llm.msgs)
	})
}

func TestDirectSummary(t *testing.T) {
	assert.Equal(t, "answer", DirectSummary("q", "answer<used_sources>1</used_sources>"))
	assert.Equal(t, "Could not find a relevant answer for the query: 'q'", DirectSummary("q", "  "))
	assert.Equal(t, "Could not find a relevant answer for the query: 'q'", DirectSummary("q", "<think>the user wants X"))
}

func TestRenderDisplay(t *testing.T) {
	assert.Equal(t, "plain", RenderDisplay(" plain ", nil))

	got := RenderDisplay("Answer [2].", []core.Citation{
		{Ref: 2, Title: "Two", URL: "https://two.com", Published: "2026-01-01"},
		{Ref: 5, URL: "https://five.com"},
	})
	assert.Equal(t, "Answer [2].\n\n**Sources**\n2. [Two](https://two.com) (2026-01-01)\n5. [https://five.com](https://five.com)", got)
}

func TestTitler(t *testing.T) {
	got := NewTitler(&stubInvoker{out: "\"Nvidia Quarterly Earnings.\"\nextra"}, config.DefaultPrompts()).Title(context.Background(), "msg")
	assert.Equal(t, "Nvidia Quarterly Earnings", got)

	got = NewTitler(&stubInvoker{err: core.ErrTimeout}, config.DefaultPrompts()).Title(context.Background(), "what were   nvidia's earnings last quarter?")
	assert.Equal(t, "what were nvidia's earnings la...", got)

	assert.Equal(t, "short", FallbackTitle("short"))
}
