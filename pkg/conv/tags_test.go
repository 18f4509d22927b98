package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTag(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		tag    string
		want   string
		wantOK bool
	}{
		{name: "simple", text: "x <topic> a b </topic> y", tag: "topic", want: "a b", wantOK: true},
		{name: "first of many", text: "<topic>a</topic><topic>b</topic>", tag: "topic", want: "a", wantOK: true},
		{name: "case insensitive", text: "<Search_Type>news</SEARCH_TYPE>", tag: "search_type", want: "news", wantOK: true},
		{name: "multiline", text: "<structured_data>\n- a\n- b\n</structured_data>", tag: "structured_data", want: "- a\n- b", wantOK: true},
		{name: "attributes", text: `<source ref="2">body</source>`, tag: "source", want: "body", wantOK: true},
		{name: "empty body", text: "<pass></pass>", tag: "pass", want: "", wantOK: true},
		{name: "missing", text: "nothing here", tag: "topic", wantOK: false},
		{name: "unclosed", text: "<topic>never closed", tag: "topic", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Tag(tt.text, tt.tag)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTags(t *testing.T) {
	got := Tags("<topic> one </topic>\n<topic>two</topic>", "topic")
	assert.Equal(t, []string{"one", "two"}, got)
	assert.Empty(t, Tags("none", "topic"))
}

func TestStripTags(t *testing.T) {
	text := "<think>plan</think>\n\n\n\nAnswer [1].\n<used_sources>1</used_sources>"
	assert.Equal(t, "Answer [1].", StripTags(text, "think", "used_sources"))
}

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "closed block", text: "<think>hmm</think>Answer", want: "Answer"},
		{name: "missing opening tag", text: "hmm, let me see</think>\nAnswer", want: "Answer"},
		{name: "no reasoning", text: "Answer", want: "Answer"},
		{name: "never closed", text: "<think>the user wants X, I will search Y", want: ""},
		{name: "unclosed after answer", text: "Answer\n<THINK>cut off mid thought", want: "Answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripReasoning(tt.text))
		})
	}
}

func TestReasoning(t *testing.T) {
	assert.Equal(t, "hmm", Reasoning("<think> hmm </think>Answer"))
	assert.Equal(t, "partial", Reasoning("partial</think>Answer"))
	assert.Equal(t, "", Reasoning("Answer"))
	assert.Equal(t, "cut off", Reasoning("<think>cut off"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	// "é" is two bytes, the cut must not split it
	assert.Equal(t, "a...", Truncate("aé", 2))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}
