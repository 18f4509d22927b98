package gateway

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/chorus/internal/core"
)

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

// EstimateTokens counts prompt tokens with cl100k_base.
// Models differ in tokenizer, so this is only an estimate; without the
// encoding available it falls back to four characters per token.
func EstimateTokens(messages []core.Message) int {
	tkOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tk = enc
		}
	})

	total := 0
	for _, m := range messages {
		// role and separators
		total += 4
		if tk != nil {
			total += len(tk.Encode(m.Content, nil, nil))
			continue
		}
		total += len(m.Content) / 4
	}
	return total
}
