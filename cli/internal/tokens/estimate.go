// Package tokens estimates prompt sizes for trace diagnostics. The bytes/4
// heuristic tracks typical tokenizer output closely enough for rough budget
// reporting; exact counts would need the model's own tokenizer.
package tokens

// bytesPerToken is the divisor for the estimator (roughly 4 bytes per token
// for English text and code).
const bytesPerToken = 4

// Estimate returns the approximate token count of text, rounding up so any
// non-empty input costs at least one token.
func Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + bytesPerToken - 1) / bytesPerToken
}
