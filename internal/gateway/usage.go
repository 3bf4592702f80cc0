package gateway

import (
	"strings"
	"unicode"
)

// Token estimate weights. CJK ideographs run denser than alphabetic
// text, so they weigh more per character.
const (
	cjkTokenWeight   = 1.5
	wordTokenWeight  = 1.0
	otherTokenWeight = 0.5
)

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

func isAlphaWord(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) || isCJK(r) {
			return false
		}
	}
	return true
}

// EstimateTokens approximates the token count of text: CJK ideographs
// count 1.5 each, whitespace-delimited alphabetic words 1 each, and
// every remaining character 0.5. This is a best-effort estimate, not a
// tokenizer.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	var cjkCount, wordCount, wordChars, totalChars int

	for _, r := range text {
		totalChars++
		if isCJK(r) {
			cjkCount++
		}
	}

	for _, word := range strings.Fields(text) {
		if isAlphaWord(word) {
			wordCount++
			wordChars += len([]rune(word))
		}
	}

	otherChars := totalChars - cjkCount - wordChars
	if otherChars < 0 {
		otherChars = 0
	}

	estimate := float64(cjkCount)*cjkTokenWeight +
		float64(wordCount)*wordTokenWeight +
		float64(otherChars)*otherTokenWeight

	return int(estimate)
}

// EstimateUsage builds a usage block from the prompt messages and the
// completion text. Prompt and completion are estimated independently;
// the total is always their sum.
func EstimateUsage(prompt []Message, completion string) Usage {
	texts := make([]string, 0, len(prompt))
	for _, msg := range prompt {
		texts = append(texts, msg.Text())
	}

	promptTokens := EstimateTokens(strings.Join(texts, " "))
	completionTokens := EstimateTokens(completion)

	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}
