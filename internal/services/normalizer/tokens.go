package normalizer

// charsPerToken holds per-model tokenizer ratios for estimation. Models not
// listed fall back to the 4-characters-per-token heuristic.
var charsPerToken = map[string]float64{
	"gpt-4o":       3.8,
	"gpt-4o-mini":  3.8,
	"o3":           3.8,
	"claude-3-5-sonnet-20241022": 3.5,
	"claude-opus-4":              3.5,
	"gemini-2.0-flash":           4.2,
}

const defaultCharsPerToken = 4.0

// EstimateTokens estimates a token count from raw text using the model's
// tokenizer ratio when known. Estimates are flagged on the metric so
// downstream consumers can discount their precision.
func EstimateTokens(text, modelID string) int64 {
	if text == "" {
		return 0
	}
	ratio, ok := charsPerToken[modelID]
	if !ok {
		ratio = defaultCharsPerToken
	}
	estimate := int64(float64(len(text)) / ratio)
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
