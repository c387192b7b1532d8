// DeepSeek Provider.
//
// Information Hiding:
// - Uses the OpenAI-compatible API with a different base URL
// - JSON mode is passed through unchanged (deepseek-chat supports json_object)

package llm

// DeepSeekBaseURL is the OpenAI-compatible DeepSeek endpoint.
const DeepSeekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return NewOpenAICompatibleProvider("deepseek", apiKey, DeepSeekBaseURL, model, maxTokens, temperature)
}
