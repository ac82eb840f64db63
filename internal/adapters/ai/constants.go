package ai

// ProviderName identifies a completion backend
type ProviderName string

const (
	ProviderNameOpenAI   ProviderName = "openai"
	ProviderNameDeepSeek ProviderName = "deepseek"
	ProviderNameGoogle   ProviderName = "google"

	// ProviderNameStatic is the offline fallback used when no API key is configured.
	ProviderNameStatic ProviderName = "static"
)

func (p ProviderName) String() string {
	return string(p)
}

// IsValid checks if the provider name is supported
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameOpenAI, ProviderNameDeepSeek, ProviderNameGoogle, ProviderNameStatic:
		return true
	default:
		return false
	}
}

// Default models per provider, used when AI_MODEL is empty.
const (
	ModelGPT4oMini    = "gpt-4o-mini"
	ModelDeepSeekChat = "deepseek-chat"
	ModelGeminiFlash  = "gemini-2.5-flash"
)

const deepSeekBaseURL = "https://api.deepseek.com/v1"

func defaultModel(p ProviderName) string {
	switch p {
	case ProviderNameDeepSeek:
		return ModelDeepSeekChat
	case ProviderNameGoogle:
		return ModelGeminiFlash
	default:
		return ModelGPT4oMini
	}
}
