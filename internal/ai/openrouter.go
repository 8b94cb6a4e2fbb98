package ai

import "net/http"

// OpenRouterProvider speaks OpenRouter's OpenAI-compatible API.
type OpenRouterProvider struct {
	openAICompat
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{openAICompat{
		name:    "openrouter",
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  newCompatClient(),
		header: func(h http.Header) {
			if siteURL != "" {
				h.Set("HTTP-Referer", siteURL)
			}
			if appName != "" {
				h.Set("X-Title", appName)
			}
		},
	}}
}
