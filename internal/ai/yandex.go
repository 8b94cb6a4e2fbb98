package ai

import (
	"fmt"
	"strings"
)

// YandexGPTProvider speaks YandexGPT's OpenAI-compatible endpoint.
// Models are addressed by folder-qualified URI, e.g. gpt://<folder>/yandexgpt/latest.
type YandexGPTProvider struct {
	openAICompat
}

func NewYandexGPTProvider(baseURL, apiKey, folderID, model string) *YandexGPTProvider {
	if baseURL == "" {
		baseURL = "https://llm.api.cloud.yandex.net/v1"
	}
	if model == "" {
		model = "yandexgpt/latest"
	}
	if !strings.HasPrefix(model, "gpt://") && folderID != "" {
		model = fmt.Sprintf("gpt://%s/%s", folderID, model)
	}
	return &YandexGPTProvider{openAICompat{
		name:    "yandexgpt",
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  newCompatClient(),
	}}
}
