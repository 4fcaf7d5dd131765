package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mimi-labs/voicestream/src/logger"
	"github.com/mimi-labs/voicestream/src/services"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash-lite"
	defaultTimeout = 10 * time.Second
)

// classifierPrompt instructs the model to answer with a single JSON
// intent record the intent parser can extract.
const classifierPrompt = `You are Mimi, a food menu assistant. Classify the user's latest request into exactly one JSON object and nothing else.

Fields:
- "intent": one of "filter_food", "get_food_by_name", "general_query", "vague_query"
- for filter_food, any of: "spicy" (bool), "vegetarian" (bool), "type" (string), "maxCalories" (int), "maxPrice" (number)
- for get_food_by_name: "name" (string, the dish the user named)

Use "vague_query" when the request is unclear or mispronounced. Respond with the JSON object only.`

// Responder classifies conversation context with a Gemini text model
// and composes the spoken summary from the menu catalog.
type Responder struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	client  *http.Client
	menu    *services.Menu
	log     *logger.Logger
}

// Config holds configuration for the Gemini classifier.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string        // defaults to the public Generative Language endpoint
	Timeout time.Duration // per-call deadline, defaults to 10s
}

func NewResponder(cfg Config, menu *services.Menu) *Responder {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Responder{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		client:  &http.Client{},
		menu:    menu,
		log:     logger.WithPrefix("GeminiResponder"),
	}
}

// Respond classifies contextBlock into filters and composes the reply
// summary. The call is bounded by the configured timeout on top of
// whatever deadline ctx already carries.
func (r *Responder) Respond(ctx context.Context, contextBlock, message string) (services.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.generate(ctx, contextBlock)
	if err != nil {
		return services.Reply{}, fmt.Errorf("classify turn: %w", err)
	}

	filters, err := services.ParseIntent(text)
	if err != nil {
		r.log.Warn("Unparseable model response (%d chars): %v", len(text), err)
		return services.Reply{}, fmt.Errorf("classify turn: %w", err)
	}

	summary, items := services.ComposeSummary(r.menu, filters, message)
	r.log.Debug("Intent %q resolved %d items", filters.Intent, len(items))

	return services.Reply{Filters: filters, Summary: summary, Items: items}, nil
}

func (r *Responder) generate(ctx context.Context, input string) (string, error) {
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": input}}},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "text/plain",
		},
		"systemInstruction": map[string]interface{}{
			"parts": []map[string]string{{"text": classifierPrompt}},
		},
	}

	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", r.baseURL, r.model, r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini API error: %s", string(body))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no text response received")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
