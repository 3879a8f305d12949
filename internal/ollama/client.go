package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultModel   = "gpt-oss:20b"
	DefaultTimeout = 360 * time.Second
)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// New creates a new Ollama client
func New(ollamaURL, model string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultModel
	}

	// Parse the base URL
	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	// Create client with the provided URL
	client := api.NewClient(baseURL, http.DefaultClient)

	return &Client{
		client:  client,
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

// GenerateResponse generates a response from the LLM
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	log.Printf("Ollama: Sending request to model %s (timeout: %v)", c.model, c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: new(bool), // false
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})

	if err != nil {
		log.Printf("Ollama: Generation failed: %v", err)
		return "", fmt.Errorf("generation failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	log.Printf("Ollama: Response received (%d chars)", len(result))
	return result, nil
}

// Classification is the agent's category opinion for a report.
type Classification struct {
	Categoria string  `json:"categoria"`
	Confianza float64 `json:"confianza"`
	Razon     string  `json:"razon"`
}

// VeracityOpinion is the agent's credibility read on a report.
type VeracityOpinion struct {
	Nivel     string  `json:"nivel_veracidad"`
	Confianza float64 `json:"confianza"`
	Factores  string  `json:"factores"`
}

// ClassifyReport asks the model to place the report in one of the given
// categories. Answers outside the set collapse to "otros" and the
// confidence is clamped to [0, 1].
func (c *Client) ClassifyReport(ctx context.Context, text string, categories []string) (*Classification, error) {
	prompt := fmt.Sprintf(`Clasifica la siguiente denuncia en una de estas categorías:
%s
Denuncia: "%s"

Responde SOLO con un JSON con este formato:
{"categoria": "categoria_elegida", "confianza": 0.85, "razon": "explicacion_breve"}`, bulletList(categories), text)

	response, err := c.GenerateResponse(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// Parse JSON response
	var result Classification

	// Try to find JSON object in response
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		jsonStr := response[start : end+1]
		if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
			return nil, fmt.Errorf("failed to parse classification JSON: %w", err)
		}
	} else {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	result.Categoria = strings.ToLower(strings.TrimSpace(result.Categoria))
	if !containsString(categories, result.Categoria) {
		result.Categoria = "otros"
	}

	// Ensure confidence is within bounds
	if result.Confianza < 0.0 {
		result.Confianza = 0.0
	}
	if result.Confianza > 1.0 {
		result.Confianza = 1.0
	}

	return &result, nil
}

var allowedVeracityLevels = map[string]bool{
	"ALTA":  true,
	"MEDIA": true,
	"BAJA":  true,
}

// AssessVeracity asks the model for a credibility read on the report.
// Unknown levels collapse to MEDIA and the confidence is clamped.
func (c *Client) AssessVeracity(ctx context.Context, text string) (*VeracityOpinion, error) {
	prompt := fmt.Sprintf(`Analiza la veracidad de esta denuncia considerando:
- Nivel de detalle
- Coherencia
- Especificidad

Denuncia: "%s"

Responde SOLO con JSON:
{"nivel_veracidad": "ALTA|MEDIA|BAJA", "confianza": 0.85, "factores": "explicacion"}`, text)

	response, err := c.GenerateResponse(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// Parse JSON response
	var result VeracityOpinion

	// Try to find JSON object in response
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		jsonStr := response[start : end+1]
		if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
			return nil, fmt.Errorf("failed to parse veracity JSON: %w", err)
		}
	} else {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	result.Nivel = strings.ToUpper(strings.TrimSpace(result.Nivel))
	if !allowedVeracityLevels[result.Nivel] {
		result.Nivel = "MEDIA"
	}

	// Ensure confidence is within bounds
	if result.Confianza < 0.0 {
		result.Confianza = 0.0
	}
	if result.Confianza > 1.0 {
		result.Confianza = 1.0
	}

	return &result, nil
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return b.String()
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
