package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAPIURL = "https://api.openai.com/v1/images/generations"
	DefaultModel  = "dall-e-3"
	defaultSize   = "1024x1024"
)

var ErrNoImage = errors.New("image API returned no image")

// Config configures a Client. Empty APIURL and Model use the defaults.
type Config struct {
	APIKey  string
	APIURL  string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible image generation endpoint.
type Client struct {
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
	cache      Cache
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type generateResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// NewClient returns a Client. cache may be nil.
func NewClient(cfg Config, cache Cache) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiURL:     cfg.APIURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
	}
}

// Image returns a URL for a scene image of the vehicle, from the cache when
// the same vehicle and class were requested before.
func (c *Client) Image(ctx context.Context, vehicleMake, model, class string) (string, error) {
	key := cacheKey(vehicleMake, model, class)
	if c.cache != nil {
		if url, ok := c.cache.Get(ctx, key); ok {
			return url, nil
		}
	}

	url, err := c.generate(ctx, Prompt(vehicleMake, model, class))
	if err != nil {
		return "", err
	}
	if c.cache != nil {
		// cache write errors are not fatal
		_ = c.cache.Set(ctx, key, url)
	}
	return url, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, N: 1, Size: defaultSize})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("image API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode image response: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return "", ErrNoImage
	}
	return out.Data[0].URL, nil
}

func cacheKey(vehicleMake, model, class string) string {
	parts := []string{vehicleMake, model, class}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.Join(strings.Fields(p), " "))
	}
	return "scene:" + strings.Join(parts, "|")
}
