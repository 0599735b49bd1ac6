/*
Package llm wraps the OpenRouter chat-completions API. It supports
single-shot completions for cheap classification and extraction calls,
and server-sent-event streaming for the user-facing reply.
*/
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "mistralai/mistral-small-3.2-24b-instruct:free"

	// Single-shot calls only ever produce a few tokens.
	completeTimeout = 15 * time.Second
	// Streaming replies can take a while end to end.
	streamTimeout = 120 * time.Second

	// maxErrorBody limits how much of an error response body is read.
	maxErrorBody = 1 << 20
)

// User-facing degradation chunks. Streaming failures never surface as
// errors to the end user, only as one of these.
const (
	connectApology = "\n[Sorry, I'm having trouble connecting right now. Please try again.]\n"
	timeoutApology = "\n[Request timed out. Please try again with a shorter message.]\n"
	generalApology = "\n[An error occurred. Please try again.]\n"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to an OpenRouter-compatible completion endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	referer string
	title   string

	client       *http.Client
	streamClient *http.Client
}

// NewClient reads OPENROUTER_API_KEY, OPENROUTER_MODEL and
// OPENROUTER_BASE_URL from the environment.
func NewClient() *Client {
	baseURL := os.Getenv("OPENROUTER_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := os.Getenv("OPENROUTER_MODEL")
	if model == "" {
		model = defaultModel
	}
	referer := os.Getenv("APP_URL")
	if referer == "" {
		referer = "http://localhost:8080"
	}
	title := os.Getenv("AGENT_NAME")
	if title == "" {
		title = "Fitness Coach Agent"
	}

	return &Client{
		baseURL:      baseURL,
		apiKey:       os.Getenv("OPENROUTER_API_KEY"),
		model:        model,
		referer:      referer,
		title:        title,
		client:       &http.Client{Timeout: completeTimeout},
		streamClient: &http.Client{Timeout: streamTimeout},
	}
}

// NewClientWith builds a client against an explicit endpoint. Used by
// tests.
func NewClientWith(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		model:        model,
		referer:      "http://localhost:8080",
		title:        "Fitness Coach Agent",
		client:       &http.Client{Timeout: completeTimeout},
		streamClient: &http.Client{Timeout: streamTimeout},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}

// Complete performs a single-shot chat completion. Remote failures
// come back as errors so callers can decide how to degrade.
func (c *Client) Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("completion API error (status %d): %s", resp.StatusCode, string(errBody))
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("completion response contained no choices")
	}
	return payload.Choices[0].Message.Content, nil
}

// StreamCompletion streams a chat completion, handing each content
// chunk to emit as it arrives and returning the accumulated full text.
//
// Remote failures degrade to a single apology chunk and a nil error;
// the only non-nil errors are emit failures and cancellation of the
// caller's context, which mean the consumer is gone and the stream was
// abandoned.
func (c *Client) StreamCompletion(ctx context.Context, messages []Message, emit func(chunk string) error) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   2000,
		Stream:      true,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal streaming request")
		return c.degrade(emit, generalApology)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create streaming request")
		return c.degrade(emit, generalApology)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Error().Err(err).Msg("Streaming request failed")
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return c.degrade(emit, timeoutApology)
		}
		return c.degrade(emit, connectApology)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Error().Int("status", resp.StatusCode).Str("body", string(errBody)).Msg("Completion API rejected streaming request")
		return c.degrade(emit, connectApology)
	}

	var full strings.Builder
	reader := bufio.NewReader(resp.Body)

	for {
		select {
		case <-ctx.Done():
			return full.String(), ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return full.String(), nil
			}
			if ctx.Err() != nil {
				return full.String(), ctx.Err()
			}
			log.Error().Err(err).Msg("Stream read failed mid-response")
			apology := generalApology
			if isTimeout(err) {
				apology = timeoutApology
			}
			if derr := emit(apology); derr != nil {
				return full.String(), derr
			}
			full.WriteString(apology)
			return full.String(), nil
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return full.String(), nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// A single corrupt line must not abort an otherwise good stream.
			log.Debug().Err(err).Msg("Skipping malformed stream chunk")
			continue
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := emit(content); err != nil {
				return full.String(), err
			}
			full.WriteString(content)
		}
		if chunk.Choices[0].FinishReason != "" {
			return full.String(), nil
		}
	}
}

// degrade delivers a single user-facing apology chunk in place of a
// streamed reply.
func (c *Client) degrade(emit func(string) error, apology string) (string, error) {
	if err := emit(apology); err != nil {
		return "", err
	}
	return apology, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

const extractionPrompt = `You are a food query extractor. Extract ONLY the food items and quantities from user questions.

Examples:
- "How many calories in 3 eggs?" -> "3 eggs"
- "What's the nutrition for chicken breast and rice?" -> "chicken breast and rice"
- "I ate 2 apples today" -> "2 apples"
- "100g of salmon" -> "100g salmon"
- "Tell me about 3 eggs and oatmeal" -> "3 eggs and oatmeal"

Return ONLY the food items with quantities, nothing else. No questions, no extra words.`

// ExtractFoodQuery reduces a user question to just its food items and
// quantities. Any failure falls back to the original message so the
// nutrition pipeline is never blocked.
func (c *Client) ExtractFoodQuery(ctx context.Context, message string) string {
	messages := []Message{
		{Role: RoleSystem, Content: extractionPrompt},
		{Role: RoleUser, Content: message},
	}

	extracted, err := c.Complete(ctx, messages, 50, 0.1)
	if err != nil {
		log.Warn().Err(err).Msg("Food query extraction failed, using original message")
		return message
	}

	extracted = strings.Trim(strings.TrimSpace(extracted), `"`)
	if extracted == "" {
		return message
	}

	log.Info().Str("original", message).Str("extracted", extracted).Msg("Extracted food query")
	return extracted
}
