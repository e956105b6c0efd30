package captions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/Scriptzstarling/meme-Forge/config"
	"github.com/Scriptzstarling/meme-Forge/middleware"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const (
	// MaxCaptions is the number of captions requested and returned.
	MaxCaptions = 5
	// MaxWords is the longest caption kept.
	MaxWords = 12
)

// Structures for the OpenAI chat completion API

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
}

// CaptionRequest is the body of POST /api/captions.
type CaptionRequest struct {
	Tone         string   `json:"tone"`
	PrevCaptions []string `json:"prevCaptions"`
}

type CaptionResponse struct {
	Captions []string `json:"captions"`
}

// Proxy forwards caption requests to an OpenAI-compatible API.
type Proxy struct {
	cfg    config.OpenAI
	client *http.Client
}

func New(cfg config.OpenAI, client *http.Client) *Proxy {
	if cfg.APIKey == "" {
		logrus.Warn("OPENAI_API_KEY is not set. Caption generation will not work.")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Proxy{cfg: cfg, client: client}
}

// Prompt builds the instruction sent upstream.
func Prompt(tone string, prev []string) string {
	if tone == "" {
		tone = "Neutral"
	}
	return fmt.Sprintf(
		"Generate %d short, witty meme captions. Tone: %s. Avoid these captions: %s. "+
			"Make them under %d words each, creative, and engaging. Return only the captions in a numbered list.",
		MaxCaptions, tone, strings.Join(prev, ", "), MaxWords)
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+\s*[.)]|[-*•])\s*`)

// ParseCaptions turns a numbered or bulleted list into at most MaxCaptions
// captions, dropping blanks, excluded captions (case-insensitive) and
// captions longer than MaxWords words.
func ParseCaptions(text string, exclude []string) []string {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[normalize(e)] = true
	}

	captions := []string{}
	for _, line := range strings.Split(text, "\n") {
		c := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		c = trimQuotes(c)
		if c == "" || excluded[normalize(c)] || len(strings.Fields(c)) > MaxWords {
			continue
		}
		captions = append(captions, c)
		if len(captions) == MaxCaptions {
			break
		}
	}
	return captions
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(trimQuotes(strings.TrimSpace(s))))
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func (p *Proxy) HandleCaptions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		if p.cfg.APIKey == "" {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "OpenAI API key is not configured on the server"})
			return
		}

		var req CaptionRequest
		body, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
				return
			}
		}

		payload, err := json.Marshal(ChatCompletionRequest{
			Model:     p.cfg.Model,
			Messages:  []ChatMessage{{Role: "user", Content: Prompt(req.Tone, req.PrevCaptions)}},
			MaxTokens: p.cfg.MaxTokens,
		})
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Caption generation failed"})
			return
		}

		proxyURL := strings.TrimSuffix(p.cfg.BaseURL, "/") + "/v1/chat/completions"
		proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, proxyURL, bytes.NewReader(payload))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create proxy request"})
			return
		}
		proxyReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		proxyReq.Header.Set("Content-Type", "application/json")
		proxyReq.Header.Set("Accept", "application/json")

		log := logrus.WithField("userID", claims.Subject)
		resp, err := p.client.Do(proxyReq)
		if err != nil {
			log.WithField("error", err).Error("Failed to communicate with OpenAI API")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Caption generation failed"})
			return
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			log.WithField("error", err).Error("Failed to read OpenAI response")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Caption generation failed"})
			return
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			log.WithField("status", resp.StatusCode).Warn("OpenAI API returned an error")
			render.Status(r, resp.StatusCode)
			render.JSON(w, r, map[string]string{"error": string(respBody)})
			return
		}

		var completion ChatCompletionResponse
		if err := json.Unmarshal(respBody, &completion); err != nil {
			log.WithField("error", err).Error("Failed to parse OpenAI response")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Caption generation failed"})
			return
		}

		var text string
		if len(completion.Choices) > 0 {
			text = completion.Choices[0].Message.Content
		}
		render.JSON(w, r, CaptionResponse{Captions: ParseCaptions(text, req.PrevCaptions)})
	}
}
