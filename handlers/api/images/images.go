package images

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Scriptzstarling/meme-Forge/config"
	"github.com/Scriptzstarling/meme-Forge/media"
	"github.com/go-chi/render"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"
)

// maxImageBytes bounds a generated image.
const maxImageBytes = 20 << 20

type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

type GenerateResponse struct {
	Image string `json:"image"`
}

// inferenceRequest is the Hugging Face text-to-image payload.
type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

// Generator proxies prompts to a Hugging Face text-to-image model.
type Generator struct {
	cfg      config.HuggingFace
	client   *http.Client
	maxBytes int64
}

func New(cfg config.HuggingFace, client *http.Client) *Generator {
	if cfg.APIKey == "" {
		logrus.Warn("HF_API_KEY is not set. Image generation will not work.")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Generator{cfg: cfg, client: client, maxBytes: maxImageBytes}
}

// DetectMIME returns the image type of data, image/png when unknown.
func DetectMIME(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || !strings.HasPrefix(kind.MIME.Value, "image/") {
		return "image/png"
	}
	return kind.MIME.Value
}

func (g *Generator) HandleGenerate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Prompt is required"})
			return
		}

		data, err := g.generate(r, req.Prompt)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"prompt": req.Prompt,
			}).Error("Error generating image")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Image generation failed"})
			return
		}

		render.JSON(w, r, GenerateResponse{Image: media.EncodeDataURL(DetectMIME(data), data)})
	}
}

func (g *Generator) generate(r *http.Request, prompt string) ([]byte, error) {
	payload, err := json.Marshal(inferenceRequest{Inputs: prompt})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, g.cfg.ModelURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if int64(len(body)) > g.maxBytes {
			body = body[:g.maxBytes]
		}
		return nil, &upstreamError{status: resp.StatusCode, body: string(body)}
	}
	if int64(len(body)) > g.maxBytes {
		return nil, fmt.Errorf("generated image larger than %d bytes", g.maxBytes)
	}
	return body, nil
}

type upstreamError struct {
	status int
	body   string
}

func (e *upstreamError) Error() string {
	return http.StatusText(e.status) + ": " + e.body
}
