package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	VideoModel string
	HTTPClient *http.Client
	Logger     *infra.Logger

	// VideoPollInterval and VideoPollTimeout bound the long-running video
	// operation loop. Zero values pick the defaults below.
	VideoPollInterval time.Duration
	VideoPollTimeout  time.Duration
}

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultTextModel  = "gemini-2.5-flash"
	defaultImageModel = "gemini-2.5-flash-image"
	defaultVideoModel = "veo-3.1-generate-preview"

	defaultVideoPollInterval = 5 * time.Second
	defaultVideoPollTimeout  = 10 * time.Minute
)

// Client is a lightweight facade over the Gemini generateContent and Veo
// predictLongRunning endpoints so the pipeline can focus on translating
// domain requests into API calls.
type Client struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	videoModel string
	httpClient *http.Client
	logger     *infra.Logger

	videoPollInterval time.Duration
	videoPollTimeout  time.Duration
}

// InlineImage is an encoded raster attached to a generation request.
type InlineImage struct {
	MIME string
	Data []byte
}

// ImageEditRequest asks the image model to transform or blend the attached
// source images following the instruction text.
type ImageEditRequest struct {
	Instruction string
	Images      []InlineImage
	AspectRatio string
	RequestID   string
}

// VideoRequest asks the video model for a short clip. At most one reference
// image is supported.
type VideoRequest struct {
	Instruction     string
	Reference       *InlineImage
	AspectRatio     string
	DurationSeconds int
	RequestID       string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature        float64            `json:"temperature,omitempty"`
	CandidateCount     int                `json:"candidateCount,omitempty"`
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

type veoInstance struct {
	Prompt string            `json:"prompt"`
	Image  *geminiInlineData `json:"image,omitempty"`
}

type veoParameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

type veoPredictRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Error    *struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// NewClient constructs a Gemini client. An API key is required: generation
// must fail closed rather than hand synthetic assets to the compositor.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("genai: api key is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	pollInterval := opts.VideoPollInterval
	if pollInterval <= 0 {
		pollInterval = defaultVideoPollInterval
	}
	pollTimeout := opts.VideoPollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultVideoPollTimeout
	}

	return &Client{
		apiKey:            apiKey,
		baseURL:           baseURL,
		textModel:         firstNonEmpty(opts.TextModel, defaultTextModel),
		imageModel:        firstNonEmpty(opts.ImageModel, defaultImageModel),
		videoModel:        firstNonEmpty(opts.VideoModel, defaultVideoModel),
		httpClient:        client,
		logger:            logger,
		videoPollInterval: pollInterval,
		videoPollTimeout:  pollTimeout,
	}, nil
}

// TextModel returns the configured text model identifier.
func (c *Client) TextModel() string { return c.textModel }

// ImageModel returns the configured image model identifier.
func (c *Client) ImageModel() string { return c.imageModel }

// GenerateText sends a single-turn instruction to the text model and returns
// the first non-empty text part of the response.
func (c *Client) GenerateText(ctx context.Context, instruction string) (string, error) {
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: instruction}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:    0.7,
			CandidateCount: 1,
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.textModel)), payload, &response); err != nil {
		return "", err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text, nil
			}
		}
	}
	return "", errors.New("genai: no text content returned")
}

// EditImage submits the instruction and source images to the image model and
// returns the first generated raster as encoded bytes plus its MIME type.
// A response without image data is an error: a blank result must never reach
// the compositor.
func (c *Client) EditImage(ctx context.Context, req ImageEditRequest) ([]byte, string, error) {
	if len(req.Images) == 0 {
		return nil, "", errors.New("genai: at least one source image is required")
	}

	parts := make([]geminiPart, 0, len(req.Images)+1)
	parts = append(parts, geminiPart{Text: req.Instruction})
	for _, img := range req.Images {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: firstNonEmpty(img.MIME, "image/png"),
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &geminiImageConfig{AspectRatio: req.AspectRatio},
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.imageModel)), payload, &response); err != nil {
		return nil, "", err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			data, mime, err := c.decodeAssetPart(ctx, part)
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("request_id", req.RequestID).
					Str("model", c.imageModel).
					Msg("genai: skipping undecodable response part")
				continue
			}
			if len(data) == 0 {
				continue
			}
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.imageModel).
				Str("aspect_ratio", req.AspectRatio).
				Int("bytes", len(data)).
				Msg("genai: image generated")
			return data, firstNonEmpty(mime, "image/png"), nil
		}
	}
	return nil, "", errors.New("genai: no image content returned")
}

// GenerateVideo starts a long-running video generation and polls the
// operation until it reaches a terminal state, then downloads the clip.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) ([]byte, string, error) {
	instance := veoInstance{Prompt: req.Instruction}
	if req.Reference != nil {
		instance.Image = &geminiInlineData{
			MimeType: firstNonEmpty(req.Reference.MIME, "image/png"),
			Data:     base64.StdEncoding.EncodeToString(req.Reference.Data),
		}
	}
	payload := veoPredictRequest{
		Instances: []veoInstance{instance},
		Parameters: veoParameters{
			AspectRatio:     req.AspectRatio,
			DurationSeconds: req.DurationSeconds,
		},
	}

	var op veoOperation
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.videoModel)), payload, &op); err != nil {
		return nil, "", err
	}
	if op.Name == "" {
		return nil, "", errors.New("genai: video operation has no name")
	}

	op, err := c.awaitVideoOperation(ctx, op, req.RequestID)
	if err != nil {
		return nil, "", err
	}
	if op.Error != nil {
		return nil, "", fmt.Errorf("genai: video operation failed: %s", op.Error.Message)
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		return nil, "", errors.New("genai: no video content returned")
	}

	uri := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI
	data, mime, err := c.downloadFile(ctx, uri)
	if err != nil {
		return nil, "", err
	}
	return data, firstNonEmpty(mime, "video/mp4"), nil
}

func (c *Client) awaitVideoOperation(ctx context.Context, op veoOperation, requestID string) (veoOperation, error) {
	deadline := time.Now().Add(c.videoPollTimeout)
	ticker := time.NewTicker(c.videoPollInterval)
	defer ticker.Stop()

	for !op.Done {
		if time.Now().After(deadline) {
			return op, fmt.Errorf("genai: video generation timed out after %s", c.videoPollTimeout)
		}
		select {
		case <-ctx.Done():
			return op, ctx.Err()
		case <-ticker.C:
		}

		var refreshed veoOperation
		if err := c.invokeGeminiGet(ctx, "/"+strings.TrimLeft(op.Name, "/"), &refreshed); err != nil {
			return op, err
		}
		op = refreshed
		c.logger.Debug().
			Str("request_id", requestID).
			Str("operation", op.Name).
			Bool("done", op.Done).
			Msg("genai: polled video operation")
	}
	return op, nil
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func (c *Client) invokeGeminiGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var apiErr geminiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return fmt.Errorf("gemini status %d", resp.StatusCode)
}

func (c *Client) decodeAssetPart(ctx context.Context, part geminiPart) ([]byte, string, error) {
	if part.InlineData != nil && part.InlineData.Data != "" {
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, "", fmt.Errorf("decode inline data: %w", err)
		}
		return data, part.InlineData.MimeType, nil
	}
	if part.FileData != nil && part.FileData.FileURI != "" {
		data, mime, err := c.downloadFile(ctx, part.FileData.FileURI)
		if err != nil {
			return nil, "", err
		}
		return data, firstNonEmpty(part.FileData.MimeType, mime), nil
	}
	return nil, "", nil
}

func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
