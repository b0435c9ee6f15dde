package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"server/internal/infra"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		HTTPClient:        srv.Client(),
		VideoPollInterval: 5 * time.Millisecond,
		VideoPollTimeout:  2 * time.Second,
	})
	require.NoError(t, err)
	return client, srv
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Options{})
	require.Error(t, err)

	_, err = NewClient(Options{APIKey: "   "})
	require.Error(t, err)
}

func TestGenerateText(t *testing.T) {
	var gotPath, gotKey string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": "generated copy"}},
				},
			}},
		})
	}))

	out, err := client.GenerateText(context.Background(), "write something")
	require.NoError(t, err)
	require.Equal(t, "generated copy", out)
	require.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	require.Equal(t, "test-key", gotKey)
}

func TestGenerateTextNoContent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))

	_, err := client.GenerateText(context.Background(), "write something")
	require.Error(t, err)
}

func TestGenerateTextAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded"},
		})
	}))

	_, err := client.GenerateText(context.Background(), "write something")
	require.Error(t, err)
	require.Contains(t, err.Error(), "quota exceeded")
	require.Contains(t, err.Error(), "429")
}

func TestEditImageReturnsInlineData(t *testing.T) {
	raster := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	var decoded struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig struct {
			ResponseModalities []string `json:"responseModalities"`
			ImageConfig        struct {
				AspectRatio string `json:"aspectRatio"`
			} `json:"imageConfig"`
		} `json:"generationConfig"`
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&decoded))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{
						"inlineData": map[string]any{
							"mimeType": "image/png",
							"data":     base64.StdEncoding.EncodeToString(raster),
						},
					}},
				},
			}},
		})
	}))

	data, mime, err := client.EditImage(context.Background(), ImageEditRequest{
		Instruction: "make it pop",
		Images:      []InlineImage{{MIME: "image/jpeg", Data: []byte("jpeg-bytes")}},
		AspectRatio: "16:9",
	})
	require.NoError(t, err)
	require.Equal(t, raster, data)
	require.Equal(t, "image/png", mime)

	parts := decoded.Contents[0].Parts
	require.Len(t, parts, 2, "instruction plus one image part")
	require.Equal(t, "make it pop", parts[0].Text)
	require.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)
	require.Equal(t, []string{"IMAGE"}, decoded.GenerationConfig.ResponseModalities)
	require.Equal(t, "16:9", decoded.GenerationConfig.ImageConfig.AspectRatio)
}

func TestEditImageRequiresSources(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	_, _, err := client.EditImage(context.Background(), ImageEditRequest{Instruction: "x"})
	require.Error(t, err)
}

func TestEditImageLogsUndecodablePartAndContinues(t *testing.T) {
	raster := []byte{0x89, 'P', 'N', 'G', 9, 8, 7}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{
						{"inlineData": map[string]any{
							"mimeType": "image/png",
							"data":     "%%% not base64 %%%",
						}},
						{"inlineData": map[string]any{
							"mimeType": "image/png",
							"data":     base64.StdEncoding.EncodeToString(raster),
						}},
					},
				},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	logger := infra.Logger(zerolog.New(&buf))
	client, err := NewClient(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Logger:     &logger,
	})
	require.NoError(t, err)

	data, _, err := client.EditImage(context.Background(), ImageEditRequest{
		Instruction: "x",
		Images:      []InlineImage{{Data: []byte("src")}},
		RequestID:   "run-77",
	})
	require.NoError(t, err)
	require.Equal(t, raster, data, "valid part after the broken one must still win")
	require.Contains(t, buf.String(), "skipping undecodable response part")
	require.Contains(t, buf.String(), "run-77")
}

func TestEditImageNoImageContent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": "sorry, cannot draw that"}},
				},
			}},
		})
	}))

	_, _, err := client.EditImage(context.Background(), ImageEditRequest{
		Instruction: "x",
		Images:      []InlineImage{{Data: []byte("src")}},
	})
	require.Error(t, err)
}

func TestGenerateVideoPollsUntilDone(t *testing.T) {
	clip := []byte("mp4-payload")
	var polls int

	mux := http.NewServeMux()
	mux.HandleFunc("/models/veo-3.1-generate-preview:predictLongRunning", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-123", "done": false})
	})
	mux.HandleFunc("/operations/op-123", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 3 {
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-123", "done": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": "operations/op-123",
			"done": true,
			"response": map[string]any{
				"generateVideoResponse": map[string]any{
					"generatedSamples": []map[string]any{{
						"video": map[string]any{"uri": "files/clip-1:download"},
					}},
				},
			},
		})
	})
	mux.HandleFunc("/files/clip-1:download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(clip)
	})

	client, _ := newTestClient(t, mux)
	data, mime, err := client.GenerateVideo(context.Background(), VideoRequest{
		Instruction:     "misty hills",
		AspectRatio:     "16:9",
		DurationSeconds: 6,
	})
	require.NoError(t, err)
	require.Equal(t, clip, data)
	require.Equal(t, "video/mp4", mime)
	require.GreaterOrEqual(t, polls, 3)
}

func TestGenerateVideoOperationFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/veo-3.1-generate-preview:predictLongRunning", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": "operations/op-err",
			"done": true,
			"error": map[string]any{
				"code":    400,
				"message": "unsupported duration",
			},
		})
	})

	client, _ := newTestClient(t, mux)
	_, _, err := client.GenerateVideo(context.Background(), VideoRequest{Instruction: "x", AspectRatio: "16:9", DurationSeconds: 6})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported duration")
}

func TestGenerateVideoTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "predictLongRunning") {
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-slow", "done": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-slow", "done": false})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		HTTPClient:        srv.Client(),
		VideoPollInterval: 2 * time.Millisecond,
		VideoPollTimeout:  30 * time.Millisecond,
	})
	require.NoError(t, err)

	_, _, err = client.GenerateVideo(context.Background(), VideoRequest{Instruction: "x", AspectRatio: "16:9", DurationSeconds: 6})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}
