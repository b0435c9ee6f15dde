package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"server/internal/domain"
)

func sourceImages(t *testing.T, n int) []domain.SourceImage {
	t.Helper()
	out := make([]domain.SourceImage, n)
	for i := range out {
		out[i] = domain.SourceImage{MIME: "image/png", Data: encodePNG(t, 4, 4)}
	}
	return out
}

func TestGenerateBaseSingleSourceUsesTransformInstruction(t *testing.T) {
	service := &fakeImageService{output: encodePNG(t, 64, 64)}
	selector := NewStrategySelector(service)

	img, err := selector.GenerateBase(context.Background(), BaseRequest{
		CampaignMessage: "Fresh beans",
		Headline:        "Morning Brew",
		UserPrompt:      "cozy cafe vibes",
		AspectRatio:     "1:1",
		Sources:         sourceImages(t, 1),
	})
	if err != nil {
		t.Fatalf("GenerateBase returned error: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Fatalf("decoded width = %d, want 64", img.Bounds().Dx())
	}
	if len(service.calls) != 1 {
		t.Fatalf("service calls = %d, want 1", len(service.calls))
	}
	instruction := service.calls[0].Instruction
	if !strings.Contains(instruction, "Transform this product image") {
		t.Fatalf("single source should use the transform instruction, got: %s", instruction)
	}
	if !strings.Contains(instruction, "1:1 aspect ratio") {
		t.Fatal("instruction should name the target aspect ratio")
	}
}

func TestGenerateBaseMultiSourceUsesComposeInstruction(t *testing.T) {
	service := &fakeImageService{output: encodePNG(t, 64, 64)}
	selector := NewStrategySelector(service)

	_, err := selector.GenerateBase(context.Background(), BaseRequest{
		AspectRatio: "16:9",
		Sources:     sourceImages(t, 3),
	})
	if err != nil {
		t.Fatalf("GenerateBase returned error: %v", err)
	}
	instruction := service.calls[0].Instruction
	if !strings.Contains(instruction, "Blend the 3 attached images") {
		t.Fatalf("multiple sources should use the compose instruction, got: %s", instruction)
	}
	if len(service.calls[0].Images) != 3 {
		t.Fatalf("forwarded images = %d, want 3", len(service.calls[0].Images))
	}
}

func TestGenerateBaseFailsClosed(t *testing.T) {
	selector := NewStrategySelector(&fakeImageService{err: errors.New("quota")})
	_, err := selector.GenerateBase(context.Background(), BaseRequest{Sources: sourceImages(t, 1)})
	if !errors.Is(err, domain.ErrImageGeneration) {
		t.Fatalf("err = %v, want ErrImageGeneration", err)
	}

	selector = NewStrategySelector(&fakeImageService{output: []byte("not an image")})
	_, err = selector.GenerateBase(context.Background(), BaseRequest{Sources: sourceImages(t, 1)})
	if !errors.Is(err, domain.ErrImageGeneration) {
		t.Fatalf("undecodable output err = %v, want ErrImageGeneration", err)
	}

	selector = NewStrategySelector(&fakeImageService{})
	_, err = selector.GenerateBase(context.Background(), BaseRequest{})
	if !errors.Is(err, domain.ErrImageGeneration) {
		t.Fatalf("no sources err = %v, want ErrImageGeneration", err)
	}
}
