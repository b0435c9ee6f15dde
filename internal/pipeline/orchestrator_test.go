package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"strings"
	"testing"

	"server/internal/domain"
	"server/internal/providers/copywriter"
)

type fakeTextGen struct {
	calls int
	text  domain.TextContent
	err   error
}

func (f *fakeTextGen) Generate(ctx context.Context, brief copywriter.Brief) (domain.TextContent, error) {
	f.calls++
	if f.err != nil {
		return domain.TextContent{}, f.err
	}
	return f.text, nil
}

type fakeBaseGen struct {
	calls int
	img   image.Image
	err   error
}

func (f *fakeBaseGen) GenerateBase(ctx context.Context, req BaseRequest) (image.Image, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

type memStore struct {
	files map[string][]byte
	// failKeys marks key substrings whose writes should fail.
	failKeys []string
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	for _, frag := range s.failKeys {
		if strings.Contains(key, frag) {
			return "", fmt.Errorf("disk full")
		}
	}
	s.files[key] = data
	return key, nil
}

func defaultText() domain.TextContent {
	return domain.TextContent{
		Headline:    "Morning Brew Magic",
		BodyText:    "Start the day right.",
		Caption:     "#coffee",
		AccentColor: "#2244AA",
	}
}

func orchestratorFixture(t *testing.T, store BlobStore, sourceRefs ...string) (*Orchestrator, *fakeTextGen, *fakeBaseGen, domain.GenerationContext) {
	t.Helper()
	root := t.TempDir()
	if len(sourceRefs) == 0 {
		writeMediaFile(t, root, "uploads/product.png", encodePNG(t, 400, 300))
		sourceRefs = []string{"uploads/product.png"}
	}

	texts := &fakeTextGen{text: defaultText()}
	base := &fakeBaseGen{img: testBaseImage(800, 600)}
	o := NewOrchestrator(texts, base, NewLoader(root, nil), NewCompositor(nil, nil), store, nil)

	gc := domain.GenerationContext{
		CampaignName: "Summer Sale",
		Prompt:       "warm cozy atmosphere",
		SourceImages: sourceRefs,
		AspectRatios: []string{"1:1", "16:9", "9:16"},
	}
	return o, texts, base, gc
}

func TestGenerateProducesEveryRatio(t *testing.T) {
	store := newMemStore()
	o, texts, base, gc := orchestratorFixture(t, store)
	gc.AspectRatios = []string{"1:1", "16:9"}

	record, err := o.Generate(context.Background(), gc)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if texts.calls != 1 {
		t.Fatalf("text generator calls = %d, want 1", texts.calls)
	}
	if base.calls != 1 {
		t.Fatalf("base generator calls = %d, want exactly 1 across all ratios", base.calls)
	}
	if len(record.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(record.Results))
	}

	wantDims := map[string][2]int{"1:1": {1080, 1080}, "16:9": {1920, 1080}}
	for _, res := range record.Results {
		if !res.Success {
			t.Fatalf("ratio %s failed: %s", res.AspectRatio, res.Error)
		}
		data, ok := store.files[res.ImagePath]
		if !ok {
			t.Fatalf("no stored file for %s at %q", res.AspectRatio, res.ImagePath)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("stored file for %s is not a PNG: %v", res.AspectRatio, err)
		}
		want := wantDims[res.AspectRatio]
		if b := img.Bounds(); b.Dx() != want[0] || b.Dy() != want[1] {
			t.Fatalf("ratio %s size = %dx%d, want %dx%d", res.AspectRatio, b.Dx(), b.Dy(), want[0], want[1])
		}
		if !strings.HasPrefix(res.ImagePath, "posts/Summer_Sale_Morning_Brew_Magic-") {
			t.Fatalf("image path = %q, want campaign+headline directory", res.ImagePath)
		}
	}
	if record.ID == "" || record.CreatedAt.IsZero() {
		t.Fatal("record identity fields not populated")
	}
}

func TestGenerateBaseImageCalledOnceForThreeRatios(t *testing.T) {
	o, _, base, gc := orchestratorFixture(t, newMemStore())

	if _, err := o.Generate(context.Background(), gc); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("base generator calls = %d, want 1", base.calls)
	}
}

func TestGeneratePartialFailureContinues(t *testing.T) {
	store := newMemStore()
	store.failKeys = []string{"16-9"}
	o, _, _, gc := orchestratorFixture(t, store)

	record, err := o.Generate(context.Background(), gc)
	if err != nil {
		t.Fatalf("partial failure must not fail the run: %v", err)
	}
	if len(record.Results) != 3 {
		t.Fatalf("results = %d, want 3 entries including the failed ratio", len(record.Results))
	}

	byRatio := make(map[string]domain.CompositeResult)
	for _, res := range record.Results {
		byRatio[res.AspectRatio] = res
	}
	if !byRatio["1:1"].Success || !byRatio["9:16"].Success {
		t.Fatalf("healthy ratios should succeed: %+v", record.Results)
	}
	failed := byRatio["16:9"]
	if failed.Success || failed.Error == "" {
		t.Fatalf("16:9 should carry a failure message, got %+v", failed)
	}
}

func TestGenerateAllRatiosFailedIsError(t *testing.T) {
	store := newMemStore()
	store.failKeys = []string{"image_"}
	o, _, _, gc := orchestratorFixture(t, store)

	if _, err := o.Generate(context.Background(), gc); err == nil {
		t.Fatal("run with zero successful ratios must return an error")
	}
}

func TestGenerateRejectsOversizedPayloadBeforeGeneration(t *testing.T) {
	root := t.TempDir()

	// A valid GIF followed by padding still decodes; the loader keeps the
	// full byte count, which is what the cumulative cap measures.
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testBaseImage(1, 1), nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	buf.Write(make([]byte, domain.MaxSourcePayloadBytes))
	writeMediaFile(t, root, "uploads/huge.gif", buf.Bytes())

	texts := &fakeTextGen{text: defaultText()}
	base := &fakeBaseGen{img: testBaseImage(100, 100)}
	o := NewOrchestrator(texts, base, NewLoader(root, nil), NewCompositor(nil, nil), newMemStore(), nil)

	_, err := o.Generate(context.Background(), domain.GenerationContext{
		CampaignName: "c",
		Prompt:       "p",
		SourceImages: []string{"uploads/huge.gif"},
		AspectRatios: []string{"1:1"},
	})
	if !errors.Is(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
	if texts.calls != 0 || base.calls != 0 {
		t.Fatalf("generation services were called (%d text, %d image) despite the cap", texts.calls, base.calls)
	}
}

func TestGenerateTextFailureIsFatal(t *testing.T) {
	o, texts, base, gc := orchestratorFixture(t, newMemStore())
	texts.err = fmt.Errorf("%w: upstream unavailable", domain.ErrTextGeneration)

	if _, err := o.Generate(context.Background(), gc); !errors.Is(err, domain.ErrTextGeneration) {
		t.Fatalf("err = %v, want ErrTextGeneration", err)
	}
	if base.calls != 0 {
		t.Fatal("base generation must not run after text failure")
	}
}

func TestGenerateBaseFailureIsFatal(t *testing.T) {
	o, _, base, gc := orchestratorFixture(t, newMemStore())
	base.err = fmt.Errorf("%w: upstream unavailable", domain.ErrImageGeneration)

	if _, err := o.Generate(context.Background(), gc); !errors.Is(err, domain.ErrImageGeneration) {
		t.Fatalf("err = %v, want ErrImageGeneration", err)
	}
}

func TestGenerateInvalidRatioRejectedEarly(t *testing.T) {
	o, texts, _, gc := orchestratorFixture(t, newMemStore())
	gc.AspectRatios = []string{"2:3"}

	if _, err := o.Generate(context.Background(), gc); !errors.Is(err, domain.ErrInvalidAspectRatio) {
		t.Fatalf("err = %v, want ErrInvalidAspectRatio", err)
	}
	if texts.calls != 0 {
		t.Fatal("no service call expected for invalid input")
	}
}

func TestGenerateMissingBrandMarkIsNotFatal(t *testing.T) {
	store := newMemStore()
	o, _, _, gc := orchestratorFixture(t, store)
	gc.BrandImage = "uploads/missing-logo.png"
	gc.AspectRatios = []string{"1:1"}

	record, err := o.Generate(context.Background(), gc)
	if err != nil {
		t.Fatalf("missing brand mark must degrade, got error: %v", err)
	}
	if !record.Results[0].Success {
		t.Fatalf("ratio should still succeed: %+v", record.Results[0])
	}
}

func TestGenerateCancelledBeforeAnyRatioFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, _, _, gc := orchestratorFixture(t, newMemStore())
	// Text and base fakes ignore the context, so the run reaches the
	// per-ratio loop where the cancellation check lives.
	_, err := o.Generate(ctx, gc)
	if err == nil {
		t.Fatal("cancelled run with no completed ratios must return an error")
	}
}

// cancellingStore cancels the run's context as a side effect of its first
// successful write, simulating the caller going away mid-run.
type cancellingStore struct {
	inner  *memStore
	cancel context.CancelFunc
}

func (s *cancellingStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	key, err := s.inner.Write(ctx, key, data)
	s.cancel()
	return key, err
}

func TestGenerateCancelledMidRunMarksRemainingRatios(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := newMemStore()
	o, _, _, gc := orchestratorFixture(t, &cancellingStore{inner: inner, cancel: cancel})

	record, err := o.Generate(ctx, gc)
	if err != nil {
		t.Fatalf("run with one completed ratio must succeed, got: %v", err)
	}
	if len(record.Results) != 3 {
		t.Fatalf("results = %d, want all 3 ratios reported", len(record.Results))
	}

	first := record.Results[0]
	if !first.Success {
		t.Fatalf("first ratio should have completed before cancellation: %+v", first)
	}
	if _, ok := inner.files[first.ImagePath]; !ok {
		t.Fatalf("completed ratio's file must stay persisted at %q", first.ImagePath)
	}
	for _, rest := range record.Results[1:] {
		if rest.Success {
			t.Fatalf("ratio %s should be cancelled, got success", rest.AspectRatio)
		}
		if !strings.Contains(rest.Error, "cancelled") {
			t.Fatalf("ratio %s error = %q, want cancellation reason", rest.AspectRatio, rest.Error)
		}
	}
	if len(inner.files) != 1 {
		t.Fatalf("stored files = %d, want only the completed ratio", len(inner.files))
	}
}
