package cost

import (
	"errors"
	"testing"

	"spatia/internal/domain"
)

func TestEstimate(t *testing.T) {
	img := &domain.ImageSource{URI: "https://example.com/a.jpg"}
	tests := []struct {
		name  string
		in    domain.GenerationInput
		kind  string
		model string
		want  int
	}{
		{name: "text draft", in: domain.GenerationInput{Prompt: "red chair"}, kind: KindText, model: domain.ModelMini, want: 230},
		{name: "text professional", in: domain.GenerationInput{Prompt: "red chair", Quality: domain.QualityProfessional}, kind: KindText, model: domain.ModelPlus, want: 1580},
		{name: "pano draft", in: domain.GenerationInput{Image: img, IsPano: true}, kind: KindImagePano, model: domain.ModelMini, want: 150},
		{name: "image professional", in: domain.GenerationInput{Image: img, Quality: domain.QualityProfessional}, kind: KindImage, model: domain.ModelPlus, want: 1580},
		{name: "multi image", in: domain.GenerationInput{Images: []domain.AzimuthImage{{Azimuth: 0, Image: *img}, {Azimuth: 180, Image: *img}}}, kind: KindMultiImage, model: domain.ModelMini, want: 250},
	}
	c := NewCalculator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Estimate(tc.in)
			if err != nil {
				t.Fatalf("Estimate: %v", err)
			}
			if got.Kind != tc.kind || got.Model != tc.model || got.Credits != tc.want {
				t.Fatalf("Estimate = %+v, want %s/%s/%d", got, tc.model, tc.kind, tc.want)
			}
		})
	}
}

func TestEstimate_Invalid(t *testing.T) {
	_, err := NewCalculator().Estimate(domain.GenerationInput{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCredits_Video(t *testing.T) {
	c := NewCalculator()
	if n, ok := c.Credits(domain.ModelPlus, KindVideo); !ok || n != 1600 {
		t.Fatalf("Credits(plus, video) = %d, %v", n, ok)
	}
	if _, ok := c.Credits("unknown", KindText); ok {
		t.Fatal("unknown model priced")
	}
}
