package domain

import (
	"strings"
)

// InputMode names the prompt shape sent to the generation API.
type InputMode string

const (
	InputModeText       InputMode = "text"
	InputModeImage      InputMode = "image"
	InputModeMultiImage InputMode = "multi-image"
)

// Quality selects the model tier.
type Quality string

const (
	QualityDraft        Quality = "draft"
	QualityProfessional Quality = "professional"
)

const (
	ModelMini = "Marble 0.1-mini"
	ModelPlus = "Marble 0.1-plus"
)

// Model maps the quality tier onto the upstream model name. Anything that is
// not professional falls back to the draft tier.
func (q Quality) Model() string {
	if q == QualityProfessional {
		return ModelPlus
	}
	return ModelMini
}

// MaxMultiImages caps the number of images in a multi-image request.
const MaxMultiImages = 4

// Azimuths lists the compass angles accepted for multi-image items.
var Azimuths = []int{0, 90, 180, 270}

// ValidAzimuth reports whether deg is one of the fixed compass values.
func ValidAzimuth(deg int) bool {
	for _, a := range Azimuths {
		if a == deg {
			return true
		}
	}
	return false
}

// ImageSource references an image by URL, by uploaded media asset, or inline
// as base64. Exactly one field must be set.
type ImageSource struct {
	URI          string `json:"uri,omitempty"`
	MediaAssetID string `json:"media_asset_id,omitempty"`
	DataBase64   string `json:"data_base64,omitempty"`
}

func (s ImageSource) set() int {
	n := 0
	for _, v := range []string{s.URI, s.MediaAssetID, s.DataBase64} {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// Empty reports whether no reference is present.
func (s ImageSource) Empty() bool { return s.set() == 0 }

// AzimuthImage is one item of a multi-image request.
type AzimuthImage struct {
	Azimuth int         `json:"azimuth"`
	Image   ImageSource `json:"image"`
}

// GenerationInput is the tagged union accepted by StartGeneration. Prompt may
// accompany an image mode as guidance text; on its own it selects text mode.
type GenerationInput struct {
	Prompt      string         `json:"prompt,omitempty"`
	Image       *ImageSource   `json:"image,omitempty"`
	IsPano      bool           `json:"is_pano,omitempty"`
	Images      []AzimuthImage `json:"images,omitempty"`
	DisplayName string         `json:"name,omitempty"`
	Quality     Quality        `json:"quality,omitempty"`
	Seed        *int           `json:"seed,omitempty"`
	// Public publishes the world on the upstream service.
	Public bool `json:"public,omitempty"`
	// DisableRecaption keeps the prompt text exactly as given.
	DisableRecaption bool `json:"disable_recaption,omitempty"`
}

// Mode validates the input and returns the selected mode. It never touches
// the network and returns a *ValidationError for every rejection.
func (in GenerationInput) Mode() (InputMode, error) {
	hasImage := in.Image != nil && !in.Image.Empty()
	hasImages := len(in.Images) > 0
	hasPrompt := strings.TrimSpace(in.Prompt) != ""

	if hasImage && hasImages {
		return "", invalid("images", "single image and multi-image input are mutually exclusive")
	}
	if in.Quality != "" && in.Quality != QualityDraft && in.Quality != QualityProfessional {
		return "", invalid("quality", "unsupported quality %q", in.Quality)
	}

	switch {
	case hasImages:
		if len(in.Images) > MaxMultiImages {
			return "", invalid("images", "at most %d images are allowed", MaxMultiImages)
		}
		for i, item := range in.Images {
			if !ValidAzimuth(item.Azimuth) {
				return "", invalid("images", "item %d: azimuth %d must be one of 0, 90, 180, 270", i, item.Azimuth)
			}
			if item.Image.set() != 1 {
				return "", invalid("images", "item %d: exactly one image reference is required", i)
			}
		}
		return InputModeMultiImage, nil
	case hasImage:
		if in.Image.set() != 1 {
			return "", invalid("image", "exactly one image reference is required")
		}
		return InputModeImage, nil
	case hasPrompt:
		return InputModeText, nil
	default:
		return "", invalid("", "Either prompt, image, or multi-image input is required")
	}
}

// Validate is Mode without the result.
func (in GenerationInput) Validate() error {
	_, err := in.Mode()
	return err
}
