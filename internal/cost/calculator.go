package cost

import (
	"fmt"

	"spatia/internal/domain"
)

// Input kinds priced by the upstream API.
const (
	KindText       = "text"
	KindImagePano  = "image_pano"
	KindImage      = "image"
	KindMultiImage = "multi_image"
	KindVideo      = "video"
)

// credits per generation, by model then input kind.
var credits = map[string]map[string]int{
	domain.ModelMini: {
		KindText:       230,
		KindImagePano:  150,
		KindImage:      230,
		KindMultiImage: 250,
		KindVideo:      250,
	},
	domain.ModelPlus: {
		KindText:       1580,
		KindImagePano:  1500,
		KindImage:      1580,
		KindMultiImage: 1600,
		KindVideo:      1600,
	},
}

// Estimate is a credit quote for one generation.
type Estimate struct {
	Model   string `json:"model"`
	Kind    string `json:"kind"`
	Credits int    `json:"credits"`
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Credits looks up the price for model and kind.
func (c *Calculator) Credits(model, kind string) (int, bool) {
	byKind, ok := credits[model]
	if !ok {
		return 0, false
	}
	n, ok := byKind[kind]
	return n, ok
}

// Estimate prices a generation input. Invalid input is rejected the same way
// a submit would reject it.
func (c *Calculator) Estimate(in domain.GenerationInput) (*Estimate, error) {
	mode, err := in.Mode()
	if err != nil {
		return nil, err
	}
	model := in.Quality.Model()
	kind := KindForMode(mode, in.IsPano)
	n, ok := c.Credits(model, kind)
	if !ok {
		return nil, fmt.Errorf("cost: no price for %s/%s", model, kind)
	}
	return &Estimate{Model: model, Kind: kind, Credits: n}, nil
}

// KindForMode maps an input mode onto the price table key.
func KindForMode(mode domain.InputMode, pano bool) string {
	switch mode {
	case domain.InputModeImage:
		if pano {
			return KindImagePano
		}
		return KindImage
	case domain.InputModeMultiImage:
		return KindMultiImage
	default:
		return KindText
	}
}
