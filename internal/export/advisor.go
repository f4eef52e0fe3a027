// Package export derives Unreal Engine download guidance from a world's
// asset bundle. Everything here is a pure function of its input.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"spatia/internal/domain"
	"spatia/pkg/zip"
)

// Download is one downloadable file.
type Download struct {
	Kind     string `json:"kind"`
	Key      string `json:"key,omitempty"`
	Format   string `json:"format"`
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	Hint     string `json:"hint,omitempty"`
}

// Tool is a recommended importer plugin.
type Tool struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Note string `json:"note"`
}

// Plan is the full export guidance for one world.
type Plan struct {
	WorldName      string     `json:"world_name"`
	PLY            []Download `json:"ply"`
	SPZ            []Download `json:"spz"`
	Collider       *Download  `json:"collider,omitempty"`
	Panorama       *Download  `json:"panorama,omitempty"`
	Thumbnail      *Download  `json:"thumbnail,omitempty"`
	Bundle         []Download `json:"bundle"`
	TransformScale [3]int     `json:"transform_scale"`
	Snippet        string     `json:"snippet"`
	Tools          []Tool     `json:"tools"`
}

// TransformScale maps OpenCV axes onto Unreal's: flip Y and Z.
var TransformScale = [3]int{1, -1, -1}

// Snippet is the fixed UE5 coordinate conversion.
const Snippet = `// Coordinate conversion for World Labs splats in Unreal Engine
// Apply this transform when importing or in your Blueprint/C++

// Option 1: Scale transform (flip Y and Z)
FVector ConvertWorldLabsToUnreal(FVector WorldLabsPos) {
    return FVector(
        WorldLabsPos.X,      // X stays the same
        -WorldLabsPos.Y,     // Flip Y
        -WorldLabsPos.Z      // Flip Z
    );
}

// Option 2: Import settings
// When importing PLY/GLB, set scale to (1, -1, -1)`

// Tools returns the recommended plugins in display order.
func Tools() []Tool {
	return []Tool{
		{Name: "XVERSE", URL: "https://github.com/xverse-engine/xverse-ue-plugin", Note: "Free • UE 5.1-5.5"},
		{Name: "Volinga", URL: "https://volinga.ai", Note: "Paid • UE 5.1-5.6"},
		{Name: "Luma AI", URL: "https://lumalabs.ai/unreal", Note: "Free • UE 5.1-5.3"},
	}
}

// PLYURL derives the uncompressed PLY location from an SPZ URL. Only the
// first ".spz" is substituted.
func PLYURL(spzURL string) string {
	return strings.Replace(spzURL, ".spz", ".ply", 1)
}

// Advise builds the export plan. Splat resolutions are ordered by key so the
// output does not depend on map iteration.
func Advise(worldName string, assets *domain.Assets) Plan {
	name := fileStem(worldName)
	plan := Plan{
		WorldName:      worldName,
		PLY:            []Download{},
		SPZ:            []Download{},
		Bundle:         []Download{},
		TransformScale: TransformScale,
		Snippet:        Snippet,
		Tools:          Tools(),
	}

	splats := assets.SplatURLs()
	keys := make([]string, 0, len(splats))
	for k := range splats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		spz := splats[key]
		plan.PLY = append(plan.PLY, Download{
			Kind:     "splat",
			Key:      key,
			Format:   "ply",
			URL:      PLYURL(spz),
			FileName: fmt.Sprintf("%s_splat_%s.ply", name, key),
			Hint:     plySizeHint(key),
		})
		plan.SPZ = append(plan.SPZ, Download{
			Kind:     "splat",
			Key:      key,
			Format:   "spz",
			URL:      spz,
			FileName: fmt.Sprintf("%s_splat_%s.spz", name, key),
			Hint:     "Compressed",
		})
	}

	if u := assets.ColliderURL(); u != "" {
		plan.Collider = &Download{Kind: "collider", Format: "glb", URL: u, FileName: name + "_collider.glb", Hint: "100-200k tris"}
	}
	if u := assets.PanoURL(); u != "" {
		plan.Panorama = &Download{Kind: "panorama", Format: "png", URL: u, FileName: name + "_hdri.png", Hint: "2560×1280"}
	}
	if assets != nil && assets.ThumbnailURL != "" {
		plan.Thumbnail = &Download{Kind: "thumbnail", Format: "image", URL: assets.ThumbnailURL, FileName: name + "_thumbnail"}
	}

	if len(plan.PLY) > 0 {
		plan.Bundle = append(plan.Bundle, plan.PLY[0])
	}
	if plan.Collider != nil {
		plan.Bundle = append(plan.Bundle, *plan.Collider)
	}
	if plan.Panorama != nil {
		plan.Bundle = append(plan.Bundle, *plan.Panorama)
	}
	return plan
}

func plySizeHint(key string) string {
	if strings.Contains(key, "2m") {
		return "~50MB"
	}
	return "~15MB"
}

// fileStem keeps the world name usable as a file name prefix.
func fileStem(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "world"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// Bundle packages the plan as a zip: a README, the transform snippet and a
// JSON manifest of the bundle links. Asset bytes are not fetched.
func Bundle(plan Plan) ([]byte, error) {
	manifest, err := json.MarshalIndent(struct {
		WorldName      string     `json:"world_name"`
		TransformScale [3]int     `json:"transform_scale"`
		Bundle         []Download `json:"bundle"`
		PLY            []Download `json:"ply"`
		SPZ            []Download `json:"spz"`
		Tools          []Tool     `json:"tools"`
	}{plan.WorldName, plan.TransformScale, plan.Bundle, plan.PLY, plan.SPZ, plan.Tools}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: manifest: %w", err)
	}
	stem := fileStem(plan.WorldName)
	return zip.ArchiveAssets([]zip.Asset{
		{Filename: stem + "/README.txt", Data: []byte(readme(plan))},
		{Filename: stem + "/ConvertWorldLabsToUnreal.cpp", Data: []byte(plan.Snippet + "\n")},
		{Filename: stem + "/manifest.json", Data: manifest},
	})
}

func readme(plan Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unreal Engine export: %s\n\n", plan.WorldName)
	b.WriteString("Bundle (PLY splat, collision mesh, HDRI panorama):\n")
	if len(plan.Bundle) == 0 {
		b.WriteString("  no downloadable assets\n")
	}
	for _, d := range plan.Bundle {
		fmt.Fprintf(&b, "  %s\n    %s\n", d.FileName, d.URL)
	}
	s := plan.TransformScale
	fmt.Fprintf(&b, "\nCoordinate system: World Labs uses OpenCV coordinates. Apply scale (%d, %d, %d) when importing.\n", s[0], s[1], s[2])
	b.WriteString("\nCollider: import the GLB as a Static Mesh and use it for collision volumes.\n")
	b.WriteString("\nPanorama to HDRI:\n")
	b.WriteString("  1. Open in Photoshop/GIMP\n")
	b.WriteString("  2. Adjust exposure if needed\n")
	b.WriteString("  3. Export as .hdr or .exr (32-bit)\n")
	b.WriteString("  4. Use as Sky Light cubemap in UE5\n")
	b.WriteString("\nRecommended plugins:\n")
	for _, t := range plan.Tools {
		fmt.Fprintf(&b, "  %s (%s) %s\n", t.Name, t.Note, t.URL)
	}
	return b.String()
}
