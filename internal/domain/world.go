package domain

// World is a generated scene as returned by the generation API. It is copied
// verbatim from the upstream payload and treated as immutable.
type World struct {
	WorldID     string      `json:"world_id"`
	DisplayName string      `json:"display_name"`
	MarbleURL   string      `json:"world_marble_url"`
	CreatedAt   string      `json:"created_at,omitempty"`
	UpdatedAt   string      `json:"updated_at,omitempty"`
	Model       string      `json:"model,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Assets      *Assets     `json:"assets,omitempty"`
	Permission  *Permission `json:"permission,omitempty"`
}

// Permission controls world visibility on the upstream service.
type Permission struct {
	Public bool `json:"public"`
}

// Assets is the result asset bundle of a completed world.
type Assets struct {
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Caption      string   `json:"caption,omitempty"`
	Imagery      *Imagery `json:"imagery,omitempty"`
	Splats       *Splats  `json:"splats,omitempty"`
	Mesh         *Mesh    `json:"mesh,omitempty"`
}

type Imagery struct {
	PanoURL string `json:"pano_url,omitempty"`
}

// Splats holds SPZ file URLs keyed by resolution tag (for example "100k", "full_res").
type Splats struct {
	SPZURLs map[string]string `json:"spz_urls,omitempty"`
}

type Mesh struct {
	ColliderMeshURL string `json:"collider_mesh_url,omitempty"`
}

// SplatURLs returns the SPZ map, or nil when the bundle has none.
func (a *Assets) SplatURLs() map[string]string {
	if a == nil || a.Splats == nil {
		return nil
	}
	return a.Splats.SPZURLs
}

// PanoURL returns the panorama URL if present.
func (a *Assets) PanoURL() string {
	if a == nil || a.Imagery == nil {
		return ""
	}
	return a.Imagery.PanoURL
}

// ColliderURL returns the collider mesh URL if present.
func (a *Assets) ColliderURL() string {
	if a == nil || a.Mesh == nil {
		return ""
	}
	return a.Mesh.ColliderMeshURL
}

// MediaAsset describes an uploaded file registered with the generation API.
type MediaAsset struct {
	MediaAssetID string `json:"media_asset_id"`
	FileName     string `json:"file_name"`
	Kind         string `json:"kind"`
	Extension    string `json:"extension,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// UploadInfo is the signed upload target returned by prepare_upload.
type UploadInfo struct {
	UploadURL       string            `json:"upload_url"`
	UploadMethod    string            `json:"upload_method"`
	RequiredHeaders map[string]string `json:"required_headers,omitempty"`
	CurlExample     string            `json:"curl_example,omitempty"`
}

// PreparedUpload pairs the registered asset with its upload target.
type PreparedUpload struct {
	MediaAsset MediaAsset `json:"media_asset"`
	UploadInfo UploadInfo `json:"upload_info"`
}

// WorldPage is one page of prior results.
type WorldPage struct {
	Worlds        []World `json:"worlds"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}
