package worldlabs

import "spatia/internal/domain"

type generateRequest struct {
	WorldPrompt worldPrompt        `json:"world_prompt"`
	DisplayName string             `json:"display_name,omitempty"`
	Model       string             `json:"model"`
	Tags        []string           `json:"tags,omitempty"`
	Seed        *int               `json:"seed,omitempty"`
	Permission  *domain.Permission `json:"permission,omitempty"`
}

type worldPrompt struct {
	Type             string            `json:"type"`
	TextPrompt       string            `json:"text_prompt,omitempty"`
	ImagePrompt      *imageContent     `json:"image_prompt,omitempty"`
	MultiImagePrompt []multiImageEntry `json:"multi_image_prompt,omitempty"`
	IsPano           *bool             `json:"is_pano,omitempty"`
	DisableRecaption *bool             `json:"disable_recaption,omitempty"`
}

type imageContent struct {
	Source       string `json:"source"`
	URI          string `json:"uri,omitempty"`
	MediaAssetID string `json:"media_asset_id,omitempty"`
	DataBase64   string `json:"data_base64,omitempty"`
}

type multiImageEntry struct {
	Azimuth int          `json:"azimuth"`
	Content imageContent `json:"content"`
}

type operation struct {
	OperationID string `json:"operation_id"`
	Done        bool   `json:"done"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	ExpiresAt   string `json:"expires_at"`
	Metadata    *struct {
		ProgressPercentage *int   `json:"progress_percentage"`
		WorldID            string `json:"world_id"`
	} `json:"metadata"`
	Error    *domain.OperationError `json:"error"`
	Response *domain.World          `json:"response"`
}

type listRequest struct {
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
	Status    string `json:"status,omitempty"`
	Model     string `json:"model,omitempty"`
}

type prepareUploadRequest struct {
	FileName  string `json:"file_name"`
	Kind      string `json:"kind"`
	Extension string `json:"extension,omitempty"`
}

// ListOptions filters ListWorlds.
type ListOptions struct {
	PageSize  int
	PageToken string
	Status    string
	Model     string
}

// World listing status filters.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusPending   = "PENDING"
	StatusFailed    = "FAILED"
	StatusRunning   = "RUNNING"
)

// ValidListStatus reports whether s is an accepted list filter.
func ValidListStatus(s string) bool {
	switch s {
	case StatusSucceeded, StatusPending, StatusFailed, StatusRunning:
		return true
	default:
		return false
	}
}

// Upload kinds.
const (
	KindImage = "image"
	KindVideo = "video"
)
