package platform

import "github.com/twinmind/telegraf-importer/internal/document"

// StructureRequest asks the backend to parse snippet content.
type StructureRequest struct {
	Content string `json:"content"`
}

// StructureResponse carries the structure tree and the decoded document.
type StructureResponse struct {
	Structure document.Tree  `json:"structure"`
	Data      map[string]any `json:"toml_data"`
}

// Remote point status names.
const (
	StatusNew      = "new"
	StatusUnlinked = "unlinked"
	StatusLinked   = "linked"
	StatusSynced   = "synced"
)

// PointStatus is the remote verdict for one measurement name.
type PointStatus struct {
	Status  string `json:"status"`
	PointID *int64 `json:"point_id,omitempty"`
}

// CheckStatusRequest asks for the status of measurement names relative to a config file.
type CheckStatusRequest struct {
	Names    []string `json:"names"`
	ConfigID int64    `json:"config_id"`
}

// CheckStatusResponse maps each requested name to its status.
type CheckStatusResponse struct {
	Status map[string]PointStatus `json:"status"`
}

// ImportPoint is one point in an import payload. ID is only set for merges.
type ImportPoint struct {
	ID                  int64  `json:"id,omitempty"`
	Measurement         string `json:"measurement"`
	OriginalPointName   string `json:"original_point_name,omitempty"`
	NormalizedPointName string `json:"normalized_point_name,omitempty"`
	PointComment        string `json:"point_comment,omitempty"`
	DataType            string `json:"data_type,omitempty"`
}

// ImportRequest creates and merges points for a config file in one call.
type ImportRequest struct {
	ConfigFileID   int64         `json:"config_file_id"`
	PointsToCreate []ImportPoint `json:"points_to_create"`
	PointsToMerge  []ImportPoint `json:"points_to_merge"`
	ImportBatch    string        `json:"import_batch,omitempty"`
}

// ImportResponse reports how many points were created and merged.
type ImportResponse struct {
	CreatedCount int `json:"created_count"`
	MergedCount  int `json:"merged_count"`
}

// ConfigFile is a stored Telegraf configuration file.
type ConfigFile struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// UploadConfigFileRequest stores a configuration file.
type UploadConfigFileRequest struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// ComponentSnippet is a snippet saved as a reusable component.
type ComponentSnippet struct {
	Name       string `json:"name"`
	Content    string `json:"content"`
	Level1Type string `json:"level1_type"`
	Level2Type string `json:"level2_type"`
}

// CreateComponentsRequest saves snippets as components.
type CreateComponentsRequest struct {
	Snippets []ComponentSnippet `json:"snippets"`
}

// CreateComponentsResponse summarises a component save. Errors lists per-snippet failures.
type CreateComponentsResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// ErrorResponse is the JSON error body returned by the backend.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
