package mapping

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/twinmind/telegraf-importer/internal/document"
)

// CandidatePoint is one projected output row.
type CandidatePoint struct {
	InternalID          int    `json:"internal_id"`
	Measurement         string `json:"measurement"`
	OriginalPointName   string `json:"original_point_name"`
	NormalizedPointName string `json:"normalized_point_name"`
	PointComment        string `json:"point_comment"`
	DataType            string `json:"data_type"`
	// PointID is the remote point a merge row updates. It is filled at commit.
	PointID *int64 `json:"point_id,omitempty"`
	// MarkedForImport selects the row of a duplicate group that gets imported.
	MarkedForImport bool `json:"marked_for_import,omitempty"`
}

// Field returns the value of a target field.
func (p CandidatePoint) Field(target string) string {
	switch target {
	case FieldMeasurement:
		return p.Measurement
	case FieldOriginalPointName:
		return p.OriginalPointName
	case FieldNormalizedPointName:
		return p.NormalizedPointName
	case FieldPointComment:
		return p.PointComment
	case FieldDataType:
		return p.DataType
	}
	return ""
}

func (p *CandidatePoint) set(target, value string) {
	switch target {
	case FieldMeasurement:
		p.Measurement = value
	case FieldOriginalPointName:
		p.OriginalPointName = value
	case FieldNormalizedPointName:
		p.NormalizedPointName = value
	case FieldPointComment:
		p.PointComment = value
	case FieldDataType:
		p.DataType = value
	}
}

// Project materialises one candidate point per primary list element. Missing values become empty strings.
func Project(doc map[string]any, primaryList []any, bindings Bindings) []CandidatePoint {
	constants := make(map[string]string, len(bindings))
	for target, b := range bindings {
		if b.IsContext {
			constants[target] = document.FormatValue(document.Resolve(document.Resolve(doc, b.ContextPath), b.SourceKey))
		}
	}

	points := make([]CandidatePoint, 0, len(primaryList))
	for i, item := range primaryList {
		point := CandidatePoint{InternalID: i}
		for target, b := range bindings {
			if b.IsContext {
				point.set(target, constants[target])
				continue
			}
			point.set(target, document.FormatValue(document.Resolve(item, b.SourceKey)))
		}
		points = append(points, point)
	}
	return points
}

// NormalizeName trims surrounding whitespace and applies Unicode NFC so that visually equal names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
