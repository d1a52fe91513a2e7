package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/twinmind/telegraf-importer/internal/document"
	"github.com/twinmind/telegraf-importer/internal/platform"
	"github.com/twinmind/telegraf-importer/internal/pointstore"
	"github.com/twinmind/telegraf-importer/internal/snippet"
)

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	var req platform.StructureRequest
	if !decode(w, r, &req) {
		return
	}
	parsed, err := document.Parse(req.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, "TOML parse failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, platform.StructureResponse{Structure: parsed.Structure, Data: parsed.Data})
}

type checkStatusRequest struct {
	Names    []string `json:"names"`
	ConfigID *int64   `json:"config_id"`
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	var req checkStatusRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Names) == 0 || req.ConfigID == nil {
		writeError(w, http.StatusBadRequest, "missing names or config_id", nil)
		return
	}

	found, err := s.store.Lookup(r.Context(), req.Names)
	if err != nil {
		s.logger.Error("check status failed", "err", err)
		writeError(w, http.StatusInternalServerError, "status lookup failed", nil)
		return
	}

	status := make(map[string]platform.PointStatus, len(req.Names))
	for _, name := range req.Names {
		status[name] = statusOf(found, name, *req.ConfigID)
	}
	writeJSON(w, http.StatusOK, platform.CheckStatusResponse{Status: status})
}

func statusOf(found map[string]pointstore.Point, name string, configID int64) platform.PointStatus {
	p, ok := found[name]
	if !ok {
		return platform.PointStatus{Status: platform.StatusNew}
	}
	id := p.ID
	switch {
	case p.ConfigFileID == nil:
		return platform.PointStatus{Status: platform.StatusUnlinked, PointID: &id}
	case *p.ConfigFileID == configID:
		return platform.PointStatus{Status: platform.StatusSynced, PointID: &id}
	default:
		return platform.PointStatus{Status: platform.StatusLinked, PointID: &id}
	}
}

func (s *Server) handleWizardImport(w http.ResponseWriter, r *http.Request) {
	var req platform.ImportRequest
	if !decode(w, r, &req) {
		return
	}
	batch := req.ImportBatch
	if batch == "" {
		batch = s.newID()
	}

	creates := make([]pointstore.NewPoint, 0, len(req.PointsToCreate))
	for _, p := range req.PointsToCreate {
		creates = append(creates, pointstore.NewPoint{
			Measurement:         p.Measurement,
			OriginalPointName:   p.OriginalPointName,
			NormalizedPointName: p.NormalizedPointName,
			PointComment:        p.PointComment,
			DataType:            p.DataType,
		})
	}
	merges := make([]pointstore.MergePoint, 0, len(req.PointsToMerge))
	for _, p := range req.PointsToMerge {
		merges = append(merges, pointstore.MergePoint{
			ID:                  p.ID,
			Measurement:         p.Measurement,
			OriginalPointName:   p.OriginalPointName,
			NormalizedPointName: p.NormalizedPointName,
			PointComment:        p.PointComment,
			DataType:            p.DataType,
		})
	}

	res, err := s.store.Import(r.Context(), req.ConfigFileID, batch, creates, merges)
	switch {
	case errors.Is(err, pointstore.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	case err != nil:
		s.logger.Error("wizard import failed", "batch", batch, "err", err)
		writeError(w, http.StatusInternalServerError, "import failed", nil)
		return
	}
	s.logger.Info("wizard import", "config_id", req.ConfigFileID, "batch", batch,
		"created", res.Created, "merged", res.Merged)
	writeJSON(w, http.StatusOK, platform.ImportResponse{CreatedCount: res.Created, MergedCount: res.Merged})
}

func (s *Server) handleUploadConfigFile(w http.ResponseWriter, r *http.Request) {
	var req platform.UploadConfigFileRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FileName) == "" {
		writeError(w, http.StatusBadRequest, "missing file_name", nil)
		return
	}
	id, err := s.store.AddConfigFile(r.Context(), req.FileName, req.Content)
	if err != nil {
		s.logger.Error("store config file failed", "err", err)
		writeError(w, http.StatusInternalServerError, "store failed", nil)
		return
	}
	writeJSON(w, http.StatusCreated, platform.ConfigFile{ID: id, FileName: req.FileName, Content: req.Content})
}

func (s *Server) handleGetConfigFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid config file id", nil)
		return
	}
	file, err := s.store.GetConfigFile(r.Context(), id)
	switch {
	case errors.Is(err, pointstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
		return
	case err != nil:
		s.logger.Error("load config file failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "load failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, platform.ConfigFile{ID: file.ID, FileName: file.FileName, Content: file.Content})
}

func (s *Server) handleCreateComponents(w http.ResponseWriter, r *http.Request) {
	var req platform.CreateComponentsRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Snippets) == 0 {
		writeError(w, http.StatusBadRequest, "no snippets provided", nil)
		return
	}

	var (
		components []pointstore.Component
		errs       []string
	)
	for _, sn := range req.Snippets {
		if sn.Level1Type != "" && sn.Level2Type != "" {
			if err := snippet.ValidateCategory(sn.Level1Type, sn.Level2Type); err != nil {
				errs = append(errs, fmt.Sprintf("component %q: %v", sn.Name, err))
				continue
			}
		}
		components = append(components, pointstore.Component{
			Name:       strings.TrimSpace(sn.Name),
			Content:    sn.Content,
			Level1Type: sn.Level1Type,
			Level2Type: sn.Level2Type,
		})
	}

	saved, skipped, err := s.store.SaveComponents(r.Context(), components)
	if err != nil {
		s.logger.Error("save components failed", "err", err)
		writeError(w, http.StatusInternalServerError, "save failed", nil)
		return
	}
	errs = append(errs, skipped...)
	writeJSON(w, http.StatusOK, platform.CreateComponentsResponse{
		Message: summarize(saved),
		Errors:  errs,
	})
}

// summarize reports the saved count per category.
func summarize(saved []pointstore.Component) string {
	if len(saved) == 0 {
		return "no components saved"
	}
	perCategory := map[string]int{}
	for _, c := range saved {
		perCategory[c.Level1Type]++
	}
	categories := make([]string, 0, len(perCategory))
	for category := range perCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	parts := make([]string, 0, len(categories))
	for _, category := range categories {
		parts = append(parts, fmt.Sprintf("%s=%d", category, perCategory[category]))
	}
	return fmt.Sprintf("saved %d component(s): %s", len(saved), strings.Join(parts, ", "))
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, platform.ErrorResponse{Error: msg, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
