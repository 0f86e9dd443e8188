package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/medmatch/internal/classify"
	"github.com/hyperjump/medmatch/internal/models"
	"github.com/hyperjump/medmatch/internal/storage"
)

const defaultMaxUploadBytes = 32 << 20

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	maxPhrases, err := intParam(r, "max_phrases")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	topK, err := intParam(r, "top_k")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := s.config.Server.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		s.respondError(w, http.StatusBadRequest, "file must be an image")
		return
	}

	var image io.Reader = file
	var saved string
	if s.config.Server.UploadDir != "" {
		f, err := s.saveUpload(file, header)
		if err != nil {
			s.logger.Error("saving upload failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		defer f.Close()
		image, saved = f, f.Name()
	}

	s.logger.Debug("classify request",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
		zap.Int("max_phrases", maxPhrases),
		zap.Int("top_k", topK))
	resp, err := s.engine.Classify(r.Context(), classify.Request{
		Image:      image,
		MaxPhrases: maxPhrases,
		TopK:       topK,
		RequestID:  middleware.GetReqID(r.Context()),
	})
	if err != nil {
		if saved != "" {
			_ = os.Remove(saved)
		}
		status := classifyStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("classification failed", zap.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// saveUpload copies the upload into the upload directory under a random name and
// returns the saved copy positioned at its start.
func (s *Server) saveUpload(file multipart.File, header *multipart.FileHeader) (*os.File, error) {
	dir := s.config.Server.UploadDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	_, err = io.Copy(out, file)
	if err == nil {
		_, err = out.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return out, nil
}

func classifyStatus(err error) int {
	switch {
	case errors.Is(err, classify.ErrInvalidRequest), errors.Is(err, classify.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, classify.ErrInitialization):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be >= 1", name)
	}
	return n, nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid disease id")
	}
	return id, nil
}

func (s *Server) handleListDiseases(w http.ResponseWriter, r *http.Request) {
	diseases, err := s.catalog.ListDiseases(r.Context())
	if err != nil {
		s.logger.Error("list diseases failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if diseases == nil {
		diseases = []models.Disease{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"diseases": diseases})
}

func (s *Server) handleCreateDisease(w http.ResponseWriter, r *http.Request) {
	var input models.DiseaseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := input.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("create disease request", zap.String("name", input.Name))
	d, err := s.catalog.CreateDisease(r.Context(), input)
	if err != nil {
		if errors.Is(err, storage.ErrDiseaseExists) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("create disease failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDisease(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.catalog.GetDisease(r.Context(), id)
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDisease(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("delete disease request", zap.Int64("id", id))
	if err := s.catalog.DeleteDisease(r.Context(), id); err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUpdateDescription(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.catalog.UpdateDescription(r.Context(), id, body.Description); err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.catalog.CountDiseases(r.Context())
	if err != nil {
		s.logger.Error("status: count diseases failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"diseases":    count,
		"initialized": s.manager.Initialized(),
		"device":      s.manager.Device(),
	}
	if p, err := s.manager.Provider(); err == nil {
		resp["dimensions"] = p.Dimensions()
	}

	m := s.config.Model
	usage, err := storage.MeasureDiskUsage(map[string]string{
		"database":     s.config.Storage.DatabasePath,
		"vision_model": m.VisionModelPath,
		"text_model":   m.TextModelPath,
		"tokenizer":    m.TokenizerPath,
	})
	if err == nil {
		resp["disk_usage_bytes"] = usage.Total()
	}
	resp["config"] = map[string]interface{}{
		"default_max_phrases": s.config.Classify.DefaultMaxPhrases,
		"default_top_k":       s.config.Classify.DefaultTopK,
		"max_top_k":           s.config.Classify.MaxTopK,
		"sampling":            s.config.Classify.Sampling,
		"seed":                m.Seed,
		"database_path":       s.config.Storage.DatabasePath,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondCatalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrDiseaseNotFound) {
		s.respondError(w, http.StatusNotFound, "disease not found")
		return
	}
	s.logger.Error("catalog operation failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
