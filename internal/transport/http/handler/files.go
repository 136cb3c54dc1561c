package handler

import (
	"net/http"

	fileapp "github.com/expo-registration-api/internal/application/file"
)

// multipartOverhead leaves room for form boundaries and headers around the file part.
const multipartOverhead = 1 << 20

// FileHandler handles attachment uploads.
type FileHandler struct {
	svc fileapp.Service
}

func NewFileHandler(svc fileapp.Service) *FileHandler { return &FileHandler{svc: svc} }

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, fileapp.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(fileapp.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer f.Close()

	att, err := h.svc.Upload(r.Context(), fileapp.UploadInput{
		Reader:      f,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}
