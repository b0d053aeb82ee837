package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/291e/bogofit-shop-sub001/internal/fitting"
	"github.com/291e/bogofit-shop-sub001/internal/storage"
)

const multipartMemory = 32 << 20

// uploadLimit bounds a whole multipart request carrying n images.
func (a *App) uploadLimit(n int) int64 {
	per := a.Config.Fitting.MaxUploadBytes
	if per <= 0 {
		per = 4 * fitting.DefaultMaxUploadBytes
	}
	return int64(n)*per + 1<<20
}

// readFilePart loads one multipart file into a fitting file. The part's
// declared content type wins; sniffing is the fallback.
func readFilePart(fh *multipart.FileHeader) (*fitting.File, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	mime := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return &fitting.File{Name: path.Base(fh.Filename), MIME: mime, Data: data}, nil
}

func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "storage is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.uploadLimit(1))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload is too large")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	fhs := r.MultipartForm.File["file"]
	if len(fhs) == 0 {
		a.fieldErrors(w, "file is required", map[string]string{"file": "no image selected"})
		return
	}
	file, err := readFilePart(fhs[0])
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := a.Validator.Validate(file); err != nil {
		a.fieldErrors(w, "file was rejected", map[string]string{"file": err.Error()})
		return
	}
	if err := fitting.CheckDecodable(file); err != nil {
		a.fieldErrors(w, "file was rejected", map[string]string{"file": err.Error()})
		return
	}
	key := path.Join("uploads", time.Now().UTC().Format("2006/01/02"), uuid.NewString()+storage.ExtensionForMIME(file.MIME))
	key, err = a.Store.Write(r.Context(), key, file.Data)
	if err != nil {
		a.logger(r).Error().Err(err).Msg("upload write failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"key":   key,
		"url":   a.Store.URL(key),
		"mime":  file.MIME,
		"bytes": file.Size(),
	})
}
