package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/twbtools/twbdiff/internal/runner"
)

// handleCompare accepts two workbook revisions as multipart files "old" and
// "new", queues a comparison run, and answers 202 with a poll URL.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	// Limit total request size: two payloads plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	oldName, oldData, err := s.readRevision(r, "old")
	if err != nil {
		jsonError(w, err.Error(), revisionErrCode(err))
		return
	}
	newName, newData, err := s.readRevision(r, "new")
	if err != nil {
		jsonError(w, err.Error(), revisionErrCode(err))
		return
	}

	run := runner.NewRun(oldName, newName, oldData, newData)
	if err := s.orchestrator.Submit(run); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":   run.ID,
		"status":   run.Status,
		"poll_url": fmt.Sprintf("/api/compare/%s", run.ID),
	})
}

func (s *Server) handleCompareStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run := s.orchestrator.GetRun(runID)
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run.Snapshot())
}

type revisionErr struct {
	msg  string
	code int
}

func (e *revisionErr) Error() string { return e.msg }

func revisionErrCode(err error) int {
	if re, ok := err.(*revisionErr); ok {
		return re.code
	}
	return http.StatusBadRequest
}

// readRevision pulls one named workbook file out of the form, enforcing the
// size limit and the .twb/.twbx extension.
func (s *Server) readRevision(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, &revisionErr{field + " file is required: " + err.Error(), http.StatusBadRequest}
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !isWorkbookFilename(filename) {
		return "", nil, &revisionErr{
			fmt.Sprintf("%s: unsupported file type %s (want .twb or .twbx)", field, filepath.Ext(filename)),
			http.StatusBadRequest,
		}
	}

	data, err := readLimited(file, s.cfg.MaxUploadBytes)
	if err != nil {
		return "", nil, &revisionErr{field + ": " + err.Error(), http.StatusRequestEntityTooLarge}
	}
	return filename, data, nil
}

func readLimited(f multipart.File, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("file exceeds max size (%d bytes)", max)
	}
	return data, nil
}

func isWorkbookFilename(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".twb", ".twbx":
		return true
	}
	return false
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
