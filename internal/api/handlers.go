package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dhalloran/pagesense/internal/announce"
	"github.com/dhalloran/pagesense/internal/dom"
	"github.com/dhalloran/pagesense/internal/pipeline"
)

// handleUpload registers a document for enrichment. Accepts a
// multipart form with a "file" field, or a raw body with a "name"
// query parameter.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	var (
		data     []byte
		filename string
		err      error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()
		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		filename = sanitizeFilename(header.Filename)
		data, err = io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
		if err != nil {
			jsonError(w, "failed to read file", http.StatusInternalServerError)
			return
		}
	} else {
		filename = sanitizeFilename(r.URL.Query().Get("name"))
		if filename == "unnamed" {
			filename = "upload.html"
		}
		data, err = io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes+1))
		if err != nil {
			jsonError(w, "failed to read body", http.StatusBadRequest)
			return
		}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("document exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if !dom.IsSupported(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	doc, err := dom.Load(strings.NewReader(string(data)), filename)
	if err != nil {
		jsonError(w, "parse document: "+err.Error(), http.StatusBadRequest)
		return
	}

	ann := announce.New(doc, s.log)
	ann.SetDelay = s.cfg.AnnounceSetDelay
	ann.ClearDelay = s.cfg.AnnounceClearDelay
	runner := pipeline.NewRunner(s.caps, doc, ann, s.log, s.cfg.PipelineOptions())
	entry := s.docs.Put(doc, runner, ann)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id": entry.ID,
		"name":   filename,
	})
}

// handleGetDocument serves the current serialized document, including
// any enrichments applied so far.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	entry := s.docs.Get(chi.URLParam(r, "docID"))
	if entry == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	entry.Touch()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := entry.Doc.Render(w); err != nil {
		s.log.Error("render failed", "doc_id", entry.ID, "error", err)
	}
}

type commandRequest struct {
	Command string `json:"command"`
}

// handleCommand dispatches one enrichment command against a document.
// Asynchronous commands acknowledge with {status: started} and report
// results through the announcement channel and document mutation.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	entry := s.docs.Get(chi.URLParam(r, "docID"))
	if entry == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	entry.Touch()

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	// health-check has no asynchronous work; answer inline.
	if req.Command == "health-check" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "ok",
			"availability": s.caps.Availability(r.Context()),
		})
		return
	}

	cmd, err := pipeline.ParseCommand(req.Command)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The run outlives this request; detach it from the request
	// context so the response does not cancel it.
	run, err := entry.Runner.Start(context.WithoutCancel(r.Context()), cmd)
	if err != nil {
		if err == pipeline.ErrRunActive {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.runs.Put(run)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "started",
		"run_id":   run.ID,
		"poll_url": fmt.Sprintf("/api/runs/%s", run.ID),
	})
}

// handleRunStatus reports a run snapshot.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	run := s.runs.Get(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run.Snapshot())
}

// handleAnnouncements exposes the document's announcement transcript
// for orchestrators that cannot hear the live region.
func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	entry := s.docs.Get(chi.URLParam(r, "docID"))
	if entry == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"announcements": entry.Announcer.Transcript(),
	})
}

func (s *Server) handleCapabilityStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "capability stats unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"stats": s.stats.Snapshot(),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
