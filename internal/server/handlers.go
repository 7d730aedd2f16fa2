package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/pipeline"
	"github.com/jonathan/cv-ingest/internal/server/middleware"
)

// uploadField is the multipart field carrying the PDF
const uploadField = "file"

// multipartOverhead is allowed on top of the document size limit for form framing
const multipartOverhead = 1 << 20

// IngestResponse is returned by POST /cv/ingest
type IngestResponse struct {
	RunID         string           `json:"run_id"`
	Source        ingestion.Source `json:"source"`
	Length        int              `json:"length"`
	LowConfidence bool             `json:"low_confidence"`
	Warnings      []string         `json:"warnings,omitempty"`
	Draft         any              `json:"draft"`
}

func newIngestResponse(res *pipeline.Result) IngestResponse {
	return IngestResponse{
		RunID:         res.RunID.String(),
		Source:        res.Source,
		Length:        res.Length,
		LowConfidence: res.LowConfidence,
		Warnings:      res.Warnings,
		Draft:         res.Draft,
	}
}

// readUpload turns the multipart request into a document. Size and type
// problems come back as pipeline errors so they map to 413 and 415.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*ingestion.UploadedDocument, error) {
	limit := s.maxUploadBytes + multipartOverhead
	if r.ContentLength > limit {
		return nil, s.sizeError(r.ContentLength)
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, s.sizeError(r.ContentLength)
		}
		return nil, &ErrValidation{Field: uploadField, Message: "multipart field is required"}
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadBytes {
		return nil, s.sizeError(header.Size)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	return ingestion.NewDocument(header.Filename, declaredMediaType(header.Header.Get("Content-Type"), data), data), nil
}

func (s *Server) sizeError(size int64) error {
	return &pipeline.Error{Kind: pipeline.KindFileSizeExceeded, Phase: pipeline.StateValidating,
		Message: "upload rejected",
		Cause:   &ingestion.FileSizeExceededError{Size: size, Limit: s.maxUploadBytes}}
}

// declaredMediaType trusts the part's Content-Type unless the client sent
// none or a generic one, in which case the bytes are sniffed.
func declaredMediaType(contentType string, data []byte) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt == "" || mt == "application/octet-stream" {
		return mimetype.Detect(data).String()
	}
	return mt
}

// handleIngest runs an ingestion synchronously and returns the new draft
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	log.Printf("Starting ingestion of %s (%d bytes) for %s", doc.Filename, doc.Size, owner)
	res, err := s.ingester.Ingest(r.Context(), pipeline.Request{Owner: owner, Document: doc})
	if err != nil {
		log.Printf("Ingestion failed for %s: %v", owner, err)
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, newIngestResponse(res))
}

// handleIngestStream runs an ingestion and streams progress via SSE
func (s *Server) handleIngestStream(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// upload problems are reported with a plain status before the stream opens
	doc, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("Starting streaming ingestion of %s for %s", doc.Filename, owner)
	res, err := s.ingester.Ingest(r.Context(), pipeline.Request{
		Owner:    owner,
		Document: doc,
		OnProgress: func(event pipeline.ProgressEvent) {
			if err := sse.WriteEvent("progress", event); err != nil {
				log.Printf("Error writing SSE event: %v", err)
			}
		},
	})
	if err != nil {
		log.Printf("Streaming ingestion failed for %s: %v", owner, err)
		sse.WriteError(err)
		return
	}

	if err := sse.WriteEvent("result", newIngestResponse(res)); err != nil {
		log.Printf("Error writing SSE event: %v", err)
	}
	sse.WriteComplete(res.RunID.String(), "completed")
}

// handleIngestStatus reports whether an ingestion is running
func (s *Server) handleIngestStatus(w http.ResponseWriter, _ *http.Request) {
	state := s.ingester.State()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"state": state,
		"busy":  state != pipeline.StateIdle,
	})
}

// handleGetDraft returns the caller's current draft
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	state, err := s.drafts.GetDraft(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

// handleDraftEvents streams a draft_refreshed event after every successful
// replace of the caller's draft
func (s *Server) handleDraftEvents(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	refreshed, cancel := s.events.Subscribe(owner)
	defer cancel()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-refreshed:
			if !ok {
				return
			}
			err = sse.WriteEvent("draft_refreshed", map[string]string{
				"owner": owner.String(),
				"at":    time.Now().UTC().Format(time.RFC3339),
			})
		case <-heartbeat.C:
			err = sse.WriteComment("keep-alive")
		}
		if err != nil {
			log.Printf("Draft event stream for %s closed: %v", owner, err)
			return
		}
	}
}
