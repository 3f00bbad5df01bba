package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"document-chat/internal/chat"
	"document-chat/internal/errs"
	"document-chat/internal/models"
	"document-chat/internal/rag"
)

const maxUploadBytes = 64 << 20

// Server wires the ingestion pipeline and conversation manager to HTTP.
type Server struct {
	pipeline *rag.Pipeline
	chat     *chat.Manager
	logger   zerolog.Logger
}

func New(pipeline *rag.Pipeline, manager *chat.Manager, logger zerolog.Logger) *Server {
	return &Server{pipeline: pipeline, chat: manager, logger: logger}
}

// Handler returns the routed handler with CORS and request logging
// applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/process-message", s.handleProcessMessage)
	mux.HandleFunc("/process-document", s.handleProcessDocument)
	return s.withCORS(s.withLogging(mux))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, indexPage)
}

func (s *Server) handleProcessMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserMessage string `json:"userMessage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userMessage must not be empty"})
		return
	}

	answer, err := s.chat.Respond(r.Context(), req.UserMessage)
	if err != nil {
		s.writeRespondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"botResponse": answer})
}

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"botResponse": models.UploadFailedResponse})
		return
	}
	defer file.Close()

	// The upload goes through a temp file so nothing lingers in the
	// working directory; the parser dispatches on the extension.
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".pdf"
	}
	tmp, err := os.CreateTemp("", "upload-"+uuid.NewString()+"-*"+ext)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store upload"})
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store upload"})
		return
	}
	tmp.Close()

	if err := s.pipeline.Ingest(r.Context(), tmpPath); err != nil {
		s.writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"botResponse": models.DocumentReadyResponse})
}

// writeIngestError distinguishes user-actionable causes (bad file) from
// operational ones (embedding backend down).
func (s *Server) writeIngestError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("document ingestion failed")
	switch {
	case errors.Is(err, errs.ErrDocumentNotFound), errors.Is(err, errs.ErrParseFailure):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "the document could not be read: " + err.Error()})
	case errors.Is(err, errs.ErrEmbeddingFailure):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "the embedding service failed, please try again later"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "document processing failed"})
	}
}

func (s *Server) writeRespondError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("message processing failed")
	if ie, ok := errs.AsInference(err); ok {
		switch ie.Kind {
		case errs.InferenceAuthFailure:
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "inference service authentication failed"})
		case errs.InferenceRateLimited:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "the model is rate limited, please retry shortly"})
		case errs.InferenceTimeout:
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "the model took too long to answer, please retry"})
		default:
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "the inference service is unavailable"})
		}
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "message processing failed"})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("request_id", uuid.NewString()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Document Chat</title></head>
<body>
<h1>Document Chat</h1>
<p>POST a document to /process-document, then ask questions via /process-message.</p>
</body>
</html>
`
