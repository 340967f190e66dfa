package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/pkg/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the websocket frame exchanged with the UI.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	Addr          string
	MaxUploadSize int64
}

type Server struct {
	config  Config
	service *service.Service
}

func NewWithConfig(config Config, svc *service.Service) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = 32 << 20
	}
	return &Server{config: config, service: svc}
}

// Handler builds the route table with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return withCORS(mux)
}

// Start serves until the listener fails.
func (s *Server) Start() error {
	log.Printf("Starting server on %s", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.Handler())
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"index":  s.service.Status().String(),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "upload requires POST")
		return
	}
	if err := r.ParseMultipartForm(s.config.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "could not read the upload, is it multipart form data?")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `missing "file" field in the upload`)
		return
	}
	defer file.Close()

	report, err := s.service.UploadDocument(r.Context(), file, header.Filename)
	if err != nil {
		log.Printf("upload %s: %v", header.Filename, err)
		switch {
		case errors.Is(err, service.ErrRejectedUpload):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case hasKnownCause(err):
			writeError(w, http.StatusUnprocessableEntity, friendlyError(err))
		default:
			writeError(w, http.StatusInternalServerError, "the request could not be completed, see server logs for detail")
		}
		return
	}

	body := map[string]interface{}{"document": report.Document, "status": "indexed"}
	if len(report.Failures) > 0 {
		skipped := make([]string, 0, len(report.Failures))
		for _, f := range report.Failures {
			skipped = append(skipped, filepath.Base(f.Path))
		}
		body["skipped"] = skipped
	}
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := s.service.ListDocuments()
		if err != nil {
			log.Printf("list documents: %v", err)
			writeError(w, http.StatusInternalServerError, "could not list documents")
			return
		}
		if docs == nil {
			docs = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
	case http.MethodDelete:
		name := r.URL.Query().Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, `missing "name" query parameter`)
			return
		}
		if err := s.service.RemoveDocument(r.Context(), name); err != nil {
			log.Printf("remove %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, friendlyError(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"removed": name})
	default:
		writeError(w, http.StatusMethodNotAllowed, "documents supports GET and DELETE")
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer       string   `json:"answer"`
	Sources      []string `json:"sources"`
	SourceStatus string   `json:"source_status"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "ask requires POST")
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse the request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	result, err := s.service.Ask(r.Context(), req.Question)
	if err != nil {
		log.Printf("ask: %v", err)
		writeError(w, http.StatusBadGateway, friendlyError(err))
		return
	}
	writeJSON(w, http.StatusOK, toAskResponse(result))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.sendMessage(conn, "error", "could not parse the message")
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			s.sendMessage(conn, "error", "question must not be empty")
			continue
		}

		result, err := s.service.Ask(r.Context(), msg.Content)
		if err != nil {
			log.Printf("ws ask: %v", err)
			s.sendMessage(conn, "error", friendlyError(err))
			continue
		}
		response := Message{
			Type:    "response",
			Content: RenderAnswer(result),
			Data:    toAskResponse(result),
		}
		if err := conn.WriteJSON(response); err != nil {
			log.Printf("Error sending message: %v", err)
			break
		}
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string) {
	if err := conn.WriteJSON(Message{Type: msgType, Content: content}); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// RenderAnswer formats an answer with its sources trailer the way the
// CLI prints it, so both surfaces read the same.
func RenderAnswer(result *models.AnswerResult) string {
	if len(result.CitedSources) == 0 {
		return result.Text
	}
	return fmt.Sprintf("%s\n\nSources: %s", result.Text, strings.Join(result.CitedSources, ", "))
}

func toAskResponse(result *models.AnswerResult) askResponse {
	sources := result.CitedSources
	if sources == nil {
		sources = []string{}
	}
	return askResponse{
		Answer:       result.Text,
		Sources:      sources,
		SourceStatus: string(result.SourceStatus),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func hasKnownCause(err error) bool {
	return errors.Is(err, models.ErrEmbeddingUnavailable) ||
		errors.Is(err, models.ErrGenerationFailed) ||
		errors.Is(err, models.ErrIndexUnavailable) ||
		errors.Is(err, models.ErrUnreadableDocument)
}

// friendlyError keeps wrapped internal detail out of client responses.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		return "the embedding model is unavailable right now, try again shortly"
	case errors.Is(err, models.ErrGenerationFailed):
		return "the language model could not produce an answer, try again shortly"
	case errors.Is(err, models.ErrIndexUnavailable):
		return "no documents are indexed yet"
	case errors.Is(err, models.ErrUnreadableDocument):
		return "the document could not be read as a PDF"
	default:
		return "the request could not be completed, see server logs for detail"
	}
}
