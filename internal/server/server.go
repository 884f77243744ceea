package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/hitushen/hostsummary/internal/analyzer"
	"github.com/hitushen/hostsummary/internal/models"
	"github.com/hitushen/hostsummary/internal/realtime"
)

// maxBodyBytes 限制 /summarize 请求体大小。
const maxBodyBytes = 10 << 20

const promptEngineering = "Advanced multi-stage prompting with few-shot learning"

var aiTechniques = []string{
	"Chain-of-thought reasoning",
	"Dynamic prompt adaptation",
	"Few-shot learning examples",
	"Structured output generation",
	"Temperature optimization",
}

// Summarizer 对一批主机记录生成摘要。
type Summarizer interface {
	Run(ctx context.Context, hosts []models.HostRecord) (models.SummarizeResponse, error)
}

// Options 构造 Server 所需的依赖。
type Options struct {
	Summarizer  Summarizer
	Broker      *realtime.Broker
	Mode        string
	Model       string
	CORSOrigins []string
	Logger      *logrus.Logger
}

// Server 负责 HTTP 路由与请求编解码，分析逻辑交给 Summarizer。
type Server struct {
	summarizer Summarizer
	broker     *realtime.Broker
	mode       string
	model      string
	origins    []string
	log        *logrus.Logger
}

// HealthResponse 是 GET /health 的响应体。
type HealthResponse struct {
	OK                bool     `json:"ok"`
	Mode              string   `json:"mode"`
	Model             string   `json:"model"`
	PromptEngineering string   `json:"prompt_engineering"`
	AITechniques      []string `json:"ai_techniques"`
}

// New 创建 Server。
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	broker := opts.Broker
	if broker == nil {
		broker = realtime.NewBroker()
	}
	return &Server{
		summarizer: opts.Summarizer,
		broker:     broker,
		mode:       opts.Mode,
		model:      opts.Model,
		origins:    opts.CORSOrigins,
		log:        log,
	}
}

// Close 断开所有 SSE 连接。
func (s *Server) Close() {
	s.broker.Close()
}

// Handler 返回根 HTTP 处理器。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	r.Post("/summarize", s.summarize)
	r.Get("/api/events", s.streamEvents)
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{
		OK:                true,
		Mode:              s.mode,
		Model:             s.model,
		PromptEngineering: promptEngineering,
		AITechniques:      aiTechniques,
	})
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	var req models.SummarizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeMessage(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Hosts) == 0 {
		writeMessage(w, "No hosts provided", http.StatusBadRequest)
		return
	}

	resp, err := s.summarizer.Run(r.Context(), req.Hosts)
	if err != nil {
		if errors.Is(err, analyzer.ErrEmptyBatch) {
			writeMessage(w, "No hosts provided", http.StatusBadRequest)
			return
		}
		s.log.WithError(err).Error("summarize failed")
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	if resp.Items == nil {
		resp.Items = []models.HostSummary{}
	}
	writeJSON(w, resp)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cleanup := s.broker.Subscribe()
	defer func() {
		cleanup()
		s.log.WithField("subscribers", s.broker.Subscribers()).Debug("event stream closed")
	}()
	s.log.WithField("subscribers", s.broker.Subscribers()).Debug("event stream opened")

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-s.broker.Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErr(w http.ResponseWriter, err error, status int) {
	writeMessage(w, err.Error(), status)
}

func writeMessage(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
