// Package server provides the HTTP server for the LISA sign recognition service.
package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ayusman/lisa/internal/cache"
	"github.com/ayusman/lisa/internal/model"
	"github.com/ayusman/lisa/internal/recognizer"
	"github.com/ayusman/lisa/internal/store"
	"github.com/ayusman/lisa/web"
)

// DefaultMaxBodyBytes limits request bodies when Config.MaxBodyBytes is unset.
const DefaultMaxBodyBytes = 16 << 20

// Recognizer is the part of recognizer.Recognizer the handlers use.
type Recognizer interface {
	RecognizeDataURI(uri string) (*recognizer.Outcome, error)
	Labels() []string
}

// Config holds the server configuration.
type Config struct {
	Recognizer   Recognizer
	Store        *store.Store
	Cache        *cache.Results
	Logger       *zap.Logger
	ModelName    string
	ModelVersion string
	MaxBodyBytes int64
}

// Server represents the HTTP server for the LISA application.
type Server struct {
	config    Config
	engine    *gin.Engine
	logger    *zap.Logger
	templates *template.Template
	start     time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.ModelName == "" {
		config.ModelName = model.DefaultModelName
	}
	if config.ModelVersion == "" {
		config.ModelVersion = model.DefaultVersion
	}

	s := &Server{
		config:    config,
		engine:    gin.New(),
		logger:    config.Logger.Named("http"),
		templates: template.Must(web.Templates()),
		start:     time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.engine.HandleMethodNotAllowed = true
	s.engine.SetHTMLTemplate(s.templates)
	s.engine.Use(requestID(), requestLogger(s.logger), recovery(s.logger))

	s.engine.GET("/api/health", s.handleHealth)

	static := s.engine.Group("/static", noCache())
	static.StaticFS("/", http.FS(web.Static()))

	// Pages and recognition routes need a loaded model
	if s.config.Recognizer != nil {
		s.engine.GET("/", s.handleIndex)
		s.engine.GET("/sobre", s.handleAbout)
		s.engine.GET("/info", s.handleInfo)
		s.engine.POST("/processar_imagem", s.handleProcessImage)
		s.engine.GET("/ws", s.handleWebSocket)
	}

	// Prediction log routes need a store
	if s.config.Store != nil {
		s.engine.GET("/api/predictions", s.handlePredictions)
		s.engine.GET("/api/stats", s.handleStats)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Classes": s.config.Recognizer.Labels(),
	})
}

func (s *Server) handleAbout(c *gin.Context) {
	c.HTML(http.StatusOK, "sobre.html", nil)
}

// InfoResponse describes the loaded model.
type InfoResponse struct {
	Model      string   `json:"modelo"`
	Version    string   `json:"versao"`
	Classes    []string `json:"classes"`
	NumClasses int      `json:"num_classes"`
}

func (s *Server) handleInfo(c *gin.Context) {
	classes := s.config.Recognizer.Labels()
	c.JSON(http.StatusOK, InfoResponse{
		Model:      s.config.ModelName,
		Version:    s.config.ModelVersion,
		Classes:    classes,
		NumClasses: len(classes),
	})
}
