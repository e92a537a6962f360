package ui

import (
	"html/template"
	"io/fs"
	"net/http"

	"datalens/adapters/tabular"
	"datalens/internal"
	"datalens/internal/analyzer"
	"datalens/internal/config"
	"datalens/internal/errors"
	"datalens/internal/insight"
	"datalens/internal/usage"

	"github.com/gin-gonic/gin"
)

// Server is the web server hosting the analysis UI and its JSON API.
type Server struct {
	router    *gin.Engine
	cfg       *config.Config
	reader    *tabular.Reader
	analyzer  *analyzer.Analyzer
	insight   *insight.Service
	ledger    *usage.Ledger
	session   *Session
	templates *template.Template
	log       *internal.Logger
}

// NewServer wires the handlers over their dependencies. assets holds the
// embedded templates/ and static/ trees.
func NewServer(cfg *config.Config, insightSvc *insight.Service, ledger *usage.Ledger, assets fs.FS) (*Server, error) {
	gin.SetMode(cfg.Server.GinMode)

	templates, err := template.ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse templates")
	}

	s := &Server{
		router:    gin.Default(),
		cfg:       cfg,
		reader:    tabular.NewReader(),
		analyzer:  analyzer.New(),
		insight:   insightSvc,
		ledger:    ledger,
		session:   NewSession(),
		templates: templates,
		log:       internal.DefaultLogger,
	}
	s.router.MaxMultipartMemory = cfg.Upload.MaxBytes
	s.setupRoutes(assets)
	return s, nil
}

func (s *Server) setupRoutes(assets fs.FS) {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/healthz", s.handleHealth)
	s.router.StaticFS("/static", http.FS(mustSub(assets, "static")))

	s.router.POST("/upload", s.handleUpload)
	s.router.POST("/ask-ai", s.handleAskAI)

	api := s.router.Group("/api")
	{
		api.GET("/models", s.handleModels)
		api.GET("/dataset/view", s.handleView)

		view := api.Group("/view")
		{
			view.POST("/search", s.handleSearch)
			view.POST("/filter", s.handleFilter)
			view.POST("/clear-filters", s.handleClearFilters)
			view.POST("/sort", s.handleSort)
			view.POST("/page", s.handlePage)
			view.POST("/page-size", s.handlePageSize)
		}

		api.GET("/usage/recent", s.handleRecentUsage)
	}
}

// Start runs the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	s.log.Info("web server listening on %s", addr)
	return s.router.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(c.Writer, "index.html", gin.H{
		"Title": s.cfg.AI.Title,
	}); err != nil {
		s.log.Error("failed to render index: %v", err)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "data analysis platform api is running"})
}

// respondError maps application error codes to HTTP statuses and renders the
// uniform error envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeUnsupportedFormat, errors.CodeParseFailed, errors.CodeInvalidInput, errors.CodeNoDataset:
		status = http.StatusBadRequest
	case errors.CodeExternalService:
		status = http.StatusBadGateway
	}

	message := err.Error()
	if appErr, ok := err.(*errors.AppError); ok {
		message = appErr.Message
	}
	s.log.Warn("request failed: %s: %v", code, err)
	c.JSON(status, gin.H{"status": "error", "error": gin.H{"code": code, "message": message}})
}

func mustSub(f fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(f, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
