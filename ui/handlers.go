package ui

import (
	"io"
	"net/http"
	"strconv"

	"datalens/domain/dataset"
	"datalens/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// viewPayload is the JSON shape every view endpoint returns: the visible
// slice plus enough metadata to render the table controls.
type viewPayload struct {
	Rows        []dataset.Record              `json:"rows"`
	Columns     []string                      `json:"columns"`
	ColumnTypes map[string]dataset.ColumnType `json:"column_types"`
	TotalRows   int                           `json:"total_filtered_count"`
	TotalPages  int                           `json:"total_pages"`
	PageIndex   int                           `json:"page_index"`
	PageSize    int                           `json:"page_size"`
	ViewState   dataset.ViewState             `json:"view_state"`
}

func viewResponse(snap ViewSnapshot) viewPayload {
	return viewPayload{
		Rows:        snap.View.VisibleRows,
		Columns:     snap.Columns,
		ColumnTypes: snap.ColumnTypes,
		TotalRows:   snap.View.TotalFilteredCount,
		TotalPages:  snap.View.TotalPages,
		PageIndex:   snap.View.PageIndex,
		PageSize:    snap.View.PageSize,
		ViewState:   snap.State,
	}
}

func (s *Server) handleUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		s.respondError(c, errors.InvalidInput("missing file field"))
		return
	}
	defer file.Close()

	if header.Size > s.cfg.Upload.MaxBytes {
		s.respondError(c, errors.InvalidInput("file exceeds the upload size limit"))
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, s.cfg.Upload.MaxBytes+1))
	if err != nil {
		s.respondError(c, errors.Wrap(err, "failed to read upload"))
		return
	}
	if int64(len(content)) > s.cfg.Upload.MaxBytes {
		s.respondError(c, errors.InvalidInput("file exceeds the upload size limit"))
		return
	}

	ds, info, err := s.reader.ParseUpload(content, header.Filename)
	if err != nil {
		s.respondError(c, err)
		return
	}
	ds.ID = uuid.NewString()

	stats, err := s.analyzer.Compute(c.Request.Context(), ds)
	if err != nil {
		s.respondError(c, errors.Wrap(err, "failed to analyze dataset"))
		return
	}
	charts := s.analyzer.Visualizations(ds)
	view := s.session.Replace(ds, stats, charts, info)

	s.log.Info("dataset %s loaded: %d rows, %d columns (%s)", ds.ID, stats.RowCount, stats.ColumnCount, info.FileName)
	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"data":           viewResponse(view),
		"stats":          stats,
		"visualizations": charts,
		"file_info":      info,
	})
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
	Model    string `json:"model"`
	// Context is accepted for wire compatibility with clients that send
	// their table state along. The prompt is built server-side from the
	// live dataset and its stats, which carry strictly more than any
	// client-supplied snapshot, so the field is not consulted.
	Context map[string]any `json:"context"`
}

func (s *Server) handleAskAI(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.InvalidInput("question is required"))
		return
	}

	ds, stats, ok := s.session.Snapshot()
	if !ok {
		s.respondError(c, errors.NoDataset())
		return
	}

	answer := s.insight.Ask(c.Request.Context(), ds, stats, req.Question, req.Model)
	c.JSON(http.StatusOK, answer)
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, s.insight.Models())
}

func (s *Server) handleView(c *gin.Context) {
	if !s.session.HasData() {
		s.respondError(c, errors.NoDataset())
		return
	}
	c.JSON(http.StatusOK, viewResponse(s.session.View()))
}

func (s *Server) handleSearch(c *gin.Context) {
	var req struct {
		Term string `json:"term"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.InvalidInput("invalid search request"))
		return
	}
	if !s.session.HasData() {
		s.respondError(c, errors.NoDataset())
		return
	}
	c.JSON(http.StatusOK, viewResponse(s.session.SetSearch(req.Term)))
}

func (s *Server) handleFilter(c *gin.Context) {
	var req struct {
		Column string `json:"column" binding:"required"`
		Value  string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.InvalidInput("column is required"))
		return
	}
	if !s.session.HasData() {
		s.respondError(c, errors.NoDataset())
		return
	}
	c.JSON(http.StatusOK, viewResponse(s.session.SetFilter(req.Column, req.Value)))
}

func (s *Server) handleClearFilters(c *gin.Context) {
	if !s.session.HasData() {
		s.respondError(c, errors.NoDataset())
		return
	}
	c.JSON(http.StatusOK, viewResponse(s.session.ClearFilters()))
}

func (s *Server) handleSort(c *gin.Context) {
	var req struct {
		Key       string `json:"key" binding:"required"`
		Direction string `json:"direction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.InvalidInput("sort key is required"))
		return
	}
	if !s.session.HasData() {
		s.respondError(c, errors.NoDataset())
		return
	}
	view := s.session.SetSort(req.Key, dataset.SortDirection(req.Direction))
	c.JSON(http.StatusOK, viewResponse(view))
}

func (s *Server) handlePage(c *gin.Context) {
	var req struct {
		Page int `json:"page"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.InvalidInput("invalid page request"))
		return
	}
	if !s.session.HasData() {
		s.respondError(c, errors.NoDataset())
		return
	}
	c.JSON(http.StatusOK, viewResponse(s.session.SetPage(req.Page)))
}

func (s *Server) handlePageSize(c *gin.Context) {
	var req struct {
		Size int `json:"size"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.InvalidInput("invalid page size request"))
		return
	}
	if !s.session.HasData() {
		s.respondError(c, errors.NoDataset())
		return
	}
	c.JSON(http.StatusOK, viewResponse(s.session.SetPageSize(req.Size)))
}

func (s *Server) handleRecentUsage(c *gin.Context) {
	if !s.ledger.Enabled() {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "usage": []any{}})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, errors.Wrap(err, "failed to load usage history"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "usage": entries})
}
