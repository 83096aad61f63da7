package api

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/helix/internal/models"
	"github.com/raphaelgruber/helix/internal/placement"
	"github.com/raphaelgruber/helix/internal/service"
	"github.com/raphaelgruber/helix/internal/status"
)

const (
	ownerKey    = "owner"
	ownerHeader = "X-User-ID"

	defaultRecentLimit = 5
	maxRecentLimit     = 50
)

// requireOwner resolves the owner id from the X-User-ID header or the
// user_id query/form field. It identifies, it does not authenticate.
func (s *Server) requireOwner(c *gin.Context) {
	owner := c.GetHeader(ownerHeader)
	if owner == "" {
		owner = c.Query("user_id")
	}
	if owner == "" {
		owner = c.PostForm("user_id")
	}
	if owner == "" {
		s.handleError(c, badRequest("missing user id", nil))
		return
	}
	if err := service.ValidateOwner(owner); err != nil {
		s.handleError(c, err)
		return
	}
	c.Set(ownerKey, owner)
	c.Next()
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"health": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func accepted(c *gin.Context, batch models.Batch) {
	c.JSON(http.StatusOK, gin.H{"message": "saved!", "process_id": batch.ID})
}

// handleUpload stages the multipart "files" and starts a batch for them.
func (s *Server) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		s.handleError(c, badRequest("expected multipart form", err))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		s.handleError(c, badRequest("no files uploaded", nil))
		return
	}
	if len(headers) > s.opts.MaxUploadFiles {
		s.handleError(c, badRequest("at most "+strconv.Itoa(s.opts.MaxUploadFiles)+" files per upload", nil))
		return
	}

	for _, h := range headers {
		if placement.Reserved(h.Filename) {
			s.handleError(c, badRequest(".meta files cannot be uploaded", nil))
			return
		}
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.handleError(c, badRequest("unreadable upload "+h.Filename, err))
			return
		}
		defer f.Close()
		uploads = append(uploads, service.Upload{Name: path.Base(h.Filename), Content: f})
	}

	batch, err := s.runner.StartUploads(c.Request.Context(), c.GetString(ownerKey), uploads)
	if err != nil {
		s.handleError(c, err)
		return
	}
	accepted(c, batch)
}

type processURLsRequest struct {
	URLs []string `json:"urls"`
}

func (s *Server) handleProcessURLs(c *gin.Context) {
	var req processURLsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, badRequest("invalid request body", err))
		return
	}

	urls := make([]string, 0, len(req.URLs))
	for _, raw := range req.URLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			s.handleError(c, badRequest("invalid url "+raw, err))
			return
		}
		urls = append(urls, raw)
	}
	if len(urls) == 0 {
		s.handleError(c, badRequest("no urls given", nil))
		return
	}

	batch, err := s.runner.StartLinks(c.Request.Context(), c.GetString(ownerKey), urls)
	if err != nil {
		s.handleError(c, err)
		return
	}
	accepted(c, batch)
}

func (s *Server) handleRecent(c *gin.Context) {
	limit := defaultRecentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.handleError(c, badRequest("invalid limit", err))
			return
		}
		limit = min(n, maxRecentLimit)
	}

	batches, err := s.batches.ListRecent(c.Request.Context(), c.GetString(ownerKey), limit)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if batches == nil {
		batches = []models.Batch{}
	}
	c.JSON(http.StatusOK, gin.H{"processes": batches})
}

// ownedBatch loads a batch, hiding other owners' batches as not found.
func (s *Server) ownedBatch(c *gin.Context) (models.Batch, bool) {
	batch, err := s.batches.GetBatch(c.Request.Context(), c.Param("id"))
	if err == nil && batch.Owner != c.GetString(ownerKey) {
		err = status.ErrBatchNotFound
	}
	if err != nil {
		s.handleError(c, err)
		return models.Batch{}, false
	}
	return batch, true
}

func (s *Server) handleGetBatch(c *gin.Context) {
	batch, ok := s.ownedBatch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) handleProcessed(c *gin.Context) {
	listing, err := s.files.List(c.Request.Context(), c.GetString(ownerKey))
	if err != nil {
		s.handleError(c, err)
		return
	}
	out := make(map[string][]models.ProcessedFile, len(models.Categories))
	for _, cat := range models.Categories {
		files := listing[cat]
		if files == nil {
			files = []models.ProcessedFile{}
		}
		out[string(cat)] = files
	}
	c.JSON(http.StatusOK, out)
}

type fileRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FileType string `json:"file_type" binding:"required"`
}

func bindFileRequest(c *gin.Context) (fileRequest, models.Category, error) {
	var req fileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, "", badRequest("file_name and file_type are required", err)
	}
	cat, ok := models.ParseCategory(req.FileType)
	if !ok {
		return req, "", badRequest("file_type must be one of docs, media, links", nil)
	}
	if strings.ContainsAny(req.FileName, `/\`) || req.FileName == "." || req.FileName == ".." {
		return req, "", badRequest("invalid file_name", nil)
	}
	return req, cat, nil
}

func (s *Server) handleDelete(c *gin.Context) {
	req, cat, err := bindFileRequest(c)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if err := s.files.Delete(c.Request.Context(), c.GetString(ownerKey), cat, req.FileName); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted", "file_name": req.FileName, "file_type": req.FileType})
}

func (s *Server) handleDownload(c *gin.Context) {
	req, cat, err := bindFileRequest(c)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if cat == models.CategoryLinks {
		s.handleError(c, badRequest("links have no downloadable content", nil))
		return
	}

	r, name, err := s.files.Open(c.Request.Context(), c.GetString(ownerKey), cat, req.FileName)
	if err != nil {
		s.handleError(c, err)
		return
	}
	defer r.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, r, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	})
}
