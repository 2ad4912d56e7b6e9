package api

import (
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"battforge/app"
	"battforge/internal/errors"
	"battforge/internal/report"
	"battforge/ports"

	"github.com/gin-gonic/gin"
)

// maxUploadBytes caps a single uploaded file.
const maxUploadBytes = 50 << 20

// Server exposes the analysis engine over HTTP.
type Server struct {
	router   *gin.Engine
	analysis *app.AnalysisService
	batch    *app.BatchService
	history  ports.HistoryRepositoryPort
}

// NewServer wires routes. history may be nil, which disables persistence and
// turns the history endpoint into an empty list.
func NewServer(analysis *app.AnalysisService, batch *app.BatchService, history ports.HistoryRepositoryPort, ginMode string) *Server {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	s := &Server{
		router:   gin.Default(),
		analysis: analysis,
		batch:    batch,
		history:  history,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)
	s.router.POST("/api/analyze", s.handleAnalyze)
	s.router.POST("/api/analyze/batch", s.handleAnalyzeBatch)
	s.router.GET("/api/history", s.handleHistory)
}

// Start begins serving on the given address.
func (s *Server) Start(addr string) error {
	log.Printf("[API] listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAnalyze runs the universal analysis on one multipart upload.
// Form fields: file (required), chemistry_type, local_mode. With
// ?render=html the response is the HTML report instead of JSON.
func (s *Server) handleAnalyze(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}

	content, err := readUpload(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := app.AnalysisRequest{
		Content:   content,
		Filename:  fileHeader.Filename,
		Chemistry: c.PostForm("chemistry_type"),
		LocalMode: c.PostForm("local_mode") == "true",
	}

	result, err := s.analysis.Analyze(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "code": errors.GetCode(err)})
		return
	}

	s.recordHistory(c, result)

	if c.Query("render") == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(result))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"report":          result,
		"report_markdown": report.Markdown(result),
	})
}

// handleAnalyzeBatch analyzes every file in the multipart field "files".
func (s *Server) handleAnalyzeBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	files := make([]app.BatchFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		content, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		files = append(files, app.BatchFile{Filename: fh.Filename, Content: content})
	}

	summary := s.batch.Process(c.Request.Context(),
		files, c.PostForm("chemistry_type"), c.PostForm("local_mode") == "true")

	for _, item := range summary.Results {
		if item.Report != nil {
			s.recordHistory(c, item.Report)
		}
	}

	c.JSON(http.StatusOK, summary)
}

// handleHistory lists recent persisted analyses, newest first.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"records": []ports.AnalysisRecord{}})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.history.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// recordHistory persists an analysis outcome. Persistence failures are
// logged, never surfaced.
func (s *Server) recordHistory(c *gin.Context, result *app.AnalysisReport) {
	if s.history == nil {
		return
	}

	metrics, err := json.Marshal(result)
	if err != nil {
		log.Printf("[API] could not serialize report %s for history: %v", result.ID, err)
		return
	}

	record := ports.AnalysisRecord{
		ID:          result.ID,
		Filename:    result.Filename,
		DatasetType: result.DatasetType,
		Summary:     result.Summary,
		MetricsJSON: string(metrics),
		CreatedAt:   result.CreatedAt,
	}
	if err := s.history.SaveRecord(c.Request.Context(), record); err != nil {
		log.Printf("[API] could not persist history record %s: %v", result.ID, err)
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadBytes {
		return nil, errors.InvalidInput("uploaded file exceeds size limit")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "could not open uploaded file")
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
}

// statusFor maps application error codes to HTTP statuses. Parse and mapping
// failures are client problems: the upload could not be understood.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeParseError, errors.CodeMappingError, errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
