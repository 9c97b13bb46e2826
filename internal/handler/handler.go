package handler

import (
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"genico/internal/config"
	"genico/internal/domain"
	"genico/internal/service"
	"genico/internal/templates"
	"genico/internal/upload"
)

const (
	contentTypeHTML   = "text/html; charset=utf-8"
	contentTypeCSS    = "text/css; charset=utf-8"
	contentTypeBinary = "application/octet-stream"

	indexTemplate = "index.html"
	errorTemplate = "error.html"
)

type Handler struct {
	service  service.IconService
	parser   *upload.Parser
	renderer *templates.Renderer
	cfg      *config.Config
	log      *zap.Logger
}

func NewHandler(service service.IconService, renderer *templates.Renderer, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		parser:   upload.NewParser(cfg.App.MaxUploadSize),
		renderer: renderer,
		cfg:      cfg,
		log:      log,
	}
}

// ConvertIcon handles an upload posted to any path.
func (h *Handler) ConvertIcon(c *gin.Context) {
	file, err := h.parser.Parse(c.GetHeader("Content-Type"), c.Request.ContentLength, c.Request.Body)
	if err != nil {
		h.log.Info("No file in upload", zap.Error(err))
		h.renderError(c, http.StatusBadRequest, "Bad Request")
		return
	}

	result := h.service.Convert(c.Request.Context(), file)
	if result.Failure == nil {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Icon.Filename))
		c.Data(http.StatusOK, result.Icon.MimeType(), result.Icon.Data)
		return
	}

	f := result.Failure
	switch f.Kind {
	case domain.MalformedRequest:
		h.renderError(c, http.StatusBadRequest, "Bad Request")
	case domain.ValidationWarning:
		escaped := make([]string, len(f.Warnings))
		for i, w := range f.Warnings {
			escaped[i] = html.EscapeString(w)
		}
		h.renderError(c, http.StatusOK, strings.Join(escaped, "<br>"))
	case domain.ProcessingFailure:
		h.renderError(c, h.processingStatus(f.Err), html.EscapeString(f.Error()))
	default:
		h.log.Error("Unhandled conversion failure", zap.Stringer("kind", f.Kind), zap.Error(f))
		h.renderError(c, http.StatusInternalServerError, "Internal Server Error")
	}
}

// processingStatus keeps failures on a 200 page unless strict status codes are enabled.
func (h *Handler) processingStatus(err error) int {
	if !h.cfg.App.StrictStatus {
		return http.StatusOK
	}
	if errors.Is(err, domain.ErrDecode) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) GetUI(c *gin.Context) {
	page, err := h.renderer.Render(indexTemplate, h.pageVars(nil))
	if err != nil {
		h.log.Error("Failed to render index", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Data(http.StatusOK, contentTypeHTML, page)
}

// GetStatic serves files below the template directory. Paths that would
// resolve outside of it are reported as missing.
func (h *Handler) GetStatic(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("filepath"), "/")
	if rel == "" || !filepath.IsLocal(filepath.FromSlash(rel)) {
		h.log.Warn("Rejected static path", zap.String("path", c.Request.URL.Path))
		c.String(http.StatusNotFound, "File Not Found")
		return
	}

	data, err := readInRoot(h.cfg.App.TemplateDir, filepath.FromSlash(rel))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.log.Warn("Failed to read static file", zap.String("path", rel), zap.Error(err))
		}
		c.String(http.StatusNotFound, "File Not Found")
		return
	}

	contentType := contentTypeBinary
	if strings.HasSuffix(rel, ".css") {
		contentType = contentTypeCSS
	}
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) GetFavicon(c *gin.Context) {
	data, err := os.ReadFile(h.cfg.App.FaviconPath)
	if err != nil {
		c.String(http.StatusNotFound, "Favicon Not Found")
		return
	}
	c.Data(http.StatusOK, domain.IconMimeType, data)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// NotFound answers unrouted requests: 404 for reads, 405 for any method
// other than GET, HEAD and POST.
func (h *Handler) NotFound(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead:
		c.String(http.StatusNotFound, "Not Found")
	default:
		c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (h *Handler) renderError(c *gin.Context, status int, message string) {
	page, err := h.renderer.Render(errorTemplate, h.pageVars(map[string]string{"error_message": message}))
	if err != nil {
		h.log.Error("Failed to render error page", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Data(status, contentTypeHTML, page)
}

// pageVars adds the values every page shares to vars.
func (h *Handler) pageVars(vars map[string]string) map[string]string {
	if vars == nil {
		vars = make(map[string]string, 1)
	}
	vars["static_prefix"] = h.cfg.App.StaticPrefix
	return vars
}

func readInRoot(dir, name string) ([]byte, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	file, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrNotExist
	}
	return io.ReadAll(file)
}
