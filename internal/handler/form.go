package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"deckgen-web/internal/artifact"
	"deckgen-web/internal/config"
	"deckgen-web/internal/form"
	"deckgen-web/internal/model"
	"deckgen-web/internal/service"
	"deckgen-web/internal/storage"
	"deckgen-web/internal/utils"
	"deckgen-web/internal/view"
	"deckgen-web/pkg/logger"

	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 30 * time.Second

type FormHandler struct {
	formService *service.FormService
	renderer    *view.Renderer

	cookieName string
	cookieTTL  time.Duration
	maxUpload  int64
	heartbeat  time.Duration
}

func NewFormHandler(formService *service.FormService, renderer *view.Renderer, cfg *config.Config) *FormHandler {
	return &FormHandler{
		formService: formService,
		renderer:    renderer,
		cookieName:  cfg.Session.CookieName,
		cookieTTL:   cfg.Session.TTL,
		maxUpload:   cfg.Server.MaxUploadBytes,
		heartbeat:   heartbeatInterval,
	}
}

// Register mounts the page, form actions and the JSON/SSE API.
func (h *FormHandler) Register(router gin.IRouter) {
	router.GET("/", h.Index)

	f := router.Group("/form")
	{
		f.POST("/text", h.SetText)
		f.POST("/source", h.SelectSource)
		f.POST("/source/clear", h.ClearSource)
		f.POST("/template", h.SelectTemplate)
		f.POST("/template/clear", h.ClearTemplate)
		f.POST("/submit", h.Submit)
		f.GET("/download/:id", h.Download)
	}

	api := router.Group("/api")
	{
		api.GET("/form", h.State)
		api.GET("/form/events", h.Events)
	}
}

func (h *FormHandler) Index(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	themeName := h.preference(c, "theme")
	variant := h.preference(c, "variant")

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, session.Form.Snapshot(), themeName, variant); err != nil {
		logger.Errorf("Failed to render form: %v", err)
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *FormHandler) SetText(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req model.TextRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session.Form.SetInlineText(req.Text)
	h.respond(c, session, http.StatusOK)
}

func (h *FormHandler) SelectSource(c *gin.Context) {
	h.selectFile(c, func(s *storage.Session, f *model.FileRef) error {
		return s.Form.SelectSourceFile(f)
	})
}

func (h *FormHandler) SelectTemplate(c *gin.Context) {
	h.selectFile(c, func(s *storage.Session, f *model.FileRef) error {
		return s.Form.SelectTemplateFile(f)
	})
}

func (h *FormHandler) selectFile(c *gin.Context, apply func(*storage.Session, *model.FileRef) error) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	file, err := h.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := apply(session, file); err != nil {
		logger.WithFields(logger.Fields{
			"session": session.ID,
			"file":    file.Name,
		}).Info("rejected upload: ", err)

		var validation *form.ValidationError
		if errors.As(err, &validation) {
			h.respond(c, session, http.StatusUnprocessableEntity)
			return
		}
	}
	h.respond(c, session, http.StatusOK)
}

func (h *FormHandler) ClearSource(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Form.ClearSourceFile()
	h.respond(c, session, http.StatusOK)
}

func (h *FormHandler) ClearTemplate(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Form.ClearTemplateFile()
	h.respond(c, session, http.StatusOK)
}

// Submit blocks until the backend answers. The request context is detached
// so a closed tab does not abort a generation already in flight.
func (h *FormHandler) Submit(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	// An empty textarea next to a chosen file must not drop the file.
	if text, ok := c.GetPostForm("text"); ok {
		if text != "" || session.Form.Snapshot().SourceFile == nil {
			session.Form.SetInlineText(text)
		}
	}

	_, err := session.Form.Submit(context.WithoutCancel(c.Request.Context()))

	var (
		validation *form.ValidationError
		generation *form.GenerationError
	)
	switch {
	case err == nil:
		h.respond(c, session, http.StatusOK)
	case errors.As(err, &validation):
		h.respond(c, session, http.StatusUnprocessableEntity)
	case errors.As(err, &generation):
		h.respond(c, session, http.StatusBadGateway)
	case errors.Is(err, form.ErrSubmitInProgress), errors.Is(err, form.ErrClosed):
		h.respond(c, session, http.StatusConflict)
	default:
		logger.Errorf("Unexpected submit error for session %s: %v", session.ID, err)
		h.respond(c, session, http.StatusInternalServerError)
	}
}

func (h *FormHandler) Download(c *gin.Context) {
	sessionID, err := c.Cookie(h.cookieName)
	if err != nil || sessionID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": artifact.ErrNotFound.Error()})
		return
	}

	a, err := h.formService.Download(sessionID, c.Param("id"))
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("Failed to open artifact %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open presentation"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, a.ContentType, a.Data)
}

func (h *FormHandler) State(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newStateResponse(session.ID, session.Form.Snapshot()))
}

// Events streams a "state" event per form change until the client leaves or
// the session is torn down.
func (h *FormHandler) Events(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	updates, cancel := session.Form.Subscribe()
	defer cancel()

	sseWriter := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case state, ok := <-updates:
			if !ok {
				sseWriter.Close()
				return
			}
			data, err := json.Marshal(newStateResponse(session.ID, state))
			if err != nil {
				logger.Errorf("Failed to marshal form state: %v", err)
				continue
			}
			if err := sseWriter.Write("state", string(data)); err != nil {
				logger.Warnf("Failed to write SSE: %v", err)
				return
			}

		case <-ticker.C:
			if err := sseWriter.Comment("keep-alive"); err != nil {
				logger.Warnf("Heartbeat failed: %v", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// preference reads a display choice from the query, remembering it in a
// cookie so it survives the redirect after form posts.
func (h *FormHandler) preference(c *gin.Context, key string) string {
	name := h.cookieName + "_" + key
	if value, ok := c.GetQuery(key); ok {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, value, int(h.cookieTTL.Seconds()), "/", "", false, true)
		return value
	}
	value, _ := c.Cookie(name)
	return value
}

// session resolves the visitor's session, issuing a cookie for new ones.
func (h *FormHandler) session(c *gin.Context) (*storage.Session, bool) {
	id, _ := c.Cookie(h.cookieName)

	session, created, err := h.formService.Session(id)
	if err != nil {
		logger.Errorf("Failed to resolve session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return nil, false
	}
	if created {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookieName, session.ID, int(h.cookieTTL.Seconds()), "/", "", false, true)
	}
	return session, true
}

func (h *FormHandler) readUpload(c *gin.Context) (*model.FileRef, error) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	header, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file upload required: %w", err)
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	return &model.FileRef{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// respond answers JSON clients with the state and redirects form posts back
// to the page.
func (h *FormHandler) respond(c *gin.Context, session *storage.Session, status int) {
	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(status, newStateResponse(session.ID, session.Form.Snapshot()))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func newStateResponse(sessionID string, s form.State) model.FormStateResponse {
	resp := model.FormStateResponse{
		SessionID:        sessionID,
		SourceText:       s.SourceText,
		IsSubmitting:     s.IsSubmitting,
		CanSubmit:        s.CanSubmit(),
		Error:            s.Error,
		SourceInputGen:   s.SourceInputGen,
		TemplateInputGen: s.TemplateInputGen,
	}
	if s.SourceFile != nil {
		resp.SourceFile = &model.FileInfo{Name: s.SourceFile.Name, Size: s.SourceFile.Size()}
	}
	if s.TemplateFile != nil {
		resp.TemplateFile = &model.FileInfo{Name: s.TemplateFile.Name, Size: s.TemplateFile.Size()}
	}
	if s.Result != nil {
		resp.Download = &model.DownloadInfo{
			URL:       view.DownloadPath + s.Result.ID,
			FileName:  s.Result.Name,
			Size:      s.Result.Size,
			CreatedAt: s.Result.CreatedAt,
		}
	}
	return resp
}
