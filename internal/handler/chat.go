package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"docchat/internal/model"
	"docchat/internal/stub"
	"docchat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// DocumentHandler serves the document chat REST contract from a stub
// backend. Every failure answers {"success": false, "error": "..."}.
type DocumentHandler struct {
	backend *stub.Backend
}

func NewDocumentHandler(backend *stub.Backend) *DocumentHandler {
	return &DocumentHandler{
		backend: backend,
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// failFor maps backend errors onto status codes.
func failFor(c *gin.Context, err error) {
	var reqErr *stub.RequestError
	switch {
	case errors.As(err, &reqErr):
		fail(c, http.StatusBadRequest, reqErr.Message)
	case stub.IsNotFound(err):
		fail(c, http.StatusNotFound, "Session not found or access denied")
	default:
		logger.Errorf("request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		fail(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *DocumentHandler) ListSessions(c *gin.Context) {
	recs, err := h.backend.Sessions()
	if err != nil {
		failFor(c, err)
		return
	}

	// The list endpoint uses the short field names.
	sessions := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		sessions = append(sessions, gin.H{
			"id":         rec.Session.ID,
			"filename":   rec.Session.DocumentName,
			"created_at": rec.Session.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

func (h *DocumentHandler) GetSession(c *gin.Context) {
	rec, err := h.backend.Detail(c.Param("session_id"))
	if err != nil {
		failFor(c, err)
		return
	}

	history := rec.Messages
	if history == nil {
		history = []model.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"session":      rec.Session,
		"chat_history": history,
	})
}

func (h *DocumentHandler) DeleteSession(c *gin.Context) {
	if err := h.backend.Delete(c.Param("session_id")); err != nil {
		failFor(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session deleted successfully"})
}

func (h *DocumentHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Session ID and message are required")
		return
	}

	ans, err := h.backend.Chat(req.SessionID, req.Message)
	if err != nil {
		failFor(c, err)
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		Envelope:    model.Envelope{Success: true},
		Response:    ans.Response,
		SessionID:   req.SessionID,
		SourcesUsed: ans.SourcesUsed,
		Confidence:  ans.Confidence,
	})
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "No file provided")
		return
	}
	if header.Filename == "" {
		fail(c, http.StatusBadRequest, "No file selected")
		return
	}
	if limit := h.backend.MaxUploadBytes(); limit > 0 && header.Size > limit {
		fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large. Max size is %dMB", limit/(1024*1024)))
		return
	}

	f, err := header.Open()
	if err != nil {
		failFor(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		failFor(c, err)
		return
	}

	rec, err := h.backend.Upload(header.Filename, data)
	if err != nil {
		failFor(c, err)
		return
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		Envelope: model.Envelope{
			Success: true,
			Message: fmt.Sprintf("Document %q uploaded successfully", rec.Session.DocumentName),
		},
		SessionID: rec.Session.ID,
	})
}

func (h *DocumentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthStatus{
		Status:  "healthy",
		Service: "document-qa-api",
		Version: "1.0.0",
	})
}
