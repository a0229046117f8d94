package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docguard/internal/app"
	"docguard/internal/transport/http/response"
)

type QAHandler struct {
	qa *app.QAService
}

type AskRequest struct {
	DocumentID uint   `json:"document_id" binding:"required"`
	Question   string `json:"question"`
	SessionID  uint   `json:"session_id"`
}

func NewQAHandler(qa *app.QAService) *QAHandler {
	return &QAHandler{qa: qa}
}

func (h *QAHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.qa.Ask(c.Request.Context(), app.AskInput{
		DocumentID: req.DocumentID,
		Question:   req.Question,
		SessionID:  req.SessionID,
	})
	if err != nil {
		writeError(c, err, "ask failed")
		return
	}
	response.OK(c, result)
}

func (h *QAHandler) History(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}
	history, err := h.qa.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get chat history failed")
		return
	}
	response.OK(c, history)
}

func (h *QAHandler) Session(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}
	session, messages, err := h.qa.GetSession(id)
	if err != nil {
		writeError(c, err, "get session failed")
		return
	}
	response.OK(c, gin.H{"session": session, "messages": messages})
}
