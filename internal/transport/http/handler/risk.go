package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docguard/internal/app"
	"docguard/internal/transport/http/response"
)

type RiskHandler struct {
	risk *app.RiskService
}

type AnalyzeTextRequest struct {
	Text string `json:"text"`
}

func NewRiskHandler(risk *app.RiskService) *RiskHandler {
	return &RiskHandler{risk: risk}
}

func (h *RiskHandler) AnalyzeText(c *gin.Context) {
	var req AnalyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	report, err := h.risk.ScanText(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, err, "risk analysis failed")
		return
	}
	response.OK(c, gin.H{"report": report})
}

func (h *RiskHandler) AnalyzeDocument(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}
	report, err := h.risk.ScanDocument(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "risk analysis failed")
		return
	}
	response.OK(c, gin.H{"report": report})
}
