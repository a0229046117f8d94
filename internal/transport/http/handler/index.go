package handler

import (
	"github.com/gin-gonic/gin"

	"docguard/internal/rag"
	"docguard/internal/transport/http/response"
)

type IndexHandler struct {
	retriever *rag.Retriever
}

func NewIndexHandler(retriever *rag.Retriever) *IndexHandler {
	return &IndexHandler{retriever: retriever}
}

// Compact rebuilds the vector index without tombstoned positions.
func (h *IndexHandler) Compact(c *gin.Context) {
	response.OK(c, h.retriever.Compact())
}
