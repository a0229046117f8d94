package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docguard/internal/app"
	"docguard/internal/pkg/textextract"
	"docguard/internal/rag"
	"docguard/internal/transport/http/response"
)

// writeError maps service errors onto the response envelope. Anything
// unrecognised is reported as fallback with a 500.
func writeError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)

	var genErr *rag.GenerationError
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrQuestionEmpty),
		errors.Is(err, app.ErrTextEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrFileMissing),
		errors.Is(err, app.ErrUnsupportedFile):
		response.Error(c, http.StatusBadRequest, response.CodeFileInvalid, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusBadRequest, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, rag.ErrUnknownDocument):
		response.Error(c, http.StatusConflict, response.CodeNoEmbeddings, "document embeddings not found in memory, please re-upload the document")
	case errors.Is(err, rag.ErrEmptyDocument):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeEmptyDocument, "document has no extractable text")
	case errors.Is(err, textextract.ErrExtraction):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeExtractionFailed, "text extraction failed")
	case errors.Is(err, rag.ErrEmbedding):
		response.Error(c, http.StatusBadGateway, response.CodeEmbeddingFailed, err.Error())
	case errors.As(err, &genErr):
		response.Error(c, http.StatusBadGateway, response.CodeGenerationFailed, genErr.Error())
	case errors.Is(err, rag.ErrIndex):
		response.Error(c, http.StatusInternalServerError, response.CodeIndexCorrupted, "vector index error")
	case errors.Is(err, app.ErrKnowledgeBaseUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeKnowledgeBaseUnavailable, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	u, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || u == 0 {
		return 0, app.ErrInvalidInput
	}
	return uint(u), nil
}
