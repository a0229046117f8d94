package response

import "github.com/gin-gonic/gin"

const (
	CodeOK = 0

	CodeBadRequest   = 40000
	CodeFileInvalid  = 40002
	CodeFileTooLarge = 40003

	CodeDocumentNotFound = 40401
	CodeSessionNotFound  = 40402

	CodeNoEmbeddings = 40901

	CodeEmptyDocument    = 42201
	CodeExtractionFailed = 42202

	CodeInternalServer = 50000
	CodeIndexCorrupted = 50002

	CodeEmbeddingFailed  = 50201
	CodeGenerationFailed = 50202

	CodeKnowledgeBaseUnavailable = 50301
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
