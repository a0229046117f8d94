package http

import (
	"github.com/gin-gonic/gin"

	"docguard/internal/bootstrap"
	"docguard/internal/transport/http/handler"
	"docguard/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Log), middleware.Recovery(app.Log))
	if app.Config.Storage.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = app.Config.Storage.MaxUploadBytes
	}

	healthHandler := handler.NewHealthHandler(app)
	documentHandler := handler.NewDocumentHandler(app.Documents)
	qaHandler := handler.NewQAHandler(app.QA)
	riskHandler := handler.NewRiskHandler(app.Risk)
	indexHandler := handler.NewIndexHandler(app.Retriever)

	router.GET("/healthz", healthHandler.Check)

	v1 := router.Group("/api/v1")
	v1.GET("/healthz", healthHandler.Check)

	documents := v1.Group("/documents")
	documents.POST("", documentHandler.Upload)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.DELETE("/:id", documentHandler.Delete)
	documents.GET("/:id/chunks", documentHandler.Chunks)
	documents.GET("/:id/chat-history", qaHandler.History)
	documents.POST("/:id/analyze-risk", riskHandler.AnalyzeDocument)

	v1.POST("/ask", qaHandler.Ask)
	v1.GET("/sessions/:id", qaHandler.Session)
	v1.POST("/analyze-risks", riskHandler.AnalyzeText)
	v1.POST("/index/compact", indexHandler.Compact)

	return router
}
