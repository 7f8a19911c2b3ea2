package gateway

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() {
	e := s.echo

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/refresh", s.handleRefresh)
	authGroup.POST("/logout", s.handleLogout, s.authenticate(true))
	authGroup.GET("/me", s.handleMe, s.authenticate(true), requireAuth)
	authGroup.PATCH("/me", s.handleUpdateMe, s.authenticate(true), requireAuth, s.rateLimited)
	authGroup.POST("/change-password", s.handleChangePassword, s.authenticate(true), requireAuth, s.rateLimited)
	authGroup.POST("/api-credentials", s.handleCreateAPICredential, s.authenticate(true), requireAuth, s.rateLimited)
	authGroup.GET("/api-credentials", s.handleListAPICredentials, s.authenticate(true), requireAuth)
	authGroup.DELETE("/api-credentials/:id", s.handleRevokeAPICredential, s.authenticate(true), requireAuth, s.rateLimited)

	admin := authGroup.Group("/admin", s.authenticate(true), requireAuth, requireAdmin)
	admin.GET("/users", s.handleAdminListUsers)
	admin.POST("/users", s.handleAdminCreateUser, s.rateLimited)
	admin.PATCH("/users/:id", s.handleAdminUpdateUser, s.rateLimited)

	docs := api.Group("/documents", s.authenticate(s.requireAuthForRead || s.requireAuthForWrite))
	docs.POST("", s.handleUpload, s.rateLimited)
	docs.POST("/async", s.handleUploadAsync, s.rateLimited)
	docs.GET("", s.handleListDocuments)
	docs.GET("/:id", s.handleGetDocument)
	docs.GET("/:id/sections", s.handleGetSections)
	docs.GET("/:id/tables", s.handleGetTables)
	docs.GET("/:id/figures", s.handleGetFigures)
	docs.GET("/:id/figures/:filename", s.handleGetFigureFile)
	docs.GET("/:id/references", s.handleGetReferences)
	docs.DELETE("/:id", s.handleDeleteDocument, s.rateLimited)

	api.POST("/search", s.handleSearch, s.authenticate(s.requireAuthForRead))

	llmGroup := api.Group("/llm", s.authenticate(s.requireAuthForWrite))
	llmGroup.POST("/analyze", s.handleAnalyze, s.rateLimited)
	llmGroup.POST("/question", s.handleQuestion, s.rateLimited)
	llmGroup.POST("/compare", s.handleCompare, s.rateLimited)
	llmGroup.POST("/chat", s.handleChat, s.rateLimited)

	jobs := api.Group("/jobs", s.authenticate(s.requireAuthForRead))
	jobs.GET("/:id", s.handleGetJob)
	jobs.GET("", s.handleListJobs)
	jobs.POST("/:id/cancel", s.handleCancelJob, s.authenticate(true), requireAuth, s.rateLimited)
	jobs.GET("/batches", s.handleListBatches)
	jobs.GET("/batches/:batch_id", s.handleGetBatch)

	api.POST("/upload-and-analyze", s.handleUploadAndAnalyze, s.authenticate(s.requireAuthForWrite), s.rateLimited)

	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
}
