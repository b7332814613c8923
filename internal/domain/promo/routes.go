package promo

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.POST("/promos/validate", h.Validate)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	codes := admin.Group("/admin/promo-codes")
	{
		codes.GET("", h.List)
		codes.POST("", h.Create)
		codes.PUT("/:id", h.Update)
		codes.DELETE("/:id", h.Deactivate)
	}
}

func (h *Handler) RegisterInternalRoutes(internal *gin.RouterGroup) {
	internal.POST("/promos/retry-usage", h.RetryUsage)
}
