package tax

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.GET("/tax-rules", h.ListActive)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	rules := admin.Group("/admin/tax-rules")
	{
		rules.GET("", h.ListAll)
		rules.POST("", h.Create)
		rules.PUT("/:id", h.Update)
		rules.DELETE("/:id", h.Delete)
	}
}
