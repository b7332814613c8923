package catalog

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.GET("/room-types", h.ListRoomTypes)
	public.GET("/room-types/:id", h.GetRoomType)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/room-types", h.CreateRoomType)
	admin.PUT("/room-types/:id", h.UpdateRoomType)
	admin.GET("/rooms", h.ListRooms)
	admin.POST("/rooms", h.CreateRoom)
}
