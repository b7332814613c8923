package booking

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts guest-facing booking creation.
func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	public.POST("/bookings", h.CreateBooking)
}

func (h *Handler) RegisterStaffRoutes(staff *gin.RouterGroup) {
	bookings := staff.Group("/bookings")
	{
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id/guest", h.UpdateGuest)
		bookings.POST("/:id/stay/preview", h.PreviewStayChange)
		bookings.PATCH("/:id/stay", h.ChangeStay)
		bookings.PATCH("/:id/status", h.UpdateStatus)
		bookings.PATCH("/:id/payment-status", h.UpdatePaymentStatus)
		bookings.POST("/:id/cancel", h.CancelBooking)
	}
}
