package ledger

import "github.com/gin-gonic/gin"

// RegisterPaymentRoutes mounts the payment surface for front desk staff.
func (h *Handler) RegisterPaymentRoutes(staff *gin.RouterGroup) {
	staff.POST("/bookings/:id/payments", h.RecordPayment)
	staff.GET("/bookings/:id/payments", h.ListBookingPayments)
	staff.PUT("/payments/:id", h.EditPayment)
	staff.DELETE("/payments/:id", h.DeletePayment)
}

func (h *Handler) RegisterAccountingRoutes(accounting *gin.RouterGroup) {
	accounts := accounting.Group("/accounts")
	{
		accounts.GET("", h.ListAccounts)
		accounts.GET("/reconcile", h.ReconcileAll)
		accounts.POST("/transfer", h.Transfer)
		accounts.GET("/:id", h.GetAccount)
		accounts.GET("/:id/transactions", h.ListTransactions)
		accounts.GET("/:id/reconcile", h.Reconcile)
		accounts.POST("/:id/deposit", h.Deposit)
		accounts.POST("/:id/withdraw", h.Withdraw)
	}
	accounting.POST("/transactions/:id/reverse", h.ReverseTransaction)
}

func (h *Handler) RegisterInternalRoutes(internal *gin.RouterGroup) {
	internal.POST("/ledger/reconcile", h.ReconcileAll)
}
