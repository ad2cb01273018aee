package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler, authMiddleware gin.HandlerFunc, environment string) *gin.Engine {
	if environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	quotes := protected.Group("/quotes")
	{
		quotes.POST("", h.createQuote)
		quotes.GET("", h.listQuotes)
		quotes.GET("/follow-up", h.listQuoteFollowUps)
		quotes.GET("/:id", h.getQuote)
		quotes.DELETE("/:id", h.deleteQuote)
		quotes.GET("/:id/history", h.quoteHistory)
		quotes.POST("/:id/items", h.addQuoteItem)
		quotes.PUT("/:id/items/:itemID", h.updateQuoteItem)
		quotes.DELETE("/:id/items/:itemID", h.removeQuoteItem)
		quotes.POST("/:id/send", h.sendQuote)
		quotes.POST("/:id/viewed", h.markQuoteViewed)
		quotes.POST("/:id/respond", h.respondQuote)
		quotes.POST("/:id/revise", h.reviseQuote)
		quotes.POST("/:id/convert", h.convertQuote)
	}

	jobs := protected.Group("/jobs")
	{
		jobs.POST("", h.createJob)
		jobs.GET("", h.listJobs)
		jobs.GET("/overdue", h.listOverdueJobs)
		jobs.GET("/:id", h.getJob)
		jobs.DELETE("/:id", h.deleteJob)
		jobs.GET("/:id/history", h.jobHistory)
		jobs.POST("/:id/status", h.updateJobStatus)
		jobs.POST("/:id/schedule", h.scheduleJob)
		jobs.POST("/:id/tasks", h.addJobTask)
		jobs.PATCH("/:id/tasks/:taskID", h.updateJobTask)
		jobs.DELETE("/:id/tasks/:taskID", h.removeJobTask)
		jobs.POST("/:id/parts", h.addJobPart)
		jobs.PATCH("/:id/parts/:partID/status", h.updateJobPartStatus)
		jobs.POST("/:id/labor", h.addJobLabor)
		jobs.DELETE("/:id/labor/:laborID", h.removeJobLabor)
		jobs.POST("/:id/invoice", h.invoiceJob)
	}

	invoices := protected.Group("/invoices")
	{
		invoices.POST("", h.createInvoice)
		invoices.GET("", h.listInvoices)
		invoices.GET("/overdue", h.listOverdueInvoices)
		invoices.GET("/:id", h.getInvoice)
		invoices.DELETE("/:id", h.deleteInvoice)
		invoices.GET("/:id/history", h.invoiceHistory)
		invoices.POST("/:id/items", h.addInvoiceItem)
		invoices.DELETE("/:id/items/:itemID", h.removeInvoiceItem)
		invoices.POST("/:id/send", h.sendInvoice)
		invoices.POST("/:id/viewed", h.markInvoiceViewed)
		invoices.POST("/:id/payments", h.recordPayment)
		invoices.POST("/:id/payments/:paymentID/refund", h.refundPayment)
		invoices.POST("/:id/void", h.voidInvoice)
	}

	protected.GET("/reports/revenue", h.revenueReport)

	return router
}
