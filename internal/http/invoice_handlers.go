package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adilzhm/shopworks-billing/internal/http/middleware"
	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/service"
)

type invoiceItemRequest struct {
	Type        string          `json:"type" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (r invoiceItemRequest) toInput() service.InvoiceItemInput {
	return service.InvoiceItemInput{
		Type:        model.InvoiceItemType(strings.ToUpper(r.Type)),
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
	}
}

type createInvoiceRequest struct {
	CustomerID     uuid.UUID            `json:"customer_id" binding:"required"`
	Items          []invoiceItemRequest `json:"items" binding:"required"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	TaxRate        *decimal.Decimal     `json:"tax_rate"`
	DueDate        *time.Time           `json:"due_date"`
}

func (h *Handler) createInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]service.InvoiceItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.toInput())
	}
	inv, err := h.invoices.CreateStandalone(c.Request.Context(), service.CreateInvoiceInput{
		CustomerID:     req.CustomerID,
		Items:          items,
		DiscountAmount: req.DiscountAmount,
		TaxRate:        req.TaxRate,
		DueDate:        req.DueDate,
		By:             principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) getInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) listInvoices(c *gin.Context) {
	filter := service.InvoiceFilter{Page: parsePage(c)}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
			return
		}
		filter.CustomerID = &id
	}
	if raw := c.Query("job_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job_id"})
			return
		}
		filter.JobID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := model.InvoiceStatus(strings.ToUpper(raw))
		filter.Status = &status
	}

	invoices, total, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		items = append(items, toInvoiceResponse(&invoices[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"invoices": items,
		"meta":     listMeta{Total: total, Offset: filter.Page.Offset, Limit: filter.Page.Limit},
	})
}

func (h *Handler) listOverdueInvoices(c *gin.Context) {
	invoices, err := h.invoices.ListOverdue(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		items = append(items, toInvoiceResponse(&invoices[i]))
	}
	c.JSON(http.StatusOK, gin.H{"invoices": items})
}

func (h *Handler) invoiceHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	history, err := h.invoices.History(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": toHistoryResponse(history)})
}

func (h *Handler) addInvoiceItem(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req invoiceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inv, err := h.invoices.AddItem(c.Request.Context(), id, req.toInput(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) removeInvoiceItem(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseID(c, "itemID")
	if !ok {
		return
	}
	inv, err := h.invoices.RemoveItem(c.Request.Context(), id, itemID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) sendInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Send(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) markInvoiceViewed(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.MarkViewed(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Method    string          `json:"method" binding:"required"`
	Reference *string         `json:"reference"`
}

func (h *Handler) recordPayment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inv, err := h.invoices.RecordPayment(c.Request.Context(), id, service.RecordPaymentInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		By:        principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInvoiceResponse(inv))
}

type refundPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (h *Handler) refundPayment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := parseID(c, "paymentID")
	if !ok {
		return
	}
	var req refundPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	inv, err := h.invoices.RefundPayment(c.Request.Context(), id, service.RefundPaymentInput{
		PaymentID: paymentID,
		Amount:    req.Amount,
		By:        principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

type voidInvoiceRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) voidInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req voidInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inv, err := h.invoices.Void(c.Request.Context(), id, req.Reason, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) deleteInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.Delete(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) revenueReport(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}

	summary, err := h.invoices.Revenue(c.Request.Context(), from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"invoiced":  summary.Invoiced,
		"collected": summary.Collected,
		"open":      summary.Open,
		"count":     summary.Count,
	})
}
