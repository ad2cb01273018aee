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

type quoteItemRequest struct {
	Type        string          `json:"type" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (r quoteItemRequest) toInput() service.QuoteItemInput {
	return service.QuoteItemInput{
		Type:        model.QuoteItemType(strings.ToUpper(r.Type)),
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
	}
}

type createQuoteRequest struct {
	CustomerID       uuid.UUID          `json:"customer_id" binding:"required"`
	ServiceRequestID *uuid.UUID         `json:"service_request_id"`
	Items            []quoteItemRequest `json:"items" binding:"required"`
	DiscountAmount   decimal.Decimal    `json:"discount_amount"`
	TaxRate          *decimal.Decimal   `json:"tax_rate"`
	ValidUntil       *time.Time         `json:"valid_until"`
}

func (h *Handler) createQuote(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]service.QuoteItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.toInput())
	}
	quote, err := h.quotes.Create(c.Request.Context(), service.CreateQuoteInput{
		CustomerID:       req.CustomerID,
		ServiceRequestID: req.ServiceRequestID,
		Items:            items,
		DiscountAmount:   req.DiscountAmount,
		TaxRate:          req.TaxRate,
		ValidUntil:       req.ValidUntil,
		By:               principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toQuoteResponse(quote))
}

func (h *Handler) getQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) listQuotes(c *gin.Context) {
	filter := service.QuoteFilter{Page: parsePage(c)}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
			return
		}
		filter.CustomerID = &id
	}
	if raw := c.Query("family_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid family_id"})
			return
		}
		filter.FamilyID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := model.QuoteStatus(strings.ToUpper(raw))
		filter.Status = &status
	}

	quotes, total, err := h.quotes.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := make([]quoteResponse, 0, len(quotes))
	for i := range quotes {
		items = append(items, toQuoteResponse(&quotes[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"quotes": items,
		"meta":   listMeta{Total: total, Offset: filter.Page.Offset, Limit: filter.Page.Limit},
	})
}

func (h *Handler) quoteHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	history, err := h.quotes.History(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": toHistoryResponse(history)})
}

func (h *Handler) addQuoteItem(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req quoteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quote, err := h.quotes.AddItem(c.Request.Context(), id, req.toInput(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) updateQuoteItem(c *gin.Context) {
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
	var req quoteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quote, err := h.quotes.UpdateItem(c.Request.Context(), id, itemID, req.toInput(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) removeQuoteItem(c *gin.Context) {
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
	quote, err := h.quotes.RemoveItem(c.Request.Context(), id, itemID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) sendQuote(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.Send(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) markQuoteViewed(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.MarkViewed(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuoteResponse(quote))
}

type respondQuoteRequest struct {
	Accepted       bool    `json:"accepted"`
	ApprovedByName *string `json:"approved_by_name"`
	DeclineReason  *string `json:"decline_reason"`
}

func (h *Handler) respondQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req respondQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quote, err := h.quotes.Respond(c.Request.Context(), id, service.RespondQuoteInput{
		Accepted:       req.Accepted,
		ApprovedByName: req.ApprovedByName,
		DeclineReason:  req.DeclineReason,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) reviseQuote(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	next, err := h.quotes.Revise(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toQuoteResponse(next))
}

func (h *Handler) convertQuote(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	job, err := h.conversions.QuoteToJob(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJobResponse(job))
}

func (h *Handler) deleteQuote(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.quotes.Delete(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listQuoteFollowUps(c *gin.Context) {
	daysOld := intQuery(c, "days_old", 7)
	quotes, err := h.quotes.ListPendingFollowUp(c.Request.Context(), daysOld)
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := make([]quoteResponse, 0, len(quotes))
	for i := range quotes {
		items = append(items, toQuoteResponse(&quotes[i]))
	}
	c.JSON(http.StatusOK, gin.H{"quotes": items})
}
