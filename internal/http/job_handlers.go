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

type jobTaskRequest struct {
	Description     string          `json:"description" binding:"required"`
	EstimatedHours  decimal.Decimal `json:"estimated_hours"`
	DependsOnTaskID *uuid.UUID      `json:"depends_on_task_id"`
}

type createJobRequest struct {
	CustomerID uuid.UUID        `json:"customer_id" binding:"required"`
	Tasks      []jobTaskRequest `json:"tasks"`
	DueDate    *time.Time       `json:"due_date"`
}

func (h *Handler) createJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tasks := make([]service.JobTaskInput, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		tasks = append(tasks, service.JobTaskInput{
			Description:     t.Description,
			EstimatedHours:  t.EstimatedHours,
			DependsOnTaskID: t.DependsOnTaskID,
		})
	}
	job, err := h.jobs.Create(c.Request.Context(), service.CreateJobInput{
		CustomerID: req.CustomerID,
		Tasks:      tasks,
		DueDate:    req.DueDate,
		By:         principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJobResponse(job))
}

func (h *Handler) getJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

func (h *Handler) listJobs(c *gin.Context) {
	filter := service.JobFilter{Page: parsePage(c)}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
			return
		}
		filter.CustomerID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := model.JobStatus(strings.ToUpper(raw))
		filter.Status = &status
	}

	jobs, total, err := h.jobs.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, toJobResponse(&jobs[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs": items,
		"meta": listMeta{Total: total, Offset: filter.Page.Offset, Limit: filter.Page.Limit},
	})
}

func (h *Handler) listOverdueJobs(c *gin.Context) {
	jobs, err := h.jobs.ListOverdue(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, toJobResponse(&jobs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": items})
}

func (h *Handler) jobHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	history, err := h.jobs.History(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": toHistoryResponse(history)})
}

type updateJobStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

func (h *Handler) updateJobStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateJobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, valid := model.ParseJobStatus(strings.ToUpper(req.Status))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	job, err := h.jobs.UpdateStatus(c.Request.Context(), id, service.UpdateJobStatusInput{
		Status: status,
		Notes:  req.Notes,
		By:     principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

type scheduleJobRequest struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

func (h *Handler) scheduleJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req scheduleJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := h.jobs.Schedule(c.Request.Context(), id, service.ScheduleJobInput{
		Start: req.Start,
		End:   req.End,
		By:    principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

func (h *Handler) addJobTask(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req jobTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := h.jobs.AddTask(c.Request.Context(), id, service.JobTaskInput{
		Description:     req.Description,
		EstimatedHours:  req.EstimatedHours,
		DependsOnTaskID: req.DependsOnTaskID,
	}, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

type updateTaskRequest struct {
	Status      *string          `json:"status"`
	ActualHours *decimal.Decimal `json:"actual_hours"`
}

func (h *Handler) updateJobTask(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	taskID, ok := parseID(c, "taskID")
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.UpdateTaskInput{ActualHours: req.ActualHours, By: principal}
	if req.Status != nil {
		status, valid := model.ParseTaskStatus(strings.ToUpper(*req.Status))
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		input.Status = &status
	}

	job, err := h.jobs.UpdateTask(c.Request.Context(), id, taskID, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

func (h *Handler) removeJobTask(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	taskID, ok := parseID(c, "taskID")
	if !ok {
		return
	}
	job, err := h.jobs.RemoveTask(c.Request.Context(), id, taskID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

type jobPartRequest struct {
	TaskID      *uuid.UUID      `json:"task_id"`
	PartRef     string          `json:"part_ref" binding:"required"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (h *Handler) addJobPart(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req jobPartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := h.jobs.AddPart(c.Request.Context(), id, service.JobPartInput{
		TaskID:      req.TaskID,
		PartRef:     req.PartRef,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		UnitPrice:   req.UnitPrice,
		By:          principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

type updatePartStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateJobPartStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	partID, ok := parseID(c, "partID")
	if !ok {
		return
	}
	var req updatePartStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, valid := model.ParsePartStatus(strings.ToUpper(req.Status))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	job, err := h.jobs.UpdatePartStatus(c.Request.Context(), id, partID, status, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

type jobLaborRequest struct {
	TaskID        *uuid.UUID       `json:"task_id"`
	EmployeeID    uuid.UUID        `json:"employee_id" binding:"required"`
	Description   string           `json:"description"`
	Hours         decimal.Decimal  `json:"hours" binding:"required"`
	HourlyRate    *decimal.Decimal `json:"hourly_rate"`
	PerformedDate *time.Time       `json:"performed_date"`
}

func (h *Handler) addJobLabor(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req jobLaborRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := h.jobs.AddLabor(c.Request.Context(), id, service.JobLaborInput{
		TaskID:        req.TaskID,
		EmployeeID:    req.EmployeeID,
		Description:   req.Description,
		Hours:         req.Hours,
		HourlyRate:    req.HourlyRate,
		PerformedDate: req.PerformedDate,
		By:            principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

func (h *Handler) removeJobLabor(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	laborID, ok := parseID(c, "laborID")
	if !ok {
		return
	}
	job, err := h.jobs.RemoveLabor(c.Request.Context(), id, laborID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

type jobInvoiceRequest struct {
	Additional bool `json:"additional"`
}

func (h *Handler) invoiceJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req jobInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	inv, err := h.conversions.JobToInvoice(c.Request.Context(), id, req.Additional, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) deleteJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.jobs.Delete(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
