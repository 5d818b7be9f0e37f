package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BudgetElementHandler handles budget element requests.
type BudgetElementHandler struct {
	elementService services.BudgetElementServicer
	exportService  services.ExportServicer
	auditService   services.AuditServicer
}

// NewBudgetElementHandler creates a new BudgetElementHandler.
func NewBudgetElementHandler(
	elementService services.BudgetElementServicer,
	exportService services.ExportServicer,
	auditService services.AuditServicer,
) *BudgetElementHandler {
	return &BudgetElementHandler{
		elementService: elementService,
		exportService:  exportService,
		auditService:   auditService,
	}
}

// CreateBudgetElementRequest represents the request payload for creating a budget element
type CreateBudgetElementRequest struct {
	WalletID   string           `json:"wallet_id" binding:"required,uuid"`
	CategoryID string           `json:"category_id" binding:"required,uuid"`
	Name       string           `json:"name" binding:"required,min=1,max=200"`
	Amount     *decimal.Decimal `json:"amount" binding:"required,money"`
	Type       models.EntryType `json:"type" binding:"required,entry_type"`
	Date       *time.Time       `json:"date"`
}

// UpdateBudgetElementRequest represents the request payload for updating a
// budget element. Omitted fields are left unchanged.
type UpdateBudgetElementRequest struct {
	WalletID   *string           `json:"wallet_id" binding:"omitempty,uuid"`
	CategoryID *string           `json:"category_id" binding:"omitempty,uuid"`
	Name       *string           `json:"name" binding:"omitempty,min=1,max=200"`
	Amount     *decimal.Decimal  `json:"amount" binding:"omitempty,money"`
	Type       *models.EntryType `json:"type" binding:"omitempty,entry_type"`
	Date       *time.Time        `json:"date"`
}

// BudgetElementQuery holds the list and export filters
type BudgetElementQuery struct {
	WalletID   string `form:"wallet_id" binding:"omitempty,uuid"`
	CategoryID string `form:"category_id" binding:"omitempty,uuid"`
	Type       string `form:"type" binding:"omitempty,entry_type"`
}

// BudgetElementListQuery holds the list query parameters
type BudgetElementListQuery struct {
	pagination.PageRequest
	BudgetElementQuery
}

// BudgetElementResponse represents a budget element in the response
type BudgetElementResponse struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	WalletID   string           `json:"wallet_id"`
	CategoryID string           `json:"category_id"`
	Name       string           `json:"name"`
	Amount     string           `json:"amount"`
	Type       models.EntryType `json:"type"`
	Date       time.Time        `json:"date"`
}

func (q BudgetElementQuery) filter() services.BudgetElementFilter {
	var f services.BudgetElementFilter
	if q.WalletID != "" {
		f.WalletID = &q.WalletID
	}
	if q.CategoryID != "" {
		f.CategoryID = &q.CategoryID
	}
	if q.Type != "" {
		t := models.EntryType(q.Type)
		f.Type = &t
	}
	return f
}

// CreateBudgetElement handles the creation of a new budget element
// @Summary     Create a budget element
// @Description Record an income or expense in one of the user's wallets and categories
// @Tags        budget-elements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetElementRequest true "Budget element details"
// @Success     201 {object} BudgetElementResponse "Budget element created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Wallet or category not found"
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budget-elements [post]
func (h *BudgetElementHandler) CreateBudgetElement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetElementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	element, err := h.elementService.CreateBudgetElement(c.Request.Context(), userID, services.BudgetElementInput{
		WalletID:   req.WalletID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Amount:     *req.Amount,
		Type:       req.Type,
		Date:       req.Date,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_BUDGET_ELEMENT", "budget_element", element.ID, c.ClientIP(),
		map[string]interface{}{
			"wallet_id":   req.WalletID,
			"category_id": req.CategoryID,
			"amount":      req.Amount.String(),
			"type":        req.Type,
		})

	c.JSON(http.StatusCreated, gin.H{"budget_element": element})
}

// GetUserBudgetElements lists the authenticated user's budget elements
// @Summary     List budget elements
// @Description Get a paginated list of budget elements, newest first
// @Tags        budget-elements
// @Produce     json
// @Security    BearerAuth
// @Param       wallet_id   query string false "Filter by wallet"
// @Param       category_id query string false "Filter by category"
// @Param       type        query string false "Filter by type (income/expense)"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} map[string]interface{} "Paginated list of budget elements"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budget-elements [get]
func (h *BudgetElementHandler) GetUserBudgetElements(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query BudgetElementListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.elementService.GetUserBudgetElements(c.Request.Context(), userID, query.PageRequest, query.filter())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportBudgetElements downloads the user's budget elements as a spreadsheet
// @Summary     Export budget elements
// @Description Download the filtered budget elements as an XLSX workbook
// @Tags        budget-elements
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       wallet_id   query string false "Filter by wallet"
// @Param       category_id query string false "Filter by category"
// @Param       type        query string false "Filter by type (income/expense)"
// @Success     200 {file} file "XLSX workbook"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budget-elements/export [get]
func (h *BudgetElementHandler) ExportBudgetElements(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query BudgetElementQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	var buf bytes.Buffer
	if err := h.exportService.ExportBudgetElements(c.Request.Context(), userID, query.filter(), &buf); err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"budget_%s.xlsx\"",
		time.Now().Format("20060102")))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetBudgetElementByID returns a single budget element
// @Summary     Get budget element by ID
// @Description Get a budget element of the authenticated user
// @Tags        budget-elements
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget element ID"
// @Success     200 {object} BudgetElementResponse "Budget element details"
// @Failure     400 {object} ErrorResponse "Invalid budget element ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget element not found"
// @Router      /budget-elements/{id} [get]
func (h *BudgetElementHandler) GetBudgetElementByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	elementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	element, err := h.elementService.GetBudgetElementByID(c.Request.Context(), userID, elementID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget_element": element})
}

// UpdateBudgetElement updates a budget element
// @Summary     Update budget element
// @Description Update fields of a budget element. A new wallet or category must belong to the user.
// @Tags        budget-elements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                     true "Budget element ID"
// @Param       request body UpdateBudgetElementRequest true "Fields to update"
// @Success     200 {object} BudgetElementResponse "Updated budget element"
// @Failure     400 {object} ErrorResponse "Invalid input or budget element ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget element, wallet or category not found"
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budget-elements/{id} [put]
func (h *BudgetElementHandler) UpdateBudgetElement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	elementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetElementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	element, err := h.elementService.UpdateBudgetElement(c.Request.Context(), userID, elementID, services.BudgetElementUpdate{
		WalletID:   req.WalletID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Amount:     req.Amount,
		Type:       req.Type,
		Date:       req.Date,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_BUDGET_ELEMENT", "budget_element", elementID, c.ClientIP(),
		map[string]interface{}{"wallet_id": element.WalletID, "category_id": element.CategoryID})

	c.JSON(http.StatusOK, gin.H{"budget_element": element})
}

// DeleteBudgetElement deletes a budget element
// @Summary     Delete budget element
// @Description Delete a budget element and remove it from its wallet and category
// @Tags        budget-elements
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget element ID"
// @Success     200 {object} MessageResponse "Budget element deleted"
// @Failure     400 {object} ErrorResponse "Invalid budget element ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget element not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budget-elements/{id} [delete]
func (h *BudgetElementHandler) DeleteBudgetElement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	elementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.elementService.DeleteBudgetElement(c.Request.Context(), userID, elementID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_BUDGET_ELEMENT", "budget_element", elementID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Budget element deleted successfully"})
}
