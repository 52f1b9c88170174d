// internal/handlers/transaction.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/couponx-backend/internal/i18n"
	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/services"
	"github.com/javajoker/couponx-backend/internal/utils"
)

type TransactionHandler struct {
	transactionService *services.TransactionService
}

func NewTransactionHandler(transactionService *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// POST /transactions
func (h *TransactionHandler) Purchase(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	buyerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	transaction, err := h.transactionService.Purchase(c.Request.Context(), buyerID, &req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionCreated),
		"transaction": transaction,
	})
}

// GET /transactions
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	filters := services.TransactionFilters{
		Role:   c.Query("role"),
		Status: models.TransactionStatus(c.Query("status")),
	}
	if filters.Role == "all" {
		filters.Role = ""
	}

	transactions, total, err := h.transactionService.ListTransactions(c.Request.Context(), userID, filters, params)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /transactions/:id
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.transactionService.GetTransaction(c.Request.Context(), userID, id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, detail)
}

// POST /transactions/:id/payment-hold
func (h *TransactionHandler) CreatePaymentHold(c *gin.Context) {
	buyerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	hold, err := h.transactionService.CreatePaymentHold(c.Request.Context(), buyerID, id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, hold)
}

// POST /transactions/:id/escrow
func (h *TransactionHandler) ConfirmEscrow(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	buyerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	transaction, err := h.transactionService.ConfirmEscrow(c.Request.Context(), buyerID, id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionEscrow),
		"transaction": transaction,
	})
}

// PUT /transactions/:id/complete
func (h *TransactionHandler) Complete(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	buyerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	transaction, err := h.transactionService.Complete(c.Request.Context(), buyerID, id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionCompleted),
		"transaction": transaction,
	})
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// PUT /transactions/:id/cancel
func (h *TransactionHandler) Cancel(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	// The reason is optional, so an empty body is accepted.
	var req cancelRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	transaction, err := h.transactionService.Cancel(c.Request.Context(), userID, id, req.Reason)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionCancelled),
		"transaction": transaction,
	})
}

// POST /transactions/:id/dispute
func (h *TransactionHandler) Dispute(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.ReasonRequest
	if !bindJSON(c, &req) {
		return
	}

	transaction, err := h.transactionService.Dispute(c.Request.Context(), userID, id, req.Reason)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionDisputed),
		"transaction": transaction,
	})
}
