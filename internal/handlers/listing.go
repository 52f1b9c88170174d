// internal/handlers/listing.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/couponx-backend/internal/i18n"
	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/services"
	"github.com/javajoker/couponx-backend/internal/utils"
)

type ListingHandler struct {
	listingService *services.ListingService
	vaultService   *services.VaultService
}

func NewListingHandler(listingService *services.ListingService, vaultService *services.VaultService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		vaultService:   vaultService,
	}
}

// GET /listings
func (h *ListingHandler) SearchListings(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filters := services.ListingFilters{
		Category:    models.Category(c.Query("category")),
		ListingType: models.ListingType(c.Query("listing_type")),
		Status:      models.ListingStatus(c.Query("status")),
		BrandName:   c.Query("brand"),
		Search:      c.Query("q"),
	}

	if sellerIDStr := c.Query("seller_id"); sellerIDStr != "" {
		if sellerID, err := uuid.Parse(sellerIDStr); err == nil {
			filters.SellerID = &sellerID
		}
	}

	if minStr := c.Query("min_price"); minStr != "" {
		if minPrice, err := decimal.NewFromString(minStr); err == nil {
			filters.MinPrice = &minPrice
		}
	}

	if maxStr := c.Query("max_price"); maxStr != "" {
		if maxPrice, err := decimal.NewFromString(maxStr); err == nil {
			filters.MaxPrice = &maxPrice
		}
	}

	if verifiedStr := c.Query("verified"); verifiedStr != "" {
		if verified, err := strconv.ParseBool(verifiedStr); err == nil {
			filters.VerifiedOnly = verified
		}
	}

	listings, total, err := h.listingService.SearchListings(c.Request.Context(), filters, params)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(listings, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	sellerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateListingRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.listingService.CreateListing(c.Request.Context(), sellerID, &req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	if result.Listing == nil {
		utils.AcceptedResponse(c, gin.H{
			"duplicate_warning": result.DuplicateWarning,
		}, gin.H{
			"message": i18n.T(lang, i18n.KeyListingDuplicateWarning),
		})
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":           i18n.T(lang, i18n.KeyListingCreated),
		"listing":           result.Listing,
		"duplicate_warning": result.DuplicateWarning,
	})
}

// GET /listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	listing, err := h.listingService.GetListing(c.Request.Context(), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, listing)
}

// PUT /listings/:id
func (h *ListingHandler) UpdateListing(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	sellerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateListingRequest
	if !bindJSON(c, &req) {
		return
	}

	listing, err := h.listingService.UpdateListing(c.Request.Context(), sellerID, id, &req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyListingUpdated),
		"listing": listing,
	})
}

// DELETE /listings/:id
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	sellerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.listingService.DeleteListing(c.Request.Context(), sellerID, id); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyListingDeleted),
	})
}

// POST /listings/:id/proof-image
func (h *ListingHandler) UploadProofImage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	sellerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "image"), nil)
		return
	}
	defer file.Close()

	listing, err := h.listingService.UploadProofImage(c.Request.Context(), sellerID, id, file, header)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProofImageUploaded),
		"listing": listing,
	})
}

// GET /listings/:id/secret
func (h *ListingHandler) RevealSecret(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	requesterID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	secret, allowed, err := h.vaultService.Reveal(c.Request.Context(), id, requesterID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	if !allowed {
		utils.ErrorResponse(c, http.StatusForbidden, string(utils.KindForbidden), i18n.T(lang, i18n.KeyListingSecretDenied), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"listing_id":  id,
		"coupon_code": secret,
	})
}

// GET /categories/:category/stats
func (h *ListingHandler) GetCategoryStats(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	category := models.Category(c.Param("category"))
	if !category.Valid() {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "category"), nil)
		return
	}

	stats, err := h.listingService.CategoryStats(c.Request.Context(), category)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}
