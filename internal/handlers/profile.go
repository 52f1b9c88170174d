// internal/handlers/profile.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/couponx-backend/internal/services"
	"github.com/javajoker/couponx-backend/internal/utils"
)

type ProfileHandler struct {
	reputationService *services.ReputationService
}

func NewProfileHandler(reputationService *services.ReputationService) *ProfileHandler {
	return &ProfileHandler{reputationService: reputationService}
}

// GET /profiles/:user_id
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	profile, err := h.reputationService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, profile)
}
