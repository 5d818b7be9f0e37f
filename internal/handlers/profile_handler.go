package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/filestore"
	"pocketbook/internal/logger"
	"pocketbook/internal/middleware"
	"pocketbook/internal/services"
)

// avatarField is the multipart form field carrying the avatar image.
const avatarField = "avatar"

// ProfileHandler handles requests on the authenticated user's own account.
type ProfileHandler struct {
	userService  services.UserServicer
	files        filestore.Store
	auditService services.AuditServicer
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(userService services.UserServicer, files filestore.Store, auditService services.AuditServicer) *ProfileHandler {
	return &ProfileHandler{userService: userService, files: files, auditService: auditService}
}

// UpdateProfileRequest represents the request payload for updating a profile.
// Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName    *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,max=30"`
	Country     *string `json:"country" binding:"omitempty,max=100"`
}

// GetProfile returns the authenticated user's profile
// @Summary     Get user profile
// @Description Get the profile of the authenticated user, including the ids of owned records
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]interface{} "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile updates the authenticated user's profile
// @Summary     Update user profile
// @Description Update name, phone number or country of the authenticated user
// @Tags        profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdateProfileRequest true "Profile fields"
// @Success     200 {object} map[string]interface{} "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Router      /profile [put]
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, services.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Country:     req.Country,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PROFILE", "user", userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteProfile deletes the authenticated user and everything they own
// @Summary     Delete account
// @Description Delete the authenticated user together with their wallets, categories and budget elements
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]interface{} "Counts of deleted records"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile [delete]
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	deleted, err := h.userService.DeleteUser(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.removeFile(c, deleted.Image)

	h.auditService.Log(userID, "DELETE_ACCOUNT", "user", userID, c.ClientIP(),
		map[string]interface{}{
			"wallets":         deleted.Wallets,
			"categories":      deleted.Categories,
			"budget_elements": deleted.BudgetElements,
		})

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// UploadAvatar stores an avatar image for the authenticated user
// @Summary     Upload avatar
// @Description Upload a png, jpeg, gif or webp image of at most 5 MB as the user's avatar
// @Tags        profile
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       avatar formData file true "Avatar image"
// @Success     200 {object} map[string]interface{} "Updated profile"
// @Failure     400 {object} ErrorResponse "Missing or unsupported file"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "File too large"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile/avatar [put]
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	header, err := c.FormFile(avatarField)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "avatar file is required"))
		return
	}
	src, err := header.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer src.Close()

	path, err := h.files.Save(header.Filename, src)
	if err != nil {
		respondWithError(c, fileError(err))
		return
	}

	ctx := c.Request.Context()
	previous, err := h.userService.SetAvatar(ctx, userID, path)
	if err != nil {
		h.removeFile(c, path)
		respondWithError(c, err)
		return
	}
	h.removeFile(c, previous)

	user, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPLOAD_AVATAR", "user", userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteAvatar clears the authenticated user's avatar
// @Summary     Delete avatar
// @Description Remove the avatar of the authenticated user
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MessageResponse "Avatar removed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /profile/avatar [delete]
func (h *ProfileHandler) DeleteAvatar(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	previous, err := h.userService.ClearAvatar(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.removeFile(c, previous)

	h.auditService.Log(userID, "DELETE_AVATAR", "user", userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Avatar removed"})
}

// removeFile deletes a stored upload. Failures leave an orphaned file and
// are only logged.
func (h *ProfileHandler) removeFile(c *gin.Context, path string) {
	if path == "" {
		return
	}
	if err := h.files.Delete(path); err != nil {
		logger.Get().Warnw("failed to delete stored file",
			"path", path,
			"error", err,
			"request_id", middleware.RequestID(c),
		)
	}
}

func fileError(err error) error {
	switch {
	case errors.Is(err, filestore.ErrUnsupportedType):
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "avatar must be a png, jpeg, gif or webp image")
	case errors.Is(err, filestore.ErrTooLarge):
		return apperrors.WithFields(apperrors.ErrValidationFailed, map[string]string{
			avatarField: "must be at most 5 MB",
		})
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
