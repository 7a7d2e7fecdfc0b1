package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/razi112/fynzatyp/pkg/auth"
)

// AuthHandler выдает гостевые токены. Полноценных учетных записей нет:
// личность пользователя - пара (user_id, display_name) в JWT.
type AuthHandler struct {
	jwtService *auth.JWTService
}

// NewAuthHandler создает новый обработчик идентификации
func NewAuthHandler(jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{jwtService: jwtService}
}

// GuestRequest представляет запрос на гостевой токен
type GuestRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=2,max=50"`
}

// Guest выдает гостевой JWT с новым user_id
func (h *AuthHandler) Guest(c *gin.Context) {
	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := uuid.New().String()
	token, err := h.jwtService.GenerateToken(userID, req.DisplayName)
	if err != nil {
		log.Printf("[AuthHandler] Ошибка генерации токена: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":      userID,
		"display_name": req.DisplayName,
		"token":        token,
	})
}
