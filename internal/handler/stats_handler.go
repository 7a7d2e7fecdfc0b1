package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/razi112/fynzatyp/internal/service"
)

// StatsHandler обрабатывает запросы статистики и таблицы лидеров
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler создает новый обработчик статистики
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Overview возвращает сводку статистики пользователя
func (h *StatsHandler) Overview(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	overview, err := h.statsService.Overview(userID)
	if err != nil {
		log.Printf("[StatsHandler] Ошибка построения сводки для %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, overview)
}

// Leaderboard возвращает лучшие результаты по WPM.
// Параметры: topic, limit, period (all/today/week/month).
func (h *StatsHandler) Leaderboard(c *gin.Context) {
	topic := c.Query("topic")
	period := c.DefaultQuery("period", service.PeriodAll)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, err := h.statsService.Leaderboard(topic, period, limit)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPeriod) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parameter 'period' must be one of all, today, week, month"})
			return
		}
		log.Printf("[StatsHandler] Ошибка построения таблицы лидеров: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

// ExportHistory выгружает историю тренировок пользователя в xlsx
func (h *StatsHandler) ExportHistory(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	buf, err := h.statsService.ExportHistoryXLSX(userID)
	if err != nil {
		log.Printf("[StatsHandler] Ошибка выгрузки истории для %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	filename := fmt.Sprintf("typing-history-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
