package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/treinofacil/coach-api/internal/coach"
	"github.com/treinofacil/coach-api/internal/common"
)

type workoutReq struct {
	Goal      string   `json:"goal" binding:"required"`
	Location  string   `json:"location" binding:"required"`
	Gender    string   `json:"gender" binding:"required"`
	Duration  string   `json:"duration" binding:"required"`
	Level     string   `json:"level" binding:"required"`
	Equipment []string `json:"equipment"`
	Focus     string   `json:"customFocus"`
}

func (h *Handler) GenerateWorkout(c *gin.Context) {
	var req workoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	prefs := coach.UserPreferences{
		Goal:        coach.Goal(req.Goal),
		Location:    coach.Location(req.Location),
		Gender:      coach.Gender(req.Gender),
		Duration:    req.Duration,
		Level:       coach.Level(req.Level),
		Equipment:   req.Equipment,
		CustomFocus: req.Focus,
	}

	plan, err := h.CoachSvc.GenerateWorkout(c.Request.Context(), prefs)
	if err != nil {
		failForAIError(c, err)
		return
	}
	common.Ok(c, plan)
}

type scheduleReq struct {
	Goal     string `json:"goal" binding:"required"`
	Level    string `json:"level" binding:"required"`
	Location string `json:"location" binding:"required"`
	Gender   string `json:"gender" binding:"required"`
}

func (h *Handler) GenerateWeeklySchedule(c *gin.Context) {
	var req scheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	days, err := h.CoachSvc.GenerateWeeklySchedule(
		c.Request.Context(),
		coach.Goal(req.Goal),
		coach.Level(req.Level),
		coach.Location(req.Location),
		coach.Gender(req.Gender),
	)
	if err != nil {
		failForAIError(c, err)
		return
	}
	common.Ok(c, gin.H{"days": days})
}
