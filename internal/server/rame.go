package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ramedomain "github.com/smallbiznis/feeledger/internal/rame/domain"
)

type markRameRequest struct {
	SchoolYearID string `json:"school_year_id"`
	MarkedBy     string `json:"marked_by"`
	Notes        string `json:"notes"`
	DepositDate  string `json:"deposit_date"`
}

func (s *Server) GetRameStatus(c *gin.Context) {
	studentID, err := pathID(c, "student_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	yearID, err := parseOptionalSnowflakeID(c.Query("school_year_id"))
	if err != nil {
		AbortWithError(c, newValidationError("school_year_id", "invalid_school_year_id", "invalid school_year_id"))
		return
	}

	var schoolYearID snowflake.ID
	if yearID != nil {
		schoolYearID = *yearID
	}
	resp, err := s.rameSvc.Get(c.Request.Context(), studentID, schoolYearID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkRameBrought(c *gin.Context) {
	studentID, err := pathID(c, "student_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req markRameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	yearID, err := parseOptionalSnowflakeID(req.SchoolYearID)
	if err != nil {
		AbortWithError(c, newValidationError("school_year_id", "invalid_school_year_id", "invalid school_year_id"))
		return
	}
	deposit, err := parseOptionalTime(req.DepositDate)
	if err != nil {
		AbortWithError(c, newValidationError("deposit_date", "invalid_deposit_date", "invalid deposit_date"))
		return
	}

	mark := ramedomain.MarkRequest{
		StudentID:   studentID,
		MarkedBy:    req.MarkedBy,
		Notes:       req.Notes,
		DepositDate: deposit,
		Source:      ramedomain.SourceManual,
	}
	if yearID != nil {
		mark.SchoolYearID = *yearID
	}
	resp, err := s.rameSvc.MarkAsBrought(c.Request.Context(), mark)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
