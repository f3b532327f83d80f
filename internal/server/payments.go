package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/feeledger/internal/payment/domain"
	"github.com/smallbiznis/feeledger/internal/pricing"
)

type createPaymentRequest struct {
	Amount              decimal.Decimal `json:"amount"`
	PaymentMethod       string          `json:"payment_method"`
	PaymentDate         string          `json:"payment_date"`
	VersementDate       string          `json:"versement_date"`
	ApplyGlobalDiscount bool            `json:"apply_global_discount"`
	IsRamePhysical      bool            `json:"is_rame_physical"`
	IsPenalty           bool            `json:"is_penalty"`
	Notes               string          `json:"notes"`
	RecordedBy          string          `json:"recorded_by"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	studentID, err := pathID(c, "student_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentDate, err := parseOptionalTime(req.PaymentDate)
	if err != nil {
		AbortWithError(c, newValidationError("payment_date", "invalid_payment_date", "invalid payment_date"))
		return
	}
	versementDate, err := parseOptionalTime(req.VersementDate)
	if err != nil {
		AbortWithError(c, newValidationError("versement_date", "invalid_versement_date", "invalid versement_date"))
		return
	}

	create := paymentdomain.CreateRequest{
		StudentID:           studentID,
		Amount:              req.Amount,
		PaymentMethod:       strings.TrimSpace(req.PaymentMethod),
		VersementDate:       versementDate,
		ApplyGlobalDiscount: req.ApplyGlobalDiscount,
		IsRamePhysical:      req.IsRamePhysical,
		IsPenalty:           req.IsPenalty,
		Notes:               req.Notes,
		RecordedBy:          req.RecordedBy,
	}
	if paymentDate != nil {
		create.PaymentDate = *paymentDate
	}

	resp, err := s.paymentSvc.Create(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStudentPayments(c *gin.Context) {
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
	resp, err := s.paymentSvc.ListByStudent(c.Request.Context(), studentID, schoolYearID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayment(c *gin.Context) {
	paymentID, err := pathID(c, "payment_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.Get(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStudentStatus(c *gin.Context) {
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
	flags, err := statusFlags(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := paymentdomain.StatusRequest{StudentID: studentID, Flags: flags}
	if yearID != nil {
		req.SchoolYearID = *yearID
	}
	resp, err := s.paymentSvc.StatusFor(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "generated_at": time.Now().UTC()})
}

// GetPaymentStatusAsOf shows the ledger as it stood right after the payment.
func (s *Server) GetPaymentStatusAsOf(c *gin.Context) {
	paymentID, err := pathID(c, "payment_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.StatusAsOf(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// statusFlags reads include_scholarship and include_discount; both default to true.
func statusFlags(c *gin.Context) (*pricing.Flags, error) {
	scholarship, err := parseOptionalBool(c.Query("include_scholarship"))
	if err != nil {
		return nil, newValidationError("include_scholarship", "invalid_include_scholarship", "invalid include_scholarship")
	}
	discount, err := parseOptionalBool(c.Query("include_discount"))
	if err != nil {
		return nil, newValidationError("include_discount", "invalid_include_discount", "invalid include_discount")
	}
	if scholarship == nil && discount == nil {
		return nil, nil
	}

	flags := pricing.FlagsAll
	if scholarship != nil {
		flags.IncludeScholarship = *scholarship
	}
	if discount != nil {
		flags.IncludeDiscount = *discount
	}
	return &flags, nil
}
