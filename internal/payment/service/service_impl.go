package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/allocation"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/config"
	"github.com/smallbiznis/feeledger/internal/lock"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"github.com/smallbiznis/feeledger/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/feeledger/internal/payment/domain"
	"github.com/smallbiznis/feeledger/internal/paymentstatus"
	"github.com/smallbiznis/feeledger/internal/pricing"
	ramedomain "github.com/smallbiznis/feeledger/internal/rame/domain"
	"github.com/smallbiznis/feeledger/internal/receipt"
	schooldomain "github.com/smallbiznis/feeledger/internal/school/domain"
	tranchedomain "github.com/smallbiznis/feeledger/internal/tranche/domain"
	"github.com/smallbiznis/feeledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultMaxRetries = 3

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Pricing  *config.PricingConfigHolder
	Repo     paymentdomain.Repository
	Schools  schooldomain.Repository
	Catalog  tranchedomain.Catalog
	Receipts receipt.Generator
	Rame     ramedomain.Service
	Locker   lock.Locker            `optional:"true"`
	Metrics  *metrics.Metrics       `optional:"true"`
	Ledger   *metrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	pricing    *config.PricingConfigHolder
	repo       paymentdomain.Repository
	schools    schooldomain.Repository
	catalog    tranchedomain.Catalog
	receipts   receipt.Generator
	rame       ramedomain.Service
	locker     lock.Locker
	metrics    *metrics.Metrics
	ledger     *metrics.LedgerMetrics
	validate   *validator.Validate
	maxRetries int
}

func NewService(p Params) paymentdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	locker := p.Locker
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	maxRetries := p.Config.Receipt.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      clk,
		pricing:    p.Pricing,
		repo:       p.Repo,
		schools:    p.Schools,
		catalog:    p.Catalog,
		receipts:   p.Receipts,
		rame:       p.Rame,
		locker:     locker,
		metrics:    p.Metrics,
		ledger:     p.Ledger,
		validate:   newValidator(),
		maxRetries: maxRetries,
	}
}

// Create records one payment. Writes for a student are serialized by the
// distributed lock and by the student row lock inside the transaction, and
// a receipt number collision retries the whole transaction.
func (s *Service) Create(ctx context.Context, req paymentdomain.CreateRequest) (*paymentdomain.Payment, error) {
	req.Notes = strings.TrimSpace(req.Notes)
	req.RecordedBy = strings.TrimSpace(req.RecordedBy)
	if err := s.validateCreate(req); err != nil {
		s.reject(ctx, err)
		return nil, err
	}

	log := logger.WithStudent(logger.WithContext(ctx, s.log), req.StudentID.String(), "")

	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, lock.StudentKey(req.StudentID))
	s.ledger.ObserveLockWait(metrics.LockResourceDistributed, time.Since(waitStart))
	if err != nil {
		s.reject(ctx, err)
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release student lock", zap.Error(err))
		}
	}()

	var payment *paymentdomain.Payment
	for attempt := 0; ; attempt++ {
		start := time.Now()
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			payment, txErr = s.createInTx(ctx, tx, req)
			return txErr
		})
		s.ledger.ObserveTx(metrics.LedgerOpCreatePayment, time.Since(start))
		if err == nil || !retryable(err) || attempt >= s.maxRetries {
			break
		}

		s.ledger.IncTxRetry(metrics.LedgerOpCreatePayment, err)
		if db.IsDuplicateKeyErr(err) {
			s.metrics.RecordReceiptRetry(ctx)
		}
		log.Warn("retrying payment transaction",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			err = fmt.Errorf("%w: %v", paymentdomain.ErrDuplicateReceiptNumber, err)
		}
		s.reject(ctx, err)
		return nil, err
	}

	s.metrics.RecordPaymentCommitted(ctx, payment.PaymentType, payment.PaymentMethod, len(payment.Details), payment.TotalAmount.InexactFloat64())
	log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("receipt_number", payment.ReceiptNumber),
		zap.String("payment_type", payment.PaymentType),
		zap.String("total_amount", payment.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(payment.Details)),
	)
	return payment, nil
}

func (s *Service) createInTx(ctx context.Context, tx *gorm.DB, req paymentdomain.CreateRequest) (*paymentdomain.Payment, error) {
	lockStart := time.Now()
	student, err := s.schools.LockStudent(ctx, tx, req.StudentID)
	s.ledger.ObserveLockWait(metrics.LockResourceStudentLedger, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, schooldomain.ErrStudentNotFound
	}
	year, err := schooldomain.EnrolledYear(ctx, s.schools, tx, student, 0)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	payment := &paymentdomain.Payment{
		ID:                s.genID.Generate(),
		SchoolYearID:      year.ID,
		StudentID:         student.ID,
		ClassID:           student.ClassID,
		PaymentType:       string(allocation.PaymentTypeNormal),
		TotalAmount:       decimal.Zero,
		PaymentMethod:     req.PaymentMethod,
		PaymentDate:       req.PaymentDate,
		VersementDate:     req.VersementDate,
		ValidationDate:    &now,
		ReductionAmount:   decimal.Zero,
		ScholarshipAmount: decimal.Zero,
		IsRamePhysical:    req.IsRamePhysical,
		IsPenalty:         req.IsPenalty,
		Notes:             req.Notes,
		RecordedBy:        req.RecordedBy,
		CreatedAt:         now,
		Details:           []paymentdomain.PaymentDetail{},
	}

	if req.IsRamePhysical {
		return s.recordRameDeposit(ctx, tx, year, payment)
	}

	state, err := s.loadLedger(ctx, tx, student.ID, year.ID, student.ClassID)
	if err != nil {
		return nil, err
	}
	setting, err := s.discountSetting()
	if err != nil {
		return nil, err
	}

	paymentType, err := allocation.DecideType(state.schedule.HasScholarship(), req.ApplyGlobalDiscount)
	if err != nil {
		return nil, err
	}
	plan, err := planAllocation(state, setting, paymentType, req)
	if err != nil {
		return nil, err
	}

	result, err := allocation.Allocate(allocation.Request{
		Type:   paymentType,
		Amount: req.Amount,
		Lines:  allocation.LinesFrom(plan.requirements, paymentstatus.PaidByTranche(state.events, nil)),
	})
	if err != nil {
		return nil, err
	}
	if !result.Remainder.IsZero() {
		s.ledger.IncAllocationRemainder()
		s.log.Warn("allocation left a remainder",
			zap.String("student_id", student.ID.String()),
			zap.String("remainder", result.Remainder.StringFixed(2)),
		)
		return nil, fmt.Errorf("%w: %s left unallocated", paymentdomain.ErrInvariantViolation, result.Remainder.StringFixed(2))
	}

	payment.PaymentType = string(paymentType)
	payment.TotalAmount = result.Allocated
	payment.HasReduction = plan.reduction.IsPositive()
	payment.ReductionAmount = plan.reduction
	scholarship := plan.scholarshipOn(result.Details)
	payment.HasScholarship = scholarship.IsPositive()
	payment.ScholarshipAmount = scholarship
	for _, line := range result.Details {
		payment.Details = append(payment.Details, paymentdomain.PaymentDetail{
			ID:                   s.genID.Generate(),
			PaymentID:            payment.ID,
			StudentID:            student.ID,
			TrancheID:            line.TrancheID,
			AmountAllocated:      line.AmountAllocated,
			PreviousAmount:       line.PreviousAmount,
			NewTotalAmount:       line.NewTotalAmount,
			IsFullyPaid:          line.IsFullyPaid,
			RequiredAmountAtTime: line.RequiredAmountAtTime,
			WasReduced:           line.WasReduced,
			CreatedAt:            now,
		})
	}

	if err := verifyInvariants(payment); err != nil {
		return nil, err
	}
	if err := s.issueAndInsert(ctx, tx, year, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// recordRameDeposit stores a zero-amount receipt and flips the RAME status in
// the same transaction.
func (s *Service) recordRameDeposit(ctx context.Context, tx *gorm.DB, year *schooldomain.SchoolYear, payment *paymentdomain.Payment) (*paymentdomain.Payment, error) {
	if err := s.issueAndInsert(ctx, tx, year, payment); err != nil {
		return nil, err
	}

	markedBy := payment.RecordedBy
	if markedBy == "" {
		markedBy = "cashier"
	}
	deposit := payment.VersementDate
	if deposit == nil {
		deposit = &payment.PaymentDate
	}
	paymentID := payment.ID
	if _, err := s.rame.MarkInTx(ctx, tx, ramedomain.MarkRequest{
		StudentID:    payment.StudentID,
		SchoolYearID: payment.SchoolYearID,
		MarkedBy:     markedBy,
		Notes:        payment.Notes,
		DepositDate:  deposit,
		Source:       ramedomain.SourcePayment,
		PaymentID:    &paymentID,
	}); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) issueAndInsert(ctx context.Context, tx *gorm.DB, year *schooldomain.SchoolYear, payment *paymentdomain.Payment) error {
	number, err := s.receipts.Next(ctx, tx, receipt.Request{
		SchoolYearID: year.ID,
		YearCode:     year.Code(),
		IssuedAt:     payment.CreatedAt,
		Penalty:      payment.IsPenalty,
	})
	if err != nil {
		return err
	}
	payment.ReceiptNumber = number
	return s.repo.Insert(ctx, tx, payment)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*paymentdomain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	details, err := s.repo.ListDetails(ctx, s.db, []snowflake.ID{payment.ID})
	if err != nil {
		return nil, err
	}
	payment.Details = append([]paymentdomain.PaymentDetail{}, details...)
	return payment, nil
}

// ListByStudent returns the student's payments with their details, oldest
// first. A zero schoolYearID means the student's own year.
func (s *Service) ListByStudent(ctx context.Context, studentID, schoolYearID snowflake.ID) ([]paymentdomain.Payment, error) {
	student, err := s.schools.FindStudent(ctx, s.db, studentID)
	if err != nil {
		return nil, err
	}
	year, err := schooldomain.EnrolledYear(ctx, s.schools, s.db, student, schoolYearID)
	if err != nil {
		return nil, err
	}

	payments, err := s.repo.ListByStudent(ctx, s.db, studentID, year.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	details, err := s.repo.ListDetails(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	byPayment := make(map[snowflake.ID][]paymentdomain.PaymentDetail, len(payments))
	for _, d := range details {
		byPayment[d.PaymentID] = append(byPayment[d.PaymentID], d)
	}
	out := make([]paymentdomain.Payment, 0, len(payments))
	for _, p := range payments {
		p.Details = append([]paymentdomain.PaymentDetail{}, byPayment[p.ID]...)
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) StatusFor(ctx context.Context, req paymentdomain.StatusRequest) (*paymentstatus.Status, error) {
	flags := pricing.FlagsAll
	if req.Flags != nil {
		flags = *req.Flags
	}

	var out *paymentstatus.Status
	start := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		student, err := s.schools.FindStudent(ctx, tx, req.StudentID)
		if err != nil {
			return err
		}
		year, err := schooldomain.EnrolledYear(ctx, s.schools, tx, student, req.SchoolYearID)
		if err != nil {
			return err
		}

		state, err := s.loadLedger(ctx, tx, student.ID, year.ID, student.ClassID)
		if err != nil {
			return err
		}
		setting, err := s.discountSetting()
		if err != nil {
			return err
		}
		status := statusOf(state, setting, flags, nil, s.clock.Now())
		out = &status
		return nil
	})
	s.ledger.ObserveTx(metrics.LedgerOpStatus, time.Since(start))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StatusAsOf replays the ledger up to and including the given payment, with
// the required amounts recorded at the time. Used to reprint receipts.
func (s *Service) StatusAsOf(ctx context.Context, paymentID snowflake.ID) (*paymentstatus.Status, error) {
	var out *paymentstatus.Status
	start := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrPaymentNotFound
		}

		state, err := s.loadLedger(ctx, tx, payment.StudentID, payment.SchoolYearID, payment.ClassID)
		if err != nil {
			return err
		}
		setting, err := s.discountSetting()
		if err != nil {
			return err
		}
		cutoff := &paymentstatus.Cutoff{At: payment.CreatedAt, PaymentID: payment.ID}
		status := statusOf(state, setting, pricing.FlagsAll, cutoff, payment.PaymentDate)
		status.Discount = nil
		out = &status
		return nil
	})
	s.ledger.ObserveTx(metrics.LedgerOpStatus, time.Since(start))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) discountSetting() (pricing.DiscountSetting, error) {
	return pricing.SettingFromConfig(s.pricing.Get().Discount)
}

// reject counts business refusals by reason and infrastructure failures by class.
func (s *Service) reject(ctx context.Context, err error) {
	if reason := rejectReason(err); reason != "" {
		s.metrics.RecordPaymentRejected(ctx, reason)
		return
	}
	s.ledger.IncTxError(metrics.LedgerOpCreatePayment, err)
	s.log.Error("payment failed", zap.Error(err))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, paymentdomain.ErrValidation), errors.Is(err, ramedomain.ErrInvalidMarkedBy):
		return "validation"
	case errors.Is(err, paymentdomain.ErrInsufficientRemainingBalance):
		return "insufficient_balance"
	case errors.Is(err, paymentdomain.ErrScholarshipDiscountConflict):
		return "scholarship_discount_conflict"
	case errors.Is(err, paymentdomain.ErrDiscountIneligible):
		return "discount_ineligible"
	case errors.Is(err, schooldomain.ErrStudentNotFound):
		return "student_not_found"
	case errors.Is(err, schooldomain.ErrSchoolYearNotFound):
		return "school_year_not_found"
	case errors.Is(err, ramedomain.ErrAlreadyMarked), errors.Is(err, ramedomain.ErrInvalidTransition):
		return "rame_already_marked"
	case errors.Is(err, paymentdomain.ErrDuplicateReceiptNumber):
		return "duplicate_receipt_number"
	case errors.Is(err, lock.ErrLockTimeout):
		return "ledger_busy"
	default:
		return ""
	}
}

func retryable(err error) bool {
	return db.IsDuplicateKeyErr(err) || metrics.IsRetryable(err)
}
