package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/feeledger/internal/payment/domain"
	"github.com/smallbiznis/feeledger/internal/paymentstatus"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() paymentdomain.Repository {
	return &repository{}
}

const paymentColumns = `id, school_year_id, student_id, class_id, receipt_number, payment_type,
	total_amount, payment_method, payment_date, versement_date, validation_date,
	has_reduction, reduction_amount, has_scholarship, scholarship_amount,
	is_rame_physical, is_penalty, notes, recorded_by, created_at`

const detailColumns = `id, payment_id, student_id, tranche_id, amount_allocated, previous_amount,
	new_total_amount, is_fully_paid, required_amount_at_time, was_reduced, created_at`

func (r *repository) Insert(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment) error {
	err := tx.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.SchoolYearID,
		payment.StudentID,
		payment.ClassID,
		payment.ReceiptNumber,
		payment.PaymentType,
		payment.TotalAmount,
		payment.PaymentMethod,
		payment.PaymentDate,
		payment.VersementDate,
		payment.ValidationDate,
		payment.HasReduction,
		payment.ReductionAmount,
		payment.HasScholarship,
		payment.ScholarshipAmount,
		payment.IsRamePhysical,
		payment.IsPenalty,
		payment.Notes,
		payment.RecordedBy,
		payment.CreatedAt,
	).Error
	if err != nil {
		return err
	}

	for _, detail := range payment.Details {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO payment_details (`+detailColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			detail.ID,
			detail.PaymentID,
			detail.StudentID,
			detail.TrancheID,
			detail.AmountAllocated,
			detail.PreviousAmount,
			detail.NewTotalAmount,
			detail.IsFullyPaid,
			detail.RequiredAmountAtTime,
			detail.WasReduced,
			detail.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repository) ListByStudent(ctx context.Context, db *gorm.DB, studentID, schoolYearID snowflake.ID) ([]paymentdomain.Payment, error) {
	var payments []paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE student_id = ? AND school_year_id = ?
		 ORDER BY created_at ASC, id ASC`,
		studentID,
		schoolYearID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) ListDetails(ctx context.Context, db *gorm.DB, paymentIDs []snowflake.ID) ([]paymentdomain.PaymentDetail, error) {
	if len(paymentIDs) == 0 {
		return nil, nil
	}
	var details []paymentdomain.PaymentDetail
	err := db.WithContext(ctx).Raw(
		`SELECT `+detailColumns+`
		 FROM payment_details
		 WHERE payment_id IN ?
		 ORDER BY payment_id ASC, id ASC`,
		paymentIDs,
	).Scan(&details).Error
	if err != nil {
		return nil, err
	}
	return details, nil
}

type eventRow struct {
	PaymentID      snowflake.ID
	TrancheID      snowflake.ID
	Amount         decimal.Decimal
	RequiredAtTime decimal.Decimal
	CreatedAt      time.Time
	IsRamePhysical bool
}

func (r *repository) ListEvents(ctx context.Context, db *gorm.DB, studentID, schoolYearID snowflake.ID) ([]paymentstatus.Event, error) {
	var rows []eventRow
	err := db.WithContext(ctx).Raw(
		`SELECT d.payment_id, d.tranche_id,
		        d.amount_allocated AS amount,
		        d.required_amount_at_time AS required_at_time,
		        p.created_at, p.is_rame_physical
		 FROM payment_details d
		 JOIN payments p ON p.id = d.payment_id
		 WHERE p.student_id = ? AND p.school_year_id = ?
		 ORDER BY p.created_at ASC, p.id ASC, d.id ASC`,
		studentID,
		schoolYearID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]paymentstatus.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, paymentstatus.Event{
			PaymentID:      row.PaymentID,
			TrancheID:      row.TrancheID,
			Amount:         row.Amount,
			RequiredAtTime: row.RequiredAtTime,
			CreatedAt:      row.CreatedAt,
			IsRamePhysical: row.IsRamePhysical,
		})
	}
	return events, nil
}
