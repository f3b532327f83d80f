package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/observability/metrics"
	ramedomain "github.com/smallbiznis/feeledger/internal/rame/domain"
	schooldomain "github.com/smallbiznis/feeledger/internal/school/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    ramedomain.Repository
	Schools schooldomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    ramedomain.Repository
	schools schooldomain.Repository
	metrics *metrics.Metrics
}

func NewService(p Params) ramedomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("rame.service"),
		genID:   p.GenID,
		clock:   clk,
		repo:    p.Repo,
		schools: p.Schools,
		metrics: p.Metrics,
	}
}

// Get returns the student's RAME status, creating the NOT_BROUGHT row on first access.
// A zero schoolYearID means the student's own school year.
func (s *Service) Get(ctx context.Context, studentID, schoolYearID snowflake.ID) (*ramedomain.Status, error) {
	var out *ramedomain.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		yearID, err := s.resolveYear(ctx, tx, studentID, schoolYearID)
		if err != nil {
			return err
		}
		out, err = s.ensure(ctx, tx, studentID, yearID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) MarkAsBrought(ctx context.Context, req ramedomain.MarkRequest) (*ramedomain.Status, error) {
	var out *ramedomain.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.MarkInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) MarkInTx(ctx context.Context, tx *gorm.DB, req ramedomain.MarkRequest) (*ramedomain.Status, error) {
	req.MarkedBy = strings.TrimSpace(req.MarkedBy)
	req.Notes = strings.TrimSpace(req.Notes)
	if req.MarkedBy == "" {
		return nil, ramedomain.ErrInvalidMarkedBy
	}
	if req.Source == "" {
		req.Source = ramedomain.SourceManual
	}

	yearID, err := s.resolveYear(ctx, tx, req.StudentID, req.SchoolYearID)
	if err != nil {
		return nil, err
	}
	req.SchoolYearID = yearID

	current, err := s.ensure(ctx, tx, req.StudentID, yearID)
	if err != nil {
		return nil, err
	}
	if _, err := current.State().Transition(ramedomain.StateBrought); err != nil {
		return nil, err
	}

	changed, err := s.repo.MarkBrought(ctx, tx, req, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost a race with another marker between the read and the update.
		return nil, ramedomain.ErrAlreadyMarked
	}

	s.metrics.RecordRameMarked(ctx, req.Source)
	s.log.Info("rame marked as brought",
		zap.String("student_id", req.StudentID.String()),
		zap.String("school_year_id", yearID.String()),
		zap.String("source", req.Source),
	)

	return s.repo.Find(ctx, tx, req.StudentID, yearID)
}

func (s *Service) ensure(ctx context.Context, tx *gorm.DB, studentID, yearID snowflake.ID) (*ramedomain.Status, error) {
	existing, err := s.repo.Find(ctx, tx, studentID, yearID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	if err := s.repo.Ensure(ctx, tx, &ramedomain.Status{
		ID:           s.genID.Generate(),
		StudentID:    studentID,
		SchoolYearID: yearID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return nil, err
	}

	created, err := s.repo.Find(ctx, tx, studentID, yearID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, errors.New("rame status missing after insert")
	}
	return created, nil
}

func (s *Service) resolveYear(ctx context.Context, tx *gorm.DB, studentID, schoolYearID snowflake.ID) (snowflake.ID, error) {
	student, err := s.schools.FindStudent(ctx, tx, studentID)
	if err != nil {
		return 0, err
	}
	year, err := schooldomain.EnrolledYear(ctx, s.schools, tx, student, schoolYearID)
	if err != nil {
		return 0, err
	}
	return year.ID, nil
}
