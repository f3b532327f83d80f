package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	tranchedomain "github.com/smallbiznis/feeledger/internal/tranche/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo tranchedomain.Repository
}

type Catalog struct {
	db   *gorm.DB
	log  *zap.Logger
	repo tranchedomain.Repository
}

func NewCatalog(p Params) tranchedomain.Catalog {
	return &Catalog{
		db:   p.DB,
		log:  p.Log.Named("tranche.catalog"),
		repo: p.Repo,
	}
}

func (c *Catalog) WithTx(tx *gorm.DB) tranchedomain.Catalog {
	clone := *c
	clone.db = tx
	return &clone
}

func (c *Catalog) Tranches(ctx context.Context, classID snowflake.ID) ([]tranchedomain.Tranche, error) {
	items, err := c.repo.ListByClass(ctx, c.db, classID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []tranchedomain.Tranche{}
	}
	tranchedomain.SortTranches(items)
	return items, nil
}

func (c *Catalog) Scholarship(ctx context.Context, classID snowflake.ID) (*tranchedomain.Scholarship, error) {
	return c.repo.FindActiveScholarship(ctx, c.db, classID)
}

func (c *Catalog) Schedule(ctx context.Context, classID snowflake.ID) (tranchedomain.Schedule, error) {
	tranches, err := c.Tranches(ctx, classID)
	if err != nil {
		return tranchedomain.Schedule{}, err
	}
	scholarship, err := c.Scholarship(ctx, classID)
	if err != nil {
		return tranchedomain.Schedule{}, err
	}

	if scholarship != nil && !targetsClassTranche(scholarship, tranches) {
		c.log.Warn("scholarship targets a tranche outside its class",
			zap.String("class_id", classID.String()),
			zap.String("scholarship_id", scholarship.ID.String()),
			zap.String("tranche_id", scholarship.TrancheID.String()),
		)
	}

	return tranchedomain.Schedule{
		ClassID:     classID,
		Tranches:    tranches,
		Scholarship: scholarship,
	}, nil
}

func targetsClassTranche(s *tranchedomain.Scholarship, tranches []tranchedomain.Tranche) bool {
	for _, t := range tranches {
		if t.ID == s.TrancheID {
			return true
		}
	}
	return false
}
