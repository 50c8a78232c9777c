package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
)

func SeedDataset(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, name, hash string) *animation.Dataset {
	tb.Helper()
	d := &animation.Dataset{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		ContentHash: hash,
		StorageKey:  "datasets/" + ownerID.String() + "/" + hash + ".csv",
		Delimiter:   ",",
		Columns:     datatypes.JSON([]byte("[]")),
		Samples:     datatypes.JSON([]byte("[]")),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed dataset: %v", err)
	}
	return d
}

// SeedRun stores a run in state. Queued runs (kind != none) get a queued_at.
func SeedRun(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, state animation.RunState, kind animation.JobKind) *animation.GenerationRun {
	tb.Helper()
	now := time.Now()
	r := &animation.GenerationRun{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Message:    "animate this",
		State:      state,
		JobKind:    kind,
		TemplateID: "bar_race",
		Source:     "from manim import *\n\nclass GenScene(Scene):\n    def construct(self):\n        pass\n",
		EntryPoint: "GenScene",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if kind != animation.JobKindNone {
		r.QueuedAt = &now
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed run: %v", err)
	}
	return r
}
