package runs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chartmotion-backend/internal/data/repos/testutil"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestDatasetRepoDedupesByOwnerHash(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewDatasetRepo(db, testutil.Logger(t))

	owner := uuid.New()
	first := &animation.Dataset{OwnerID: owner, Name: "sales.csv", ContentHash: "abc", StorageKey: "datasets/a", Delimiter: ","}
	got, created, err := repo.Create(dbc, first)
	if err != nil || !created {
		t.Fatalf("Create: created=%v err=%v", created, err)
	}

	dup := &animation.Dataset{OwnerID: owner, Name: "sales-copy.csv", ContentHash: "abc", StorageKey: "datasets/b", Delimiter: ","}
	again, created, err := repo.Create(dbc, dup)
	if err != nil {
		t.Fatalf("Create dup: %v", err)
	}
	if created || again.ID != got.ID {
		t.Fatalf("expected dedupe to %s, got created=%v id=%s", got.ID, created, again.ID)
	}

	other := &animation.Dataset{OwnerID: uuid.New(), Name: "sales.csv", ContentHash: "abc", StorageKey: "datasets/c", Delimiter: ","}
	if _, created, err := repo.Create(dbc, other); err != nil || !created {
		t.Fatalf("other owner should get its own row: created=%v err=%v", created, err)
	}

	if d, err := repo.FindLatestByName(dbc, owner, "sales.csv"); err != nil || d == nil || d.ID != got.ID {
		t.Fatalf("FindLatestByName: d=%v err=%v", d, err)
	}
	if d, err := repo.GetForOwner(dbc, uuid.New(), got.ID); err != nil || d != nil {
		t.Fatalf("GetForOwner should hide foreign datasets: d=%v err=%v", d, err)
	}
	list, err := repo.ListByOwner(dbc, owner, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByOwner: len=%d err=%v", len(list), err)
	}
}

func TestGenerationRunRepoClaimAndGuards(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewGenerationRunRepo(db, testutil.Logger(t))

	now := time.Now()
	owner := uuid.New()
	awaiting := &animation.GenerationRun{OwnerID: owner, State: animation.RunStateAwaitingMapping}
	older := &animation.GenerationRun{OwnerID: owner, State: animation.RunStateStarting, JobKind: animation.JobKindRender, QueuedAt: ptrTime(now.Add(-2 * time.Minute))}
	newer := &animation.GenerationRun{OwnerID: owner, State: animation.RunStateStarting, JobKind: animation.JobKindRender, QueuedAt: ptrTime(now.Add(-1 * time.Minute))}
	for _, r := range []*animation.GenerationRun{awaiting, older, newer} {
		if err := repo.Create(dbc, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	claimed, err := repo.ClaimNextRunnable(dbc)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil || claimed.ID != older.ID {
		t.Fatalf("expected oldest queued run %s, got %+v", older.ID, claimed)
	}
	if claimed.Attempts != 1 || claimed.LockedAt == nil {
		t.Fatalf("claim should lock and count attempt: %+v", claimed)
	}

	second, err := repo.ClaimNextRunnable(dbc)
	if err != nil || second == nil || second.ID != newer.ID {
		t.Fatalf("second claim: run=%+v err=%v", second, err)
	}
	third, err := repo.ClaimNextRunnable(dbc)
	if err != nil || third != nil {
		t.Fatalf("nothing left to claim: run=%+v err=%v", third, err)
	}

	ok, err := repo.UpdateFieldsIfState(dbc, awaiting.ID, []animation.RunState{animation.RunStateAwaitingMapping}, map[string]interface{}{
		"state": animation.RunStateCanceled,
	})
	if err != nil || !ok {
		t.Fatalf("cancel awaiting: ok=%v err=%v", ok, err)
	}
	ok, err = repo.UpdateFieldsUnlessState(dbc, awaiting.ID, []animation.RunState{animation.RunStateCanceled, animation.RunStateFailed, animation.RunStateCompleted}, map[string]interface{}{
		"state": animation.RunStatePreviewing,
	})
	if err != nil || ok {
		t.Fatalf("late write over canceled run must be refused: ok=%v err=%v", ok, err)
	}
	got, err := repo.GetByID(dbc, awaiting.ID)
	if err != nil || got.State != animation.RunStateCanceled {
		t.Fatalf("state after guarded update: %v err=%v", got, err)
	}

	if err := repo.UpdateFields(dbc, older.ID, map[string]interface{}{"heartbeat_at": now.Add(-time.Hour), "state": animation.RunStateRendering}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	stale, err := repo.ListStale(dbc, now.Add(-10*time.Minute), 10)
	if err != nil || len(stale) != 1 || stale[0].ID != older.ID {
		t.Fatalf("ListStale: %v err=%v", stale, err)
	}
	if err := repo.Heartbeat(dbc, older.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	stale, err = repo.ListStale(dbc, now.Add(-10*time.Minute), 10)
	if err != nil || len(stale) != 0 {
		t.Fatalf("heartbeat should clear staleness: %v err=%v", stale, err)
	}
}

func TestGenerationRunRepoListIdle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewGenerationRunRepo(db, testutil.Logger(t))

	run := &animation.GenerationRun{OwnerID: uuid.New(), State: animation.RunStateAwaitingMapping}
	if err := repo.Create(dbc, run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	idle, err := repo.ListIdle(dbc, animation.RunStateAwaitingMapping, time.Now().Add(time.Minute), 10)
	if err != nil || len(idle) != 1 {
		t.Fatalf("ListIdle: %v err=%v", idle, err)
	}
	idle, err = repo.ListIdle(dbc, animation.RunStateAwaitingMapping, time.Now().Add(-time.Hour), 10)
	if err != nil || len(idle) != 0 {
		t.Fatalf("ListIdle with old cutoff: %v err=%v", idle, err)
	}
}

func TestRunEventRepoSequencesPerRun(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRunEventRepo(db, testutil.Logger(t))

	runA, runB := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		ev := &animation.GenerationRunEvent{RunID: runA, Kind: animation.RunEventProgress, State: animation.RunStateRendering, Progress: i * 10}
		if err := repo.Append(dbc, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if ev.Seq != int64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, ev.Seq)
		}
	}
	evB := &animation.GenerationRunEvent{RunID: runB, Kind: animation.RunEventCreated, State: animation.RunStateStarting}
	if err := repo.Append(dbc, evB); err != nil || evB.Seq != 1 {
		t.Fatalf("independent run should start at 1: seq=%d err=%v", evB.Seq, err)
	}

	after, err := repo.ListAfter(dbc, runA, 1, 0)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	if len(after) != 2 || after[0].Seq != 2 || after[1].Seq != 3 {
		t.Fatalf("ListAfter returned %+v", after)
	}
	last, err := repo.LastSeq(dbc, runA)
	if err != nil || last != 3 {
		t.Fatalf("LastSeq: %d err=%v", last, err)
	}
}

func TestGenerationRunRepoClaimByID(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewGenerationRunRepo(db, testutil.Logger(t))

	queued := &animation.GenerationRun{OwnerID: uuid.New(), State: animation.RunStateStarting, JobKind: animation.JobKindRender, QueuedAt: ptrTime(time.Now())}
	awaiting := &animation.GenerationRun{OwnerID: uuid.New(), State: animation.RunStateAwaitingMapping}
	for _, r := range []*animation.GenerationRun{queued, awaiting} {
		if err := repo.Create(dbc, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.ClaimByID(dbc, queued.ID)
	if err != nil || got == nil || got.LockedAt == nil || got.Attempts != 1 {
		t.Fatalf("ClaimByID: run=%+v err=%v", got, err)
	}
	again, err := repo.ClaimByID(dbc, queued.ID)
	if err != nil || again != nil {
		t.Fatalf("a locked run cannot be claimed twice: run=%+v err=%v", again, err)
	}
	none, err := repo.ClaimByID(dbc, awaiting.ID)
	if err != nil || none != nil {
		t.Fatalf("awaiting runs are not claimable: run=%+v err=%v", none, err)
	}
}
