package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sakif/quiet-hours/internal/apperror"
	"github.com/sakif/quiet-hours/internal/model"
	"github.com/sakif/quiet-hours/internal/repository"
)

// =========================================================================
// FAKE REPOSITORY
// =========================================================================

// fakeBlockRepo keeps blocks in memory and applies filters with
// model.BlockFilter.Matches, the same predicate the SQL mirrors.
type fakeBlockRepo struct {
	blocks  map[string]*model.Block
	nextID  int
	lastOpt repository.ListOptions
	listErr error
}

var _ repository.BlockRepository = (*fakeBlockRepo)(nil)

func newFakeBlockRepo() *fakeBlockRepo {
	return &fakeBlockRepo{blocks: make(map[string]*model.Block)}
}

func (f *fakeBlockRepo) Create(_ context.Context, b *model.Block) error {
	f.nextID++
	b.ID = fmt.Sprintf("block-%d", f.nextID)
	stored := *b
	f.blocks[b.ID] = &stored
	return nil
}

func (f *fakeBlockRepo) GetByID(_ context.Context, id string) (*model.Block, error) {
	b, ok := f.blocks[id]
	if !ok {
		return nil, apperror.NotFound("block", id)
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBlockRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Block, error) {
	f.lastOpt = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Block{}
	for _, b := range f.blocks {
		if b.UserID == opts.UserID && opts.Filter.Matches(b, opts.Now) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeBlockRepo) Stats(_ context.Context, userID string, now time.Time) (*model.BlockStats, error) {
	var s model.BlockStats
	for _, b := range f.blocks {
		if b.UserID != userID {
			continue
		}
		s.Total++
		switch b.Status(now) {
		case model.StatusActive:
			s.Active++
		case model.StatusUpcoming:
			s.Upcoming++
		case model.StatusCompleted:
			s.Completed++
		}
	}
	return &s, nil
}

func (f *fakeBlockRepo) Update(_ context.Context, b *model.Block) error {
	existing, ok := f.blocks[b.ID]
	if !ok {
		return apperror.NotFound("block", b.ID)
	}
	// Mirror the SQL: reminder_sent_at is not an updatable column.
	sent := existing.ReminderSentAt
	stored := *b
	stored.ReminderSentAt = sent
	f.blocks[b.ID] = &stored
	return nil
}

func (f *fakeBlockRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.blocks[id]; !ok {
		return apperror.NotFound("block", id)
	}
	delete(f.blocks, id)
	return nil
}

// fixedNow is the service clock in every test below.
var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestBlockService(repo *fakeBlockRepo) *BlockService {
	s := NewBlockService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return fixedNow }
	return s
}

func intPtr(i int) *int { return &i }

func validInput() BlockInput {
	return BlockInput{
		Title:     "  Calculus review  ",
		StartTime: fixedNow.Add(time.Hour),
		EndTime:   fixedNow.Add(2 * time.Hour),
	}
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreate_Valid(t *testing.T) {
	svc := newTestBlockService(newFakeBlockRepo())

	b, err := svc.Create(context.Background(), "user-1", validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if b.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if b.Title != "Calculus review" {
		t.Errorf("Title = %q, want trimmed", b.Title)
	}
	if b.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", b.UserID)
	}
	if b.RemindBeforeMinutes != model.DefaultRemindBeforeMinutes {
		t.Errorf("RemindBeforeMinutes = %d, want default %d", b.RemindBeforeMinutes, model.DefaultRemindBeforeMinutes)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *BlockInput)
		wantField string
	}{
		{"empty title", func(in *BlockInput) { in.Title = "   " }, "title"},
		{"title too long", func(in *BlockInput) { in.Title = strings.Repeat("a", MaxTitleLength+1) }, "title"},
		{"description too long", func(in *BlockInput) { in.Description = strings.Repeat("d", MaxDescriptionLength+1) }, "description"},
		{"missing start", func(in *BlockInput) { in.StartTime = time.Time{} }, "startTime"},
		{"end equals start", func(in *BlockInput) { in.EndTime = in.StartTime }, "endTime"},
		{"end before start", func(in *BlockInput) { in.EndTime = in.StartTime.Add(-time.Minute) }, "endTime"},
		{"start in the past", func(in *BlockInput) {
			in.StartTime = fixedNow.Add(-time.Minute)
			in.EndTime = fixedNow.Add(time.Hour)
		}, "startTime"},
		{"start exactly now", func(in *BlockInput) { in.StartTime = fixedNow }, "startTime"},
		{"remind zero", func(in *BlockInput) { in.RemindBeforeMinutes = intPtr(0) }, "remindBeforeMinutes"},
		{"remind over a day", func(in *BlockInput) { in.RemindBeforeMinutes = intPtr(MaxRemindBefore + 1) }, "remindBeforeMinutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestBlockService(newFakeBlockRepo())
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), "user-1", in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

func TestCreate_TitleLengthCountsCharacters(t *testing.T) {
	svc := newTestBlockService(newFakeBlockRepo())
	in := validInput()
	in.Title = strings.Repeat("é", MaxTitleLength)

	if _, err := svc.Create(context.Background(), "user-1", in); err != nil {
		t.Fatalf("Create() with %d multi-byte characters error = %v", MaxTitleLength, err)
	}
}

func TestCreate_CustomRemindBefore(t *testing.T) {
	svc := newTestBlockService(newFakeBlockRepo())
	in := validInput()
	in.RemindBeforeMinutes = intPtr(30)

	b, err := svc.Create(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if b.RemindBeforeMinutes != 30 {
		t.Errorf("RemindBeforeMinutes = %d, want 30", b.RemindBeforeMinutes)
	}
}

// =========================================================================
// OWNERSHIP
// =========================================================================

func TestOtherUsersBlocksAreNotFound(t *testing.T) {
	repo := newFakeBlockRepo()
	svc := newTestBlockService(repo)
	ctx := context.Background()

	b, err := svc.Create(ctx, "owner", validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Get(ctx, "intruder", b.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Update(ctx, "intruder", b.ID, validInput()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "intruder", b.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
	if _, ok := repo.blocks[b.ID]; !ok {
		t.Error("intruder's Delete() removed the block")
	}
}

// =========================================================================
// LIST / STATS
// =========================================================================

func TestList_ClampsAndScopes(t *testing.T) {
	repo := newFakeBlockRepo()
	svc := newTestBlockService(repo)

	if _, err := svc.List(context.Background(), "user-1", model.FilterUpcoming, 0, -5); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if repo.lastOpt.Limit != DefaultListLimit || repo.lastOpt.Offset != 0 {
		t.Errorf("limit/offset = %d/%d, want %d/0", repo.lastOpt.Limit, repo.lastOpt.Offset, DefaultListLimit)
	}
	if repo.lastOpt.UserID != "user-1" || repo.lastOpt.Filter != model.FilterUpcoming {
		t.Errorf("ListOptions = %+v", repo.lastOpt)
	}
	if !repo.lastOpt.Now.Equal(fixedNow) {
		t.Errorf("Now = %v, want the service clock %v", repo.lastOpt.Now, fixedNow)
	}

	if _, err := svc.List(context.Background(), "user-1", model.FilterAll, 10000, 0); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if repo.lastOpt.Limit != MaxListLimit {
		t.Errorf("limit = %d, want %d", repo.lastOpt.Limit, MaxListLimit)
	}
}

func TestList_WrapsRepositoryError(t *testing.T) {
	repo := newFakeBlockRepo()
	repo.listErr = errors.New("disk I/O error")
	svc := newTestBlockService(repo)

	_, err := svc.List(context.Background(), "user-1", model.FilterAll, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "disk I/O error") {
		t.Fatalf("List() error = %v, want wrapped repository error", err)
	}
}

func TestStats(t *testing.T) {
	repo := newFakeBlockRepo()
	svc := newTestBlockService(repo)
	repo.blocks["past"] = &model.Block{ID: "past", UserID: "u", StartTime: fixedNow.Add(-3 * time.Hour), EndTime: fixedNow.Add(-2 * time.Hour)}
	repo.blocks["now"] = &model.Block{ID: "now", UserID: "u", StartTime: fixedNow.Add(-time.Hour), EndTime: fixedNow.Add(time.Hour)}
	repo.blocks["next"] = &model.Block{ID: "next", UserID: "u", StartTime: fixedNow.Add(time.Hour), EndTime: fixedNow.Add(2 * time.Hour)}

	stats, err := svc.Stats(context.Background(), "u")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := model.BlockStats{Active: 1, Upcoming: 1, Completed: 1, Total: 3}
	if *stats != want {
		t.Errorf("Stats() = %+v, want %+v", *stats, want)
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdate_RunningBlockKeepsPastStart(t *testing.T) {
	repo := newFakeBlockRepo()
	svc := newTestBlockService(repo)
	start := fixedNow.Add(-30 * time.Minute)
	repo.blocks["running"] = &model.Block{
		ID: "running", UserID: "u", Title: "old",
		StartTime: start, EndTime: fixedNow.Add(30 * time.Minute),
		RemindBeforeMinutes: 10,
	}

	updated, err := svc.Update(context.Background(), "u", "running", BlockInput{
		Title:     "new title",
		StartTime: start,
		EndTime:   fixedNow.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "new title" || !updated.EndTime.Equal(fixedNow.Add(time.Hour)) {
		t.Errorf("Update() = %+v", updated)
	}
	if updated.RemindBeforeMinutes != 10 {
		t.Errorf("RemindBeforeMinutes = %d, want unchanged 10", updated.RemindBeforeMinutes)
	}
}

func TestUpdate_MovingStartIntoPastRejected(t *testing.T) {
	repo := newFakeBlockRepo()
	svc := newTestBlockService(repo)
	b, _ := svc.Create(context.Background(), "u", validInput())

	in := validInput()
	in.StartTime = fixedNow.Add(-time.Minute)
	_, err := svc.Update(context.Background(), "u", b.ID, in)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Update() error = %v, want ErrValidation", err)
	}
}

func TestUpdate_DoesNotRearmSentReminder(t *testing.T) {
	repo := newFakeBlockRepo()
	svc := newTestBlockService(repo)
	b, _ := svc.Create(context.Background(), "u", validInput())
	sent := fixedNow.Add(-time.Minute)
	repo.blocks[b.ID].ReminderSentAt = &sent

	in := validInput()
	in.StartTime = fixedNow.Add(3 * time.Hour)
	in.EndTime = fixedNow.Add(4 * time.Hour)
	if _, err := svc.Update(context.Background(), "u", b.ID, in); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if got := repo.blocks[b.ID].ReminderSentAt; got == nil || !got.Equal(sent) {
		t.Errorf("ReminderSentAt = %v, want %v", got, sent)
	}
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete(t *testing.T) {
	repo := newFakeBlockRepo()
	svc := newTestBlockService(repo)
	b, _ := svc.Create(context.Background(), "u", validInput())

	if err := svc.Delete(context.Background(), "u", b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(context.Background(), "u", b.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestGet_EmptyID(t *testing.T) {
	svc := newTestBlockService(newFakeBlockRepo())

	if _, err := svc.Get(context.Background(), "u", "  "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Get() error = %v, want ErrValidation", err)
	}
}
