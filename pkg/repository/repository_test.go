package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/database/dbtest"
	apperrors "github.com/Ramsey-B/clover/pkg/errors"
)

type widgetRow struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Color string `db:"color"`
	Size  int    `db:"size"`
}

func newWidgetRepository(t *testing.T) (*Repository[widgetRow, string], database.DB) {
	t.Helper()
	db := dbtest.NewSQLite(t)
	_, err := db.ExecContext(context.Background(), `CREATE TABLE widgets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		color TEXT NOT NULL,
		size INTEGER NOT NULL CHECK (size >= 0)
	)`)
	require.NoError(t, err)

	repo := New(db, dbtest.Logger(), Schema[widgetRow, string]{
		Entity:    "Widget",
		Table:     "widgets",
		KeyColumn: "id",
		Key:       func(row *widgetRow) *string { return &row.ID },
		NewKey:    UUIDKey,
	})
	return repo, db
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &widgetRow{Name: "bolt", Color: "red", Size: 3})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	found, err := repo.FindByKey(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)

	missing, err := repo.FindByKey(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_CreateDuplicateIsConstraintViolation(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &widgetRow{Name: "bolt", Color: "red"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &widgetRow{Name: "bolt", Color: "blue"})
	assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)
}

func TestRepository_CreateMany(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	rows := make([]widgetRow, insertBatchSize+25)
	for i := range rows {
		rows[i] = widgetRow{Name: fmt.Sprintf("w-%04d", i), Color: "grey", Size: i}
	}

	created, err := repo.CreateMany(ctx, rows)
	require.NoError(t, err)
	for _, row := range created {
		assert.NotEmpty(t, row.ID)
	}

	all, err := repo.ReadAll(ctx, Where(Eq("color", "grey")))
	require.NoError(t, err)
	assert.Len(t, all, len(rows))
}

func TestRepository_CreateManyIsAtomic(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	_, err := repo.CreateMany(ctx, []widgetRow{
		{Name: "ok", Color: "grey", Size: 1},
		{Name: "negative", Color: "grey", Size: -1},
	})
	assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)

	all, err := repo.ReadAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRepository_ReadOneOrCreate(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	first, created, err := repo.ReadOneOrCreate(ctx, Where(Eq("name", "bolt")), &widgetRow{Name: "bolt", Color: "red", Size: 1})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.ReadOneOrCreate(ctx, Where(Eq("name", "bolt")), &widgetRow{Name: "bolt", Color: "blue", Size: 2})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "red", second.Color, "an existing row is returned as stored")
}

func TestRepository_ReadOneOrCreateRequiresFilter(t *testing.T) {
	repo, _ := newWidgetRepository(t)

	_, _, err := repo.ReadOneOrCreate(context.Background(), Filter{}, &widgetRow{Name: "bolt"})
	assert.ErrorIs(t, err, apperrors.ErrPreconditionFailed)
}

func TestRepository_ReadOneOrCreateConcurrent(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]bool{}
		creates int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row, created, err := repo.ReadOneOrCreate(ctx, Where(Eq("name", "bolt")), &widgetRow{Name: "bolt", Color: "red", Size: i})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[row.ID] = true
			if created {
				creates++
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, creates)
}

func TestRepository_ReadOneAmbiguous(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	_, err := repo.CreateMany(ctx, []widgetRow{{Name: "a", Color: "red"}, {Name: "b", Color: "red"}})
	require.NoError(t, err)

	_, err = repo.ReadOne(ctx, Where(Eq("color", "red")))
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousResult)
}

func TestRepository_ReadAllEmpty(t *testing.T) {
	repo, _ := newWidgetRepository(t)

	rows, err := repo.ReadAll(context.Background(), Where(Eq("color", "purple")))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestRepository_ReadAllOrdered(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	_, err := repo.CreateMany(ctx, []widgetRow{
		{Name: "b", Color: "red", Size: 2},
		{Name: "c", Color: "red", Size: 3},
		{Name: "a", Color: "red", Size: 1},
	})
	require.NoError(t, err)

	rows, err := repo.ReadAll(ctx, Filter{}, OrderBy("size DESC"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{rows[0].Name, rows[1].Name, rows[2].Name})
}

func TestRepository_UpdateByKey(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	row, err := repo.Create(ctx, &widgetRow{Name: "bolt", Color: "red", Size: 1})
	require.NoError(t, err)

	updated, err := repo.UpdateByKey(ctx, row.ID, Patch{"color": "blue", "size": 5})
	require.NoError(t, err)
	assert.Equal(t, "blue", updated.Color)
	assert.Equal(t, 5, updated.Size)
	assert.Equal(t, "bolt", updated.Name)

	_, err = repo.UpdateByKey(ctx, "does-not-exist", Patch{"color": "blue"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRepository_DeleteAll(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	_, err := repo.CreateMany(ctx, []widgetRow{
		{Name: "a", Color: "red"},
		{Name: "b", Color: "red"},
		{Name: "c", Color: "blue"},
	})
	require.NoError(t, err)

	deleted, err := repo.DeleteAll(ctx, Where(Eq("color", "red")))
	require.NoError(t, err)
	assert.Len(t, deleted, 2)

	remaining, err := repo.ReadAll(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "c", remaining[0].Name)

	none, err := repo.DeleteAll(ctx, Where(Eq("color", "green")))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_DeleteAllRequiresFilter(t *testing.T) {
	repo, _ := newWidgetRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &widgetRow{Name: "a", Color: "red"})
	require.NoError(t, err)

	_, err = repo.DeleteAll(ctx, Filter{})
	assert.ErrorIs(t, err, apperrors.ErrPreconditionFailed)

	remaining, err := repo.ReadAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestRepository_EventsFollowCommit(t *testing.T) {
	repo, db := newWidgetRepository(t)
	ctx := context.Background()

	var events []Event[widgetRow]
	record := func(_ context.Context, event Event[widgetRow]) {
		events = append(events, event)
	}
	repo.OnCreated(record)
	repo.OnUpdated(record)
	repo.OnDeleted(record)

	boom := errors.New("boom")
	err := database.WithTx(ctx, db, nil, func(ctx context.Context) error {
		if _, err := repo.Create(ctx, &widgetRow{Name: "rolled-back", Color: "red"}); err != nil {
			return err
		}
		assert.Empty(t, events, "events wait for the outer commit")
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, events)

	row, err := repo.Create(ctx, &widgetRow{Name: "kept", Color: "red"})
	require.NoError(t, err)
	_, err = repo.UpdateByKey(ctx, row.ID, Patch{"color": "blue"})
	require.NoError(t, err)
	_, err = repo.DeleteAll(ctx, Where(Eq("id", row.ID)))
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, EventCreated, events[0].Type)
	assert.Equal(t, EventUpdated, events[1].Type)
	assert.Equal(t, "blue", events[1].Entities[0].Color)
	assert.Equal(t, EventDeleted, events[2].Type)
}
