// Package storagetest is a conformance suite shared by every
// storage.Storage implementation.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-registry/internal/storage"
	"github.com/aanand-mishra/students-registry/internal/types"
)

// Factory returns an empty, ready-to-use Storage. The suite closes it.
type Factory func(t *testing.T) storage.Storage

// Ana is the reference record used throughout the tests.
func Ana() types.Student {
	return types.Student{
		Person: types.Person{
			ID:        1,
			Name:      "Ana",
			LastName:  "Gomez",
			BornPlace: "Medellin",
		},
		Degree:        "CS",
		Campus:        types.CampusRobledo,
		ScoreAdmision: 450,
	}
}

// Student builds a valid record with the given id.
func Student(id int64) types.Student {
	return types.Student{
		Person: types.Person{
			ID:        id,
			Name:      fmt.Sprintf("Name%d", id),
			LastName:  fmt.Sprintf("Last%d", id),
			BornPlace: "Envigado",
		},
		Degree:        "Ingenieria de Sistemas",
		Campus:        types.CampusCiudadUniversitaria,
		ScoreAdmision: int(id % 500),
	}
}

// Run executes the suite against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	open := func(t *testing.T) storage.Storage {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("round trip", func(t *testing.T) {
		s := open(t)
		ana := Ana()

		saved, err := s.Save(ctx, ana)
		require.NoError(t, err)
		assert.Equal(t, ana, saved)

		got, err := s.FindByID(ctx, ana.ID)
		require.NoError(t, err)
		assert.Equal(t, ana, got)
	})

	t.Run("idempotent read", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, Student(7))
		require.NoError(t, err)

		first, err := s.FindByID(ctx, 7)
		require.NoError(t, err)
		second, err := s.FindByID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("first match wins", func(t *testing.T) {
		s := open(t)
		older := Student(3)
		newer := Student(3)
		newer.Name = "Shadowed"

		_, err := s.Save(ctx, older)
		require.NoError(t, err)
		_, err = s.Save(ctx, newer)
		require.NoError(t, err)

		got, err := s.FindByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, older, got)
	})

	t.Run("not found is not a fault", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, Student(1))
		require.NoError(t, err)

		_, err = s.FindByID(ctx, 42)
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.False(t, storage.IsFault(err))
	})

	t.Run("empty store", func(t *testing.T) {
		s := open(t)
		_, err := s.FindByID(ctx, 1)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("rejects invalid record", func(t *testing.T) {
		s := open(t)
		bad := Ana()
		bad.Name = ""
		_, err := s.Save(ctx, bad)
		require.Error(t, err)
		assert.False(t, storage.IsFault(err))

		_, err = s.FindByID(ctx, bad.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, Student(5))
		require.NoError(t, err)
		_, err = s.Save(ctx, Student(5))
		require.NoError(t, err)
		_, err = s.Save(ctx, Student(6))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, 5))

		_, err = s.FindByID(ctx, 5)
		assert.ErrorIs(t, err, storage.ErrNotFound, "every duplicate is deleted")
		_, err = s.FindByID(ctx, 6)
		assert.NoError(t, err)

		err = s.Delete(ctx, 5)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("save after delete", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, Student(9))
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, 9))

		fresh := Student(9)
		fresh.Degree = "Medicina"
		fresh.Campus = types.CampusAreaDeLaSalud
		_, err = s.Save(ctx, fresh)
		require.NoError(t, err)

		got, err := s.FindByID(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, fresh, got)
	})

	t.Run("list in insertion order", func(t *testing.T) {
		s := open(t)
		for _, id := range []int64{4, 2, 8, 2} {
			_, err := s.Save(ctx, Student(id))
			require.NoError(t, err)
		}
		require.NoError(t, s.Delete(ctx, 8))

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []types.Student{Student(4), Student(2)}, list)
	})

	t.Run("concurrent saves", func(t *testing.T) {
		s := open(t)
		const n = 50

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 1; i <= n; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				if _, err := s.Save(ctx, Student(id)); err != nil {
					errs <- err
				}
			}(int64(i))
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("save failed: %v", err)
		}

		for i := 1; i <= n; i++ {
			got, err := s.FindByID(ctx, int64(i))
			require.NoError(t, err)
			assert.Equal(t, Student(int64(i)), got)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := open(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Save(cctx, Ana())
		assert.True(t, errors.Is(err, context.Canceled))
		_, err = s.FindByID(cctx, 1)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
