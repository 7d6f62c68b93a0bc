// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/firebook/internal/cryptobox"
)

var errEmptyText = errors.New("text required")

type note struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (n *note) GetID() string         { return n.ID }
func (n *note) SetID(id string)       { n.ID = id }
func (n *note) GetLocationID() string { return n.LocationID }

func (n *note) GetCreatedAt() time.Time  { return n.CreatedAt }
func (n *note) SetCreatedAt(t time.Time) { n.CreatedAt = t }

func (n *note) Validate() error {
	if n.Text == "" {
		return errEmptyText
	}
	return nil
}

func (n *note) Stamp(now time.Time) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBox(t *testing.T) *cryptobox.Box {
	t.Helper()
	key := make([]byte, cryptobox.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	box, err := cryptobox.New(key)
	require.NoError(t, err)
	return box
}

func memNotes(t *testing.T) *Collection[note, *note] {
	t.Helper()
	s := New(NewMemoryBackend(time.Second), testBox(t), quietLogger())
	return NewCollection[note](s, "notes")
}

func TestCollection_CRUD(t *testing.T) {
	ctx := context.Background()
	notes := memNotes(t)

	list, err := notes.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	created, err := notes.Create(ctx, note{Text: "hose check", LocationID: "1"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := notes.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hose check", got.Text)

	updated, err := notes.Update(ctx, created.ID, func(n *note) error {
		n.Text = "hose replaced"
		n.ID = "hijack"
		n.CreatedAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "hose replaced", updated.Text)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	require.NoError(t, notes.Delete(ctx, created.ID))

	_, err = notes.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = notes.Update(ctx, created.ID, func(*note) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, notes.Delete(ctx, created.ID), ErrNotFound)
}

func TestCollection_Validation(t *testing.T) {
	ctx := context.Background()
	notes := memNotes(t)

	_, err := notes.Create(ctx, note{})
	assert.ErrorIs(t, err, errEmptyText)

	n, err := notes.Create(ctx, note{Text: "a"})
	require.NoError(t, err)

	_, err = notes.Update(ctx, n.ID, func(n *note) error {
		n.Text = ""
		return nil
	})
	assert.ErrorIs(t, err, errEmptyText)

	got, err := notes.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Text)
}

func TestCollection_DuplicateID(t *testing.T) {
	ctx := context.Background()
	notes := memNotes(t)

	_, err := notes.Create(ctx, note{ID: "fixed", Text: "a"})
	require.NoError(t, err)
	_, err = notes.Create(ctx, note{ID: "fixed", Text: "b"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCollection_ChecksAndGuards(t *testing.T) {
	ctx := context.Background()
	notes := memNotes(t)
	errTaken := errors.New("taken")

	unique := func(c *note, docs []note) error {
		for _, d := range docs {
			if d.ID != c.ID && d.Text == c.Text {
				return errTaken
			}
		}
		return nil
	}

	a, err := notes.Create(ctx, note{Text: "a"}, unique)
	require.NoError(t, err)
	_, err = notes.Create(ctx, note{Text: "b"}, unique)
	require.NoError(t, err)
	_, err = notes.Create(ctx, note{Text: "a"}, unique)
	assert.ErrorIs(t, err, errTaken)

	// Renaming to itself passes; renaming onto another fails.
	_, err = notes.Update(ctx, a.ID, func(n *note) error { return nil }, unique)
	require.NoError(t, err)
	_, err = notes.Update(ctx, a.ID, func(n *note) error {
		n.Text = "b"
		return nil
	}, unique)
	assert.ErrorIs(t, err, errTaken)

	errDenied := errors.New("denied")
	err = notes.Delete(ctx, a.ID, func(*note) error { return errDenied })
	assert.ErrorIs(t, err, errDenied)

	list, err := notes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCollection_Filters(t *testing.T) {
	ctx := context.Background()
	notes := memNotes(t)

	for _, loc := range []string{"1", "2", "1", ""} {
		_, err := notes.Create(ctx, note{Text: "x", LocationID: loc})
		require.NoError(t, err)
	}

	one, err := notes.List(ctx, InLocation[note]("1"))
	require.NoError(t, err)
	assert.Len(t, one, 2)
	for _, n := range one {
		assert.Equal(t, "1", n.LocationID)
	}

	found, err := notes.Find(ctx, InLocation[note]("2"))
	require.NoError(t, err)
	assert.Equal(t, "2", found.LocationID)

	_, err = notes.Find(ctx, InLocation[note]("9"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollection_MutateAndDeleteWhere(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(time.Second)
	notes := NewCollection[note](New(backend, testBox(t), quietLogger()), "notes")

	err := notes.Mutate(ctx, func(docs []note) ([]note, error) {
		return nil, ErrUnchanged
	})
	require.NoError(t, err)
	blob, err := backend.Load("notes")
	require.NoError(t, err)
	assert.Nil(t, blob, "unchanged mutate must not write")

	err = notes.Mutate(ctx, func(docs []note) ([]note, error) {
		for _, text := range []string{"keep", "drop", "drop"} {
			n := note{ID: NewID(), Text: text}
			if err := notes.Prepare(&n); err != nil {
				return nil, err
			}
			docs = append(docs, n)
		}
		return docs, nil
	})
	require.NoError(t, err)

	removed, err := notes.DeleteWhere(ctx, func(n *note) bool { return n.Text == "drop" })
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = notes.DeleteWhere(ctx, func(n *note) bool { return n.Text == "drop" })
	require.NoError(t, err)
	assert.Zero(t, removed)

	list, err := notes.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].Text)
	assert.False(t, list[0].UpdatedAt.IsZero())

	errAbort := errors.New("abort")
	err = notes.Mutate(ctx, func(docs []note) ([]note, error) {
		return nil, errAbort
	})
	assert.ErrorIs(t, err, errAbort)
	list, err = notes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCollection_CorruptIsNotEmpty(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(time.Second)
	notes := NewCollection[note](New(backend, testBox(t), quietLogger()), "notes")

	_, err := notes.Create(ctx, note{Text: "important"})
	require.NoError(t, err)

	// Same blob, different key.
	other := NewCollection[note](New(backend, testBox(t), quietLogger()), "notes")
	_, err = other.List(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorIs(t, err, cryptobox.ErrCrypto)

	_, err = other.Create(ctx, note{Text: "overwrite"})
	assert.ErrorIs(t, err, ErrCorrupt, "writes must not replace an unreadable collection")

	list, err := notes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, backend.Save("notes", []byte("garbage")))
	_, err = notes.List(ctx)
	assert.ErrorIs(t, err, cryptobox.ErrCrypto)
}

func TestCollection_UndecodableIsCorrupt(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(time.Second)
	s := New(backend, testBox(t), quietLogger())
	require.NoError(t, s.write("notes", []byte(`{"not":"an array"}`)))

	_, err := NewCollection[note](s, "notes").List(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.NotErrorIs(t, err, cryptobox.ErrCrypto)
}

func TestStore_Check(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(time.Second)
	s := New(backend, testBox(t), quietLogger())

	require.NoError(t, s.Check(ctx, "users"), "missing collection is readable")

	_, err := NewCollection[note](s, "users").Create(ctx, note{Text: "x"})
	require.NoError(t, err)
	require.NoError(t, s.Check(ctx, "users"))

	wrongKey := New(backend, testBox(t), quietLogger())
	assert.ErrorIs(t, wrongKey.Check(ctx, "users"), cryptobox.ErrCrypto)
	assert.ErrorIs(t, s.Check(ctx, "../etc"), ErrInvalidName)
}

func TestMemoryBackend_LockTimeout(t *testing.T) {
	backend := NewMemoryBackend(30 * time.Millisecond)
	held, err := backend.Lock(context.Background(), "notes", true)
	require.NoError(t, err)

	_, err = backend.Lock(context.Background(), "notes", false)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, held.Unlock())
	again, err := backend.Lock(context.Background(), "notes", true)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestCollection_ConcurrentCreatesMemory(t *testing.T) {
	ctx := context.Background()
	notes := memNotes(t)

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := notes.Create(ctx, note{Text: "concurrent"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := notes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"users", true},
		{"phone_numbers", true},
		{"a1", true},
		{"", false},
		{"Users", false},
		{"../users", false},
		{"users.json", false},
		{"1users", false},
		{"a/b", false},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if tt.valid {
			assert.NoError(t, err, tt.name)
		} else {
			assert.ErrorIs(t, err, ErrInvalidName, tt.name)
		}
	}
}
