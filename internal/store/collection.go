// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document is implemented by the pointer type of every stored record.
type Document interface {
	GetID() string
	SetID(id string)
}

// Doc constrains P to be *T implementing Document.
type Doc[T any] interface {
	*T
	Document
}

// Optional hooks a document type may implement on its pointer receiver.
type (
	// Normalizer cleans user input before validation.
	Normalizer interface{ Normalize() }
	// Validator rejects documents that must not be stored.
	Validator interface{ Validate() error }
	// Stamper records creation and modification times.
	Stamper interface{ Stamp(now time.Time) }
	// Scoped documents belong to a location. An empty id means unscoped.
	Scoped interface{ GetLocationID() string }
	// Created documents keep their creation time across updates.
	Created interface {
		GetCreatedAt() time.Time
		SetCreatedAt(t time.Time)
	}
)

// Filter selects documents in List and Find.
type Filter[T any] func(doc *T) bool

// Check inspects a candidate document against the current contents of the
// collection, under the lock, and may veto the write. The candidate's own old
// version is still present in docs during an Update.
type Check[T any] func(candidate *T, docs []T) error

// InLocation keeps documents whose location id equals locationID.
func InLocation[T any, P interface {
	*T
	Scoped
}](locationID string) Filter[T] {
	return func(doc *T) bool {
		return P(doc).GetLocationID() == locationID
	}
}

// NewID returns a random collision-resistant document id.
func NewID() string {
	return uuid.NewString()
}

// Collection is a typed view over one named collection.
type Collection[T any, P Doc[T]] struct {
	store *Store
	name  string
	now   func() time.Time
}

// NewCollection binds a document type to a collection name.
func NewCollection[T any, P Doc[T]](s *Store, name string) *Collection[T, P] {
	if err := ValidateName(name); err != nil {
		panic(err)
	}
	return &Collection[T, P]{store: s, name: name, now: time.Now}
}

// Name returns the collection name.
func (c *Collection[T, P]) Name() string { return c.name }

// SetClock replaces the time source used for timestamps.
func (c *Collection[T, P]) SetClock(now func() time.Time) { c.now = now }

func (c *Collection[T, P]) load() ([]T, error) {
	plain, err := c.store.read(c.name)
	if err != nil {
		return nil, err
	}
	if len(plain) == 0 {
		return []T{}, nil
	}
	var docs []T
	if err := json.Unmarshal(plain, &docs); err != nil {
		c.store.logger.Error("collection failed to decode", "collection", c.name, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, c.name, err)
	}
	if docs == nil {
		docs = []T{}
	}
	return docs, nil
}

func (c *Collection[T, P]) save(docs []T) error {
	if docs == nil {
		docs = []T{}
	}
	plain, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", c.name, err)
	}
	return c.store.write(c.name, plain)
}

func indexOf[T any, P Doc[T]](docs []T, id string) int {
	for i := range docs {
		if P(&docs[i]).GetID() == id {
			return i
		}
	}
	return -1
}

// Prepare normalizes, validates and stamps a document. Create and Update call
// it; Mutate callbacks call it for documents they add.
func (c *Collection[T, P]) Prepare(doc *T) error {
	p := P(doc)
	if n, ok := any(p).(Normalizer); ok {
		n.Normalize()
	}
	if v, ok := any(p).(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if s, ok := any(p).(Stamper); ok {
		s.Stamp(c.now().UTC())
	}
	return nil
}

func matchAll[T any](doc *T, filters []Filter[T]) bool {
	for _, f := range filters {
		if f != nil && !f(doc) {
			return false
		}
	}
	return true
}

// List returns the documents matching every filter, in stored order.
func (c *Collection[T, P]) List(ctx context.Context, filters ...Filter[T]) ([]T, error) {
	var out []T
	err := c.store.withLock(ctx, c.name, false, func() error {
		docs, err := c.load()
		if err != nil {
			return err
		}
		out = make([]T, 0, len(docs))
		for i := range docs {
			if matchAll(&docs[i], filters) {
				out = append(out, docs[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the document with the given id.
func (c *Collection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	var out *T
	err := c.store.withLock(ctx, c.name, false, func() error {
		docs, err := c.load()
		if err != nil {
			return err
		}
		i := indexOf[T, P](docs, id)
		if i < 0 {
			return fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
		}
		doc := docs[i]
		out = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Find returns the first document matching every filter.
func (c *Collection[T, P]) Find(ctx context.Context, filters ...Filter[T]) (*T, error) {
	var out *T
	err := c.store.withLock(ctx, c.name, false, func() error {
		docs, err := c.load()
		if err != nil {
			return err
		}
		for i := range docs {
			if matchAll(&docs[i], filters) {
				doc := docs[i]
				out = &doc
				return nil
			}
		}
		return fmt.Errorf("%s: %w", c.name, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create stores a new document. An empty id is replaced with a generated one.
// Checks run under the lock before the write.
func (c *Collection[T, P]) Create(ctx context.Context, doc T, checks ...Check[T]) (*T, error) {
	err := c.store.withLock(ctx, c.name, true, func() error {
		docs, err := c.load()
		if err != nil {
			return err
		}

		p := P(&doc)
		if p.GetID() == "" {
			p.SetID(NewID())
		} else if indexOf[T, P](docs, p.GetID()) >= 0 {
			return fmt.Errorf("%s %q: %w", c.name, p.GetID(), ErrDuplicateID)
		}
		if err := c.Prepare(&doc); err != nil {
			return err
		}
		for _, check := range checks {
			if err := check(&doc, docs); err != nil {
				return err
			}
		}

		return c.save(append(docs, doc))
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Update applies patch to the stored document and writes it back. The patch
// sees the stored version and may reject it by returning an error. The id and
// the creation time of Created documents are immutable.
func (c *Collection[T, P]) Update(ctx context.Context, id string, patch func(doc *T) error, checks ...Check[T]) (*T, error) {
	var out T
	err := c.store.withLock(ctx, c.name, true, func() error {
		docs, err := c.load()
		if err != nil {
			return err
		}
		i := indexOf[T, P](docs, id)
		if i < 0 {
			return fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
		}

		doc := docs[i]
		var createdAt time.Time
		created, hasCreated := any(P(&doc)).(Created)
		if hasCreated {
			createdAt = created.GetCreatedAt()
		}
		if err := patch(&doc); err != nil {
			return err
		}
		P(&doc).SetID(id)
		if hasCreated {
			created.SetCreatedAt(createdAt)
		}
		if err := c.Prepare(&doc); err != nil {
			return err
		}
		for _, check := range checks {
			if err := check(&doc, docs); err != nil {
				return err
			}
		}

		docs[i] = doc
		out = doc
		return c.save(docs)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the document with the given id. Guards see the stored
// document and may veto the removal.
func (c *Collection[T, P]) Delete(ctx context.Context, id string, guards ...func(doc *T) error) error {
	return c.store.withLock(ctx, c.name, true, func() error {
		docs, err := c.load()
		if err != nil {
			return err
		}
		i := indexOf[T, P](docs, id)
		if i < 0 {
			return fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
		}
		for _, guard := range guards {
			if err := guard(&docs[i]); err != nil {
				return err
			}
		}
		return c.save(append(docs[:i], docs[i+1:]...))
	})
}

// DeleteWhere removes every document matching all filters and reports how
// many were removed. Nothing is written when nothing matches.
func (c *Collection[T, P]) DeleteWhere(ctx context.Context, filters ...Filter[T]) (int, error) {
	removed := 0
	err := c.Mutate(ctx, func(docs []T) ([]T, error) {
		kept := docs[:0]
		for i := range docs {
			if matchAll(&docs[i], filters) {
				removed++
				continue
			}
			kept = append(kept, docs[i])
		}
		if removed == 0 {
			return nil, ErrUnchanged
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Mutate runs fn over the whole collection under the exclusive lock and saves
// what it returns. Returning ErrUnchanged ends without a write; any other error
// aborts. Documents added by fn must go through Prepare.
func (c *Collection[T, P]) Mutate(ctx context.Context, fn func(docs []T) ([]T, error)) error {
	return c.store.withLock(ctx, c.name, true, func() error {
		docs, err := c.load()
		if err != nil {
			return err
		}
		next, err := fn(docs)
		if errors.Is(err, ErrUnchanged) {
			return nil
		}
		if err != nil {
			return err
		}
		return c.save(next)
	})
}
