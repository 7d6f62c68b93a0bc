// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/store"
)

// CollectionStore keeps sessions in the encrypted sessions collection.
// Tokens are stored as SHA-256 digests.
type CollectionStore struct {
	sessions *store.Collection[model.SessionRecord, *model.SessionRecord]
	now      func() time.Time
}

// NewCollectionStore creates a session store on top of s.
func NewCollectionStore(s *store.Store) *CollectionStore {
	return &CollectionStore{
		sessions: store.NewCollection[model.SessionRecord](s, store.Sessions),
		now:      time.Now,
	}
}

func tokenID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Find implements scs.Store.
func (c *CollectionStore) Find(token string) ([]byte, bool, error) {
	return c.FindCtx(context.Background(), token)
}

// Commit implements scs.Store.
func (c *CollectionStore) Commit(token string, b []byte, expiry time.Time) error {
	return c.CommitCtx(context.Background(), token, b, expiry)
}

// Delete implements scs.Store.
func (c *CollectionStore) Delete(token string) error {
	return c.DeleteCtx(context.Background(), token)
}

// FindCtx implements scs.CtxStore. Expired sessions are not found.
func (c *CollectionStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	rec, err := c.sessions.Get(ctx, tokenID(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !c.now().Before(rec.Expiry) {
		return nil, false, nil
	}
	return rec.Data, true, nil
}

// CommitCtx implements scs.CtxStore.
func (c *CollectionStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	id := tokenID(token)
	return c.sessions.Mutate(ctx, func(docs []model.SessionRecord) ([]model.SessionRecord, error) {
		for i := range docs {
			if docs[i].ID == id {
				docs[i].Data = b
				docs[i].Expiry = expiry
				return docs, nil
			}
		}
		return append(docs, model.SessionRecord{ID: id, Data: b, Expiry: expiry}), nil
	})
}

// DeleteCtx implements scs.CtxStore. Deleting an unknown token is not an error.
func (c *CollectionStore) DeleteCtx(ctx context.Context, token string) error {
	id := tokenID(token)
	_, err := c.sessions.DeleteWhere(ctx, func(r *model.SessionRecord) bool { return r.ID == id })
	return err
}

// Cleanup removes expired sessions and reports how many were removed.
func (c *CollectionStore) Cleanup(ctx context.Context) (int, error) {
	now := c.now()
	return c.sessions.DeleteWhere(ctx, func(r *model.SessionRecord) bool {
		return !now.Before(r.Expiry)
	})
}

var _ scs.CtxStore = (*CollectionStore)(nil)
