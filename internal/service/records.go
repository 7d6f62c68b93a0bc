// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the location-scoped, authorization-gated
// collection modules: locations, personnel, vehicles, attendance, missions,
// phone numbers and settings, plus the audit event log.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/store"
)

// Scopable is a stored document that belongs to a location.
type Scopable[T any] interface {
	store.Doc[T]
	store.Scoped
	SetLocationID(id string)
}

// Policy sets the minimum role per operation. Reading needs any valid role.
type Policy struct {
	Create model.Role
	Write  model.Role
	Delete model.Role
}

// OperatorPolicy lets every signed-in user maintain records.
var OperatorPolicy = Policy{Create: model.RoleOperator, Write: model.RoleOperator, Delete: model.RoleOperator}

// Records is the CRUD service of one location-scoped collection.
type Records[T any, P Scopable[T]] struct {
	coll   *store.Collection[T, P]
	policy Policy
	checks []store.Check[T]
	logger *slog.Logger
}

// NewRecords creates a collection service. Checks run under the collection
// lock on every create and update.
func NewRecords[T any, P Scopable[T]](s *store.Store, name string, policy Policy, logger *slog.Logger, checks ...store.Check[T]) *Records[T, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Records[T, P]{
		coll:   store.NewCollection[T, P](s, name),
		policy: policy,
		checks: checks,
		logger: logger,
	}
}

// Name returns the collection name.
func (r *Records[T, P]) Name() string { return r.coll.Name() }

// Collection returns the underlying collection.
func (r *Records[T, P]) Collection() *store.Collection[T, P] { return r.coll }

func (r *Records[T, P]) require(actor *auth.Identity, min model.Role, op string) error {
	if actor == nil {
		return auth.ErrAuthentication
	}
	if !actor.HasRole(min) {
		r.logger.Warn("record access denied", "category", model.EventCategoryAccess,
			"collection", r.Name(), "op", op, "user_id", actor.UserID, "role", actor.Role)
		return auth.ErrAuthorization
	}
	return nil
}

func (r *Records[T, P]) denyLocation(actor *auth.Identity, op, locationID string) error {
	r.logger.Warn("record location denied", "category", model.EventCategoryAccess,
		"collection", r.Name(), "op", op, "user_id", actor.UserID, "location_id", locationID)
	return auth.ErrAuthorization
}

// List returns the records visible to actor. A non-empty locationID narrows
// the result further.
func (r *Records[T, P]) List(ctx context.Context, actor *auth.Identity, locationID string) ([]T, error) {
	if err := r.require(actor, model.RoleOperator, "list"); err != nil {
		return nil, err
	}
	return r.coll.List(ctx, func(doc *T) bool {
		loc := P(doc).GetLocationID()
		return actor.CanAccess(loc) && (locationID == "" || loc == locationID)
	})
}

// Get returns one record.
func (r *Records[T, P]) Get(ctx context.Context, actor *auth.Identity, id string) (*T, error) {
	if err := r.require(actor, model.RoleOperator, "get"); err != nil {
		return nil, err
	}
	doc, err := r.coll.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc := P(doc).GetLocationID(); !actor.CanAccess(loc) {
		return nil, r.denyLocation(actor, "get", loc)
	}
	return doc, nil
}

// Create stores a new record. Scoped actors get their own location stamped
// and may not name another.
func (r *Records[T, P]) Create(ctx context.Context, actor *auth.Identity, doc T) (*T, error) {
	if err := r.require(actor, r.policy.Create, "create"); err != nil {
		return nil, err
	}
	p := P(&doc)
	p.SetID("")
	if !actor.IsGlobal() {
		switch loc := p.GetLocationID(); loc {
		case "":
			p.SetLocationID(actor.LocationID)
		case actor.LocationID:
		default:
			return nil, r.denyLocation(actor, "create", loc)
		}
	}

	created, err := r.coll.Create(ctx, doc, r.checks...)
	if err != nil {
		return nil, err
	}
	r.logger.Info("record created", "collection", r.Name(), "id", P(created).GetID(), "user_id", actor.UserID)
	return created, nil
}

// Update applies patch to a stored record. Scoped actors may only touch
// records of their location and may not move them elsewhere.
func (r *Records[T, P]) Update(ctx context.Context, actor *auth.Identity, id string, patch func(doc *T) error) (*T, error) {
	if err := r.require(actor, r.policy.Write, "update"); err != nil {
		return nil, err
	}
	updated, err := r.coll.Update(ctx, id, func(doc *T) error {
		before := P(doc).GetLocationID()
		if !actor.CanAccess(before) {
			return r.denyLocation(actor, "update", before)
		}
		if err := patch(doc); err != nil {
			return err
		}
		if after := P(doc).GetLocationID(); after != before && !actor.IsGlobal() {
			return r.denyLocation(actor, "move", after)
		}
		return nil
	}, r.checks...)
	if err != nil {
		return nil, err
	}
	r.logger.Info("record updated", "collection", r.Name(), "id", id, "user_id", actor.UserID)
	return updated, nil
}

// Delete removes a record.
func (r *Records[T, P]) Delete(ctx context.Context, actor *auth.Identity, id string) error {
	if err := r.require(actor, r.policy.Delete, "delete"); err != nil {
		return err
	}
	err := r.coll.Delete(ctx, id, func(doc *T) error {
		if loc := P(doc).GetLocationID(); !actor.CanAccess(loc) {
			return r.denyLocation(actor, "delete", loc)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("record deleted", "collection", r.Name(), "id", id, "user_id", actor.UserID)
	return nil
}

// decodeInvalid wraps a JSON decoding error as a validation error.
func decodeInvalid(err error) error {
	return fmt.Errorf("%w: body: %s", model.ErrValidation, err)
}

// Resource is the JSON view of a collection service used by the HTTP layer.
type Resource interface {
	Name() string
	ListAny(ctx context.Context, actor *auth.Identity, locationID string) (any, error)
	GetAny(ctx context.Context, actor *auth.Identity, id string) (any, error)
	CreateJSON(ctx context.Context, actor *auth.Identity, body []byte) (any, error)
	UpdateJSON(ctx context.Context, actor *auth.Identity, id string, body []byte) (any, error)
	Delete(ctx context.Context, actor *auth.Identity, id string) error
}

// ListAny implements Resource.
func (r *Records[T, P]) ListAny(ctx context.Context, actor *auth.Identity, locationID string) (any, error) {
	return r.List(ctx, actor, locationID)
}

// GetAny implements Resource.
func (r *Records[T, P]) GetAny(ctx context.Context, actor *auth.Identity, id string) (any, error) {
	return r.Get(ctx, actor, id)
}

// CreateJSON implements Resource.
func (r *Records[T, P]) CreateJSON(ctx context.Context, actor *auth.Identity, body []byte) (any, error) {
	var doc T
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, decodeInvalid(err)
	}
	// The creation time is set by the store, never by the client.
	if created, ok := any(P(&doc)).(store.Created); ok {
		created.SetCreatedAt(time.Time{})
	}
	return r.Create(ctx, actor, doc)
}

// UpdateJSON implements Resource. Fields present in body overwrite the stored
// record; absent fields are kept.
func (r *Records[T, P]) UpdateJSON(ctx context.Context, actor *auth.Identity, id string, body []byte) (any, error) {
	if !json.Valid(body) {
		return nil, decodeInvalid(fmt.Errorf("malformed JSON"))
	}
	return r.Update(ctx, actor, id, func(doc *T) error {
		if err := json.Unmarshal(body, doc); err != nil {
			return decodeInvalid(err)
		}
		return nil
	})
}

var _ Resource = (*Records[model.Person, *model.Person])(nil)
