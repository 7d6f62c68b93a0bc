// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/store"
	"github.com/olegiv/firebook/internal/testutil"
)

var (
	globalAdmin = &auth.Identity{UserID: "ga", Role: model.RoleGlobalAdmin}
	admin1      = &auth.Identity{UserID: "la1", Role: model.RoleLocationAdmin, LocationID: "1"}
	operator1   = &auth.Identity{UserID: "op1", Role: model.RoleOperator, LocationID: "1"}
	operator2   = &auth.Identity{UserID: "op2", Role: model.RoleOperator, LocationID: "2"}
)

func newTestServices(t *testing.T) *Services {
	t.Helper()
	return New(testutil.TestMemoryStore(t), testutil.TestLoggerSilent())
}

func attendance(loc, topic string) model.Attendance {
	return model.Attendance{
		Record: model.Record{LocationID: loc},
		Date:   time.Date(2025, 5, 1, 19, 0, 0, 0, time.UTC),
		Topic:  topic,
	}
}

func TestRecords_LocationScoping(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	if _, err := svc.Attendance.Create(ctx, globalAdmin, attendance("1", "hose drill")); err != nil {
		t.Fatalf("Create loc 1: %v", err)
	}
	other, err := svc.Attendance.Create(ctx, globalAdmin, attendance("2", "ladder drill"))
	if err != nil {
		t.Fatalf("Create loc 2: %v", err)
	}

	list, err := svc.Attendance.List(ctx, operator1, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List returned %d records, want 1", len(list))
	}
	for _, a := range list {
		if a.LocationID != "1" {
			t.Errorf("operator of location 1 received record of location %q", a.LocationID)
		}
	}

	_, err = svc.Attendance.Update(ctx, operator1, other.ID, func(a *model.Attendance) error {
		a.Topic = "hijacked"
		return nil
	})
	if !errors.Is(err, auth.ErrAuthorization) {
		t.Errorf("Update of foreign record error = %v, want ErrAuthorization", err)
	}
	if _, err := svc.Attendance.Get(ctx, operator1, other.ID); !errors.Is(err, auth.ErrAuthorization) {
		t.Errorf("Get of foreign record error = %v, want ErrAuthorization", err)
	}
	if err := svc.Attendance.Delete(ctx, operator1, other.ID); !errors.Is(err, auth.ErrAuthorization) {
		t.Errorf("Delete of foreign record error = %v, want ErrAuthorization", err)
	}

	all, err := svc.Attendance.List(ctx, globalAdmin, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("global List = %d records, %v; want 2", len(all), err)
	}
	filtered, _ := svc.Attendance.List(ctx, globalAdmin, "2")
	if len(filtered) != 1 || filtered[0].LocationID != "2" {
		t.Errorf("List filtered by location 2 = %+v", filtered)
	}
}

func TestRecords_CreateStampsScope(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	v, err := svc.Vehicles.Create(ctx, operator1, model.Vehicle{Name: "HLF 20", CallSign: "Florian 1/46"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.LocationID != "1" {
		t.Errorf("LocationID = %q, want scoped actor's location", v.LocationID)
	}
	if v.ID == "" || v.CreatedAt.IsZero() {
		t.Errorf("Create did not assign id and timestamps: %+v", v)
	}

	_, err = svc.Vehicles.Create(ctx, operator1, model.Vehicle{Record: model.Record{LocationID: "2"}, Name: "DLK"})
	if !errors.Is(err, auth.ErrAuthorization) {
		t.Errorf("Create in foreign location error = %v", err)
	}

	// A client-chosen id is ignored.
	p, err := svc.Personnel.Create(ctx, operator1, model.Person{Record: model.Record{ID: "fixed"}, FirstName: "Anna", LastName: "Berg"})
	if err != nil {
		t.Fatalf("Create person: %v", err)
	}
	if p.ID == "fixed" {
		t.Error("client-supplied id was kept")
	}
}

func TestRecords_NoMoveAcrossLocations(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	m, err := svc.Missions.Create(ctx, operator1, model.Mission{Keyword: "B2", Address: "Main St 1", AlertedAt: time.Now()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.Missions.Update(ctx, operator1, m.ID, func(x *model.Mission) error {
		x.LocationID = "2"
		return nil
	})
	if !errors.Is(err, auth.ErrAuthorization) {
		t.Errorf("move by scoped actor error = %v, want ErrAuthorization", err)
	}

	moved, err := svc.Missions.Update(ctx, globalAdmin, m.ID, func(x *model.Mission) error {
		x.LocationID = "2"
		return nil
	})
	if err != nil || moved.LocationID != "2" {
		t.Errorf("move by global admin = %+v, %v", moved, err)
	}
}

func TestRecords_Unauthenticated(t *testing.T) {
	svc := newTestServices(t)
	if _, err := svc.Personnel.List(context.Background(), nil, ""); !errors.Is(err, auth.ErrAuthentication) {
		t.Errorf("List(nil actor) error = %v", err)
	}
}

func TestRecords_Validation(t *testing.T) {
	svc := newTestServices(t)
	_, err := svc.Personnel.Create(context.Background(), operator1, model.Person{FirstName: "<b></b>"})
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("Create invalid person error = %v, want ErrValidation", err)
	}
}

func TestLocations_Policy(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	if _, err := svc.Locations.Create(ctx, admin1, model.Location{Name: "Station 2"}); !errors.Is(err, auth.ErrAuthorization) {
		t.Errorf("location admin creating location error = %v", err)
	}
	loc, err := svc.Locations.Create(ctx, globalAdmin, model.Location{Name: "Station 1"})
	if err != nil {
		t.Fatalf("Create location: %v", err)
	}

	scoped := &auth.Identity{UserID: "la", Role: model.RoleLocationAdmin, LocationID: loc.ID}
	updated, err := svc.Locations.Update(ctx, scoped, loc.ID, func(l *model.Location) error {
		l.Email = "station1@example.org"
		return nil
	})
	if err != nil || updated.Email != "station1@example.org" {
		t.Errorf("own location update = %+v, %v", updated, err)
	}

	if _, err := svc.Locations.Update(ctx, admin1, loc.ID, func(*model.Location) error { return nil }); !errors.Is(err, auth.ErrAuthorization) {
		t.Errorf("foreign location update error = %v", err)
	}
	if err := svc.Locations.Delete(ctx, scoped, loc.ID); !errors.Is(err, auth.ErrAuthorization) {
		t.Errorf("location admin delete error = %v", err)
	}
	if err := svc.Locations.Delete(ctx, globalAdmin, loc.ID); err != nil {
		t.Errorf("global admin delete: %v", err)
	}
}

func TestSettings_UniqueKeyPerLocation(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	if _, err := svc.Settings.Create(ctx, operator1, model.Setting{Key: "report.footer", Value: "x"}); !errors.Is(err, auth.ErrAuthorization) {
		t.Errorf("operator writing settings error = %v", err)
	}
	if _, err := svc.Settings.Create(ctx, admin1, model.Setting{Key: "report.footer", Value: "a"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Settings.Create(ctx, admin1, model.Setting{Key: "report.footer", Value: "b"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("duplicate key error = %v, want ErrDuplicateKey", err)
	}
	if _, err := svc.Settings.Create(ctx, globalAdmin, model.Setting{Key: "report.footer", Value: "global"}); err != nil {
		t.Errorf("same key in global scope: %v", err)
	}
}

func TestRecords_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	svc := New(testutil.TestStore(t), testutil.TestLoggerSilent())

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.PhoneNumbers.Create(ctx, operator2, model.PhoneNumber{Name: fmt.Sprintf("Contact %d", i), Number: "+49 30 1234"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := svc.PhoneNumbers.List(ctx, operator2, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != n {
		t.Errorf("stored %d phone numbers, want %d", len(list), n)
	}
}

func TestResource_JSON(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	res, ok := svc.Resource("phone-numbers")
	if !ok {
		t.Fatal("phone-numbers resource missing")
	}
	if _, ok := svc.Resource("users"); ok {
		t.Error("users must not be served as a generic resource")
	}

	created, err := res.CreateJSON(ctx, operator1, []byte(`{"name":"Dispatch","number":"112","category":"emergency"}`))
	if err != nil {
		t.Fatalf("CreateJSON: %v", err)
	}
	pn := created.(*model.PhoneNumber)

	updated, err := res.UpdateJSON(ctx, operator1, pn.ID, []byte(`{"notes":"24/7"}`))
	if err != nil {
		t.Fatalf("UpdateJSON: %v", err)
	}
	got := updated.(*model.PhoneNumber)
	if got.Notes != "24/7" || got.Number != "112" || got.Name != "Dispatch" {
		t.Errorf("partial update lost fields: %+v", got)
	}

	if !got.CreatedAt.Equal(pn.CreatedAt) {
		t.Errorf("created_at changed by update: %v, want %v", got.CreatedAt, pn.CreatedAt)
	}

	forged, err := res.UpdateJSON(ctx, operator1, pn.ID, []byte(`{"created_at":"2001-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("UpdateJSON(created_at): %v", err)
	}
	if got := forged.(*model.PhoneNumber).CreatedAt; !got.Equal(pn.CreatedAt) {
		t.Errorf("client overwrote created_at: %v, want %v", got, pn.CreatedAt)
	}
	backdated, err := res.CreateJSON(ctx, operator1, []byte(`{"name":"Old","number":"113","category":"emergency","created_at":"2001-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("CreateJSON(created_at): %v", err)
	}
	if got := backdated.(*model.PhoneNumber).CreatedAt; got.Year() == 2001 {
		t.Errorf("client set created_at on create: %v", got)
	}

	if _, err := res.CreateJSON(ctx, operator1, []byte(`{`)); !errors.Is(err, model.ErrValidation) {
		t.Errorf("malformed body error = %v, want ErrValidation", err)
	}
	if _, err := res.UpdateJSON(ctx, operator1, pn.ID, []byte(`nope`)); !errors.Is(err, model.ErrValidation) {
		t.Errorf("malformed update error = %v, want ErrValidation", err)
	}
	if _, err := res.GetAny(ctx, operator1, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetAny(missing) error = %v", err)
	}
}
