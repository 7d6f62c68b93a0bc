// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"fmt"
	"log/slog"

	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/store"
)

// ErrDuplicateKey is returned when a setting key already exists in the same
// location.
var ErrDuplicateKey = fmt.Errorf("%w: key: already exists", model.ErrValidation)

// Services bundles the collection modules.
type Services struct {
	Locations    *Records[model.Location, *model.Location]
	Personnel    *Records[model.Person, *model.Person]
	Vehicles     *Records[model.Vehicle, *model.Vehicle]
	Attendance   *Records[model.Attendance, *model.Attendance]
	Missions     *Records[model.Mission, *model.Mission]
	PhoneNumbers *Records[model.PhoneNumber, *model.PhoneNumber]
	Settings     *Records[model.Setting, *model.Setting]
	Events       *EventService

	resources map[string]Resource
}

// New wires every collection module onto s.
func New(s *store.Store, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	adminWrites := Policy{Create: model.RoleLocationAdmin, Write: model.RoleLocationAdmin, Delete: model.RoleLocationAdmin}

	svc := &Services{
		Locations: NewRecords[model.Location](s, store.Locations,
			Policy{Create: model.RoleGlobalAdmin, Write: model.RoleLocationAdmin, Delete: model.RoleGlobalAdmin}, logger),
		Personnel:    NewRecords[model.Person](s, store.Personnel, OperatorPolicy, logger),
		Vehicles:     NewRecords[model.Vehicle](s, store.Vehicles, OperatorPolicy, logger),
		Attendance:   NewRecords[model.Attendance](s, store.Attendance, OperatorPolicy, logger),
		Missions:     NewRecords[model.Mission](s, store.Missions, OperatorPolicy, logger),
		PhoneNumbers: NewRecords[model.PhoneNumber](s, store.PhoneNumbers, OperatorPolicy, logger),
		Settings:     NewRecords[model.Setting](s, store.Settings, adminWrites, logger, uniqueSettingKey),
		Events:       NewEventService(s),
	}

	svc.resources = map[string]Resource{
		"locations":     svc.Locations,
		"personnel":     svc.Personnel,
		"vehicles":      svc.Vehicles,
		"attendance":    svc.Attendance,
		"missions":      svc.Missions,
		"phone-numbers": svc.PhoneNumbers,
		"settings":      svc.Settings,
	}
	return svc
}

// Resource returns the collection module served under an API path segment.
func (s *Services) Resource(name string) (Resource, bool) {
	r, ok := s.resources[name]
	return r, ok
}

// uniqueSettingKey rejects a key that another setting of the same location
// already uses.
func uniqueSettingKey(candidate *model.Setting, docs []model.Setting) error {
	for i := range docs {
		d := &docs[i]
		if d.ID != candidate.ID && d.Key == candidate.Key && d.LocationID == candidate.LocationID {
			return ErrDuplicateKey
		}
	}
	return nil
}
