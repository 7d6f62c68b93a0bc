// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Mission is an operation report.
type Mission struct {
	Record
	Number       string     `json:"number,omitempty"`
	Keyword      string     `json:"keyword"`
	Address      string     `json:"address,omitempty"`
	AlertedAt    time.Time  `json:"alerted_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Leader       string     `json:"leader,omitempty"`
	VehicleIDs   []string   `json:"vehicle_ids,omitempty"`
	PersonnelIDs []string   `json:"personnel_ids,omitempty"`
	Report       string     `json:"report,omitempty"`
}

func (m *Mission) Normalize() {
	cleanAll(&m.Number, &m.Keyword, &m.Address, &m.Leader, &m.Report)
	m.VehicleIDs = cleanList(m.VehicleIDs)
	m.PersonnelIDs = cleanList(m.PersonnelIDs)
}

func (m *Mission) Validate() error {
	if m.AlertedAt.IsZero() {
		return invalid("alerted_at", "is required")
	}
	if m.EndedAt != nil && m.EndedAt.Before(m.AlertedAt) {
		return invalid("ended_at", "is before alerted_at")
	}
	return firstErr(
		required("keyword", m.Keyword),
		maxLen("report", m.Report, 20000),
	)
}
