// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Vehicle is an apparatus on the vehicle roster.
type Vehicle struct {
	Record
	Name     string `json:"name"`
	CallSign string `json:"call_sign,omitempty"`
	Type     string `json:"type,omitempty"`
	Plate    string `json:"plate,omitempty"`
	Seats    int    `json:"seats,omitempty"`
	InUse    bool   `json:"in_use"`
	Notes    string `json:"notes,omitempty"`
}

func (v *Vehicle) Normalize() {
	cleanAll(&v.Name, &v.CallSign, &v.Type, &v.Plate, &v.Notes)
}

func (v *Vehicle) Validate() error {
	if v.Seats < 0 {
		return invalid("seats", "must not be negative")
	}
	return firstErr(
		required("name", v.Name),
		maxLen("notes", v.Notes, 4000),
	)
}
