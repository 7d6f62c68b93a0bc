// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Attendance kinds.
const (
	AttendanceDrill   = "drill"
	AttendanceMeeting = "meeting"
	AttendanceCourse  = "course"
	AttendanceOther   = "other"
)

// Attendance records who took part in a drill, meeting or course.
// PersonnelIDs reference the personnel collection; the reference is not
// enforced across collections.
type Attendance struct {
	Record
	Date         time.Time `json:"date"`
	Kind         string    `json:"kind"`
	Topic        string    `json:"topic"`
	Leader       string    `json:"leader,omitempty"`
	Minutes      int       `json:"minutes,omitempty"`
	PersonnelIDs []string  `json:"personnel_ids"`
	Notes        string    `json:"notes,omitempty"`
}

func (a *Attendance) Normalize() {
	cleanAll(&a.Kind, &a.Topic, &a.Leader, &a.Notes)
	if a.Kind == "" {
		a.Kind = AttendanceDrill
	}
	a.PersonnelIDs = cleanList(a.PersonnelIDs)
	if a.PersonnelIDs == nil {
		a.PersonnelIDs = []string{}
	}
}

func (a *Attendance) Validate() error {
	if a.Date.IsZero() {
		return invalid("date", "is required")
	}
	switch a.Kind {
	case AttendanceDrill, AttendanceMeeting, AttendanceCourse, AttendanceOther:
	default:
		return invalid("kind", "is unknown")
	}
	if a.Minutes < 0 {
		return invalid("minutes", "must not be negative")
	}
	return firstErr(
		required("topic", a.Topic),
		maxLen("notes", a.Notes, 4000),
	)
}
