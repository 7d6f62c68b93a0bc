// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Person is a member of the personnel roster.
type Person struct {
	Record
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Rank           string   `json:"rank,omitempty"`
	Qualifications []string `json:"qualifications,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Email          string   `json:"email,omitempty"`
	Active         bool     `json:"active"`
	Notes          string   `json:"notes,omitempty"`
}

func (p *Person) Normalize() {
	cleanAll(&p.FirstName, &p.LastName, &p.Rank, &p.Phone, &p.Email, &p.Notes)
	p.Qualifications = cleanList(p.Qualifications)
}

func (p *Person) Validate() error {
	return firstErr(
		required("first_name", p.FirstName),
		required("last_name", p.LastName),
		maxLen("notes", p.Notes, 4000),
		validateEmail("email", p.Email),
	)
}

// FullName returns "First Last".
func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}
