// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "strings"

// PhoneNumber is an entry in the station phone directory.
type PhoneNumber struct {
	Record
	Name     string `json:"name"`
	Number   string `json:"number"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

func (p *PhoneNumber) Normalize() {
	cleanAll(&p.Name, &p.Number, &p.Category, &p.Notes)
}

func (p *PhoneNumber) Validate() error {
	if err := firstErr(required("name", p.Name), required("number", p.Number)); err != nil {
		return err
	}
	if strings.Trim(p.Number, "+0123456789 /-()") != "" {
		return invalid("number", "contains invalid characters")
	}
	return nil
}
