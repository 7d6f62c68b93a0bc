// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "regexp"

var settingKey = regexp.MustCompile(`^[a-z][a-z0-9_.]*$`)

// Setting is a key/value pair. Location-scoped settings override global ones.
type Setting struct {
	Record
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Setting) Normalize() {
	cleanAll(&s.Key, &s.Value)
}

func (s *Setting) Validate() error {
	if !settingKey.MatchString(s.Key) {
		return invalid("key", "must be a lowercase identifier")
	}
	return maxLen("value", s.Value, 4000)
}
