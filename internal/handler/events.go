// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strconv"

	"github.com/olegiv/firebook/internal/middleware"
	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/service"
)

// ListEvents handles GET /api/events?level=&category=&limit=.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := service.EventFilter{
		Level:    q.Get("level"),
		Category: q.Get("category"),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, r, &model.ValidationError{Field: "limit", Reason: "must be a non-negative integer"})
			return
		}
		f.Limit = n
	}

	events, err := h.services.Events.List(r.Context(), middleware.GetIdentity(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, events)
}
