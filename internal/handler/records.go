// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/firebook/internal/middleware"
	"github.com/olegiv/firebook/internal/service"
)

// resource resolves the {collection} URL segment. Unknown names get 404.
func (h *Handler) resource(w http.ResponseWriter, r *http.Request) (service.Resource, bool) {
	res, ok := h.services.Resource(chi.URLParam(r, "collection"))
	if !ok {
		middleware.WriteAPIError(w, http.StatusNotFound, "not_found", "Unknown collection", nil)
	}
	return res, ok
}

// ListRecords handles GET /api/{collection}. The location_id query narrows
// the list for global callers.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	items, err := res.ListAny(r.Context(), middleware.GetIdentity(r), r.URL.Query().Get("location_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, items)
}

// GetRecord handles GET /api/{collection}/{id}.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	item, err := res.GetAny(r.Context(), middleware.GetIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, item)
}

// CreateRecord handles POST /api/{collection}.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := res.CreateJSON(r.Context(), middleware.GetIdentity(r), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, item)
}

// UpdateRecord handles PATCH and PUT /api/{collection}/{id}. Fields absent
// from the body keep their stored values.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := res.UpdateJSON(r.Context(), middleware.GetIdentity(r), chi.URLParam(r, "id"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, item)
}

// DeleteRecord handles DELETE /api/{collection}/{id}.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	if err := res.Delete(r.Context(), middleware.GetIdentity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
