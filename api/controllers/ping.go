package controllers

import (
	"net/http"

	"github.com/promptlyprinted/promptly-backend/api/middleware"
	"github.com/promptlyprinted/promptly-backend/api/responses"
)

func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"scope":    "admin",
			"status":   "ok",
			"staff_id": middleware.StaffIDFromContext(r.Context()),
			"role":     string(middleware.RoleFromContext(r.Context())),
		})
	}
}
