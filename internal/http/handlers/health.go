package handlers

import (
	"net/http"
)

// Health reports liveness plus whether optional metadata persistence is
// wired, so deployments without DATABASE_URL are visibly degraded rather
// than indistinguishable from fully configured ones.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	if a.PostRepo == nil {
		database = "disabled"
	}
	a.json(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": database,
	})
}
