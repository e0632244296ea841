package handlers

import "net/http"

// Healthz is a liveness probe; it carries no dependency checks because
// nothing else in this package needs one yet.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
