package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// withChiParams injects chi URL params (alternating key, value) into the request context.
func withChiParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
