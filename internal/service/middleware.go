package service

import (
	"context"
	"net/http"
	"time"

	"github.com/arashthr/lodekeep/internal/logging"
	"github.com/arashthr/lodekeep/internal/logging/loggercontext"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/go-chi/chi/v5/middleware"
)

type ownerKey struct{}

// OwnerHeader identifies the caller. Authentication proper happens at the
// gateway in front of this service; by the time a request gets here the
// header is trusted.
const OwnerHeader = "X-Owner-Id"

func ownerFrom(r *http.Request) types.OwnerId {
	owner, _ := r.Context().Value(ownerKey{}).(types.OwnerId)
	return owner
}

// RequireOwner rejects requests without an owner header and stores the
// owner id on the context for handlers.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			writeErrorResponse(w, http.StatusUnauthorized, ErrorResponse{
				Code:    "MISSING_OWNER",
				Message: "The " + OwnerHeader + " header is required",
			})
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, types.OwnerId(owner))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger attaches a request-scoped logger to the context and logs
// each request on completion.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := logging.Logger.With("requestId", middleware.GetReqID(r.Context()))
		ctx := loggercontext.WithLogger(r.Context(), logger)

		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.Status(),
			"duration", time.Since(start))
	})
}
