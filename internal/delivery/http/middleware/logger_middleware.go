package middleware

import (
	"context"
	"net/http"
	"time"

	"clinic-booking/internal/domain/entity"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestInfo is filled in by inner middleware so the access log can see
// who made the request.
type requestInfo struct {
	caller *entity.CallerIdentity
}

// RequestLogger logs one structured line per request after it completes.
func RequestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			info := &requestInfo{}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

			fields := logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
				"ip":          clientIP(r),
			}
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					fields["route"] = tpl
				}
			}
			if info.caller != nil {
				fields["user_id"] = info.caller.UserID
				fields["role"] = info.caller.Role
			}

			entry := log.WithFields(fields)
			switch {
			case rec.status >= http.StatusInternalServerError:
				entry.Error("request completed")
			case rec.status >= http.StatusBadRequest:
				entry.Warn("request completed")
			default:
				entry.Info("request completed")
			}
		})
	}
}
