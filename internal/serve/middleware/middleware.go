// Package middleware provides the chi middleware chain the coordinator
// wraps every route with: panic recovery, request logging, CORS, and
// request-duration metrics.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/agentmarket/coordinator/internal/logging"
	"github.com/agentmarket/coordinator/internal/monitor"
	"github.com/agentmarket/coordinator/internal/serve/httperror"
	"github.com/agentmarket/coordinator/internal/utils"
)

// RecoverHandler recovers from a panic in a downstream handler, logs it, and
// renders a 500 instead of crashing the process.
func RecoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", r)
			}
			if errors.Is(err, http.ErrAbortHandler) {
				panic(err)
			}
			httperror.InternalError(req.Context(), "", err).Render(rw)
		}()

		next.ServeHTTP(rw, req)
	})
}

// MetricsRequestHandler records request duration and status per route and
// method.
func MetricsRequestHandler(monitorService monitor.MonitorServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			mw := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(mw, req)

			labels := monitor.HttpRequestLabels{
				Status: fmt.Sprintf("%d", mw.Status()),
				Route:  utils.GetRoutePattern(req),
				Method: req.Method,
			}
			if err := monitorService.MonitorHttpRequestDuration(time.Since(started), labels); err != nil {
				logging.Ctx(req.Context()).Errorf("monitoring request duration: %s", err)
			}
		})
	}
}

// CorsMiddleware applies the configured allowed-origins policy.
func CorsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		c := cors.New(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedHeaders: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		})
		return c.Handler(next)
	}
}

// LoggingMiddleware attaches a request-scoped logger carrying the method,
// path, and chi request id, then logs the completed request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mw := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
		started := time.Now()

		entry := logging.Ctx(req.Context()).Entry.
			WithField("method", req.Method).
			WithField("path", req.URL.String()).
			WithField("request_id", middleware.GetReqID(req.Context()))
		ctx := logging.WithContext(req.Context(), &logging.Entry{Entry: entry})

		next.ServeHTTP(mw, req.WithContext(ctx))

		logging.Ctx(ctx).Infof("request completed status=%d duration=%s", mw.Status(), time.Since(started))
	})
}
