package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ps-vitor/phone-prices/pkg/logger"
)

// NewRouter mounts every API route. metrics may be nil.
func NewRouter(api *APIHandler, sched *SchedulerHandler, metrics http.Handler, log *logger.Logger) *mux.Router {
	r := mux.NewRouter()
	api.RegisterRoutes(r)
	if sched != nil {
		sched.RegisterRoutes(r)
	}
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	if log != nil {
		r.Use(accessLog(log))
	}
	return r
}

func accessLog(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debugf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
		})
	}
}
