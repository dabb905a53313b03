// Package healthz provides the auxiliary HTTP surface every GLADyS
// service binary exposes alongside its gRPC port: /healthz, /readyz and
// /metrics. The status/checks response shape is grounded on the
// teacher's healthHandler (pkg/api/handler_health.go) — "only this
// service's own components are checked, external dependencies are
// excluded so an orchestrator doesn't restart a healthy process over a
// flaky downstream" — ported from the teacher's Echo handler to gin,
// the HTTP framework the rest of this module's ambient stack uses.
package healthz

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Check is one component's health contribution.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc reports a component's health; returning an error marks the
// component (and, unless Soft, the aggregate) unhealthy.
type CheckFunc struct {
	Name string
	Soft bool // Soft failures degrade rather than fail the aggregate status
	Run  func() error
}

// Response is the /healthz and /readyz body shape.
type Response struct {
	Status string           `json:"status"`
	Checks map[string]Check `json:"checks,omitempty"`
}

// Server serves the health/readiness/metrics endpoints on their own
// listener, separate from the gRPC port.
type Server struct {
	engine       *gin.Engine
	checks       []CheckFunc
	readyChecks  []CheckFunc
	metricsPath  string
	metricsFunc  gin.HandlerFunc
}

// New builds the health surface. livenessChecks feed /healthz (should
// only fail if the process itself is broken); readinessChecks feed
// /readyz (may fail transiently while a dependency warms up).
func New(livenessChecks, readinessChecks []CheckFunc, metricsHandler gin.HandlerFunc) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: gin.New(), checks: livenessChecks, readyChecks: readinessChecks, metricsFunc: metricsHandler}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/healthz", s.handle(s.checks))
	s.engine.GET("/readyz", s.handle(s.readyChecks))
	if metricsHandler != nil {
		s.engine.GET("/metrics", metricsHandler)
	}
	return s
}

func (s *Server) handle(checks []CheckFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := make(map[string]Check, len(checks))
		status := StatusHealthy
		for _, chk := range checks {
			if err := chk.Run(); err != nil {
				if chk.Soft {
					if status == StatusHealthy {
						status = StatusDegraded
					}
					result[chk.Name] = Check{Status: StatusDegraded, Message: err.Error()}
				} else {
					status = StatusUnhealthy
					result[chk.Name] = Check{Status: StatusUnhealthy, Message: err.Error()}
				}
				continue
			}
			result[chk.Name] = Check{Status: StatusHealthy}
		}

		httpStatus := http.StatusOK
		if status == StatusUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, Response{Status: status, Checks: result})
	}
}

// Run starts the health listener; it returns when ctx's http.Server is
// shut down or ListenAndServe fails.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// Handler exposes the underlying gin engine, for callers that want to
// mount the health surface on a shared HTTP server instead of a
// dedicated listener.
func (s *Server) Handler() http.Handler { return s.engine }
