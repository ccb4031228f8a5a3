package api

import (
	"fmt"
	"net/http"

	"github.com/cuemby/clusterupgrade/pkg/metrics"
)

// checkComponents probes storage and the transformation registries and
// reports the result to the health registry
func (s *Server) checkComponents() {
	// Check 1: Storage
	if s.objects == nil {
		metrics.RegisterComponent(metrics.ComponentStorage, false, "not initialized")
	} else if _, err := s.objects.ListClusters(); err != nil {
		metrics.RegisterComponent(metrics.ComponentStorage, false, fmt.Sprintf("error: %v", err))
	} else {
		metrics.RegisterComponent(metrics.ComponentStorage, true, "")
	}

	// Check 2: Transformations
	if s.helper == nil {
		metrics.RegisterComponent(metrics.ComponentTransformations, false, "not initialized")
	} else if _, err := s.helper.Transformations(); err != nil {
		metrics.RegisterComponent(metrics.ComponentTransformations, false, err.Error())
	} else {
		metrics.RegisterComponent(metrics.ComponentTransformations, true, "")
	}
}

// healthHandler implements the /health endpoint
func (s *Server) healthHandler() http.HandlerFunc {
	health := metrics.HealthHandler()
	return func(w http.ResponseWriter, r *http.Request) {
		s.checkComponents()
		health(w, r)
	}
}

// readyHandler implements the /ready endpoint. The service is ready once
// storage and every transformation registry are usable and the listener is
// up.
func (s *Server) readyHandler() http.HandlerFunc {
	ready := metrics.ReadyHandler()
	return func(w http.ResponseWriter, r *http.Request) {
		s.checkComponents()
		ready(w, r)
	}
}
