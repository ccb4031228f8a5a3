package upgrade

import (
	"fmt"
	"net/http"

	"github.com/cuemby/clusterupgrade/pkg/storage"
)

// DuplicateRelationError is returned when a cluster that already takes part
// in an upgrade relation is cloned again
type DuplicateRelationError struct {
	OrigClusterID string
}

func (e *DuplicateRelationError) Error() string {
	return fmt.Sprintf("cluster %s is already involved in an upgrade", e.OrigClusterID)
}

func (e *DuplicateRelationError) Unwrap() error {
	return storage.ErrDuplicateRelation
}

// UnmatchedNetworkGroupError is returned when a network group of the orig
// cluster has no counterpart with the same name and node group name in the
// seed cluster
type UnmatchedNetworkGroupError struct {
	NetworkGroupID string
	Name           string
	NodeGroup      string
}

func (e *UnmatchedNetworkGroupError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("network group %s has no counterpart in the seed cluster", e.NetworkGroupID)
	}
	return fmt.Sprintf("network group %s (%s of node group %q) has no counterpart in the seed cluster",
		e.NetworkGroupID, e.Name, e.NodeGroup)
}

// ValidationError rejects an upgrade request. Status is the HTTP status the
// rejection maps to.
type ValidationError struct {
	Message string
	Status  int
}

func (e *ValidationError) Error() string {
	return e.Message
}

func badRequest(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

func notFound(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), Status: http.StatusNotFound}
}

func conflict(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), Status: http.StatusConflict}
}
