package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cuemby/clusterupgrade/pkg/events"
	"github.com/cuemby/clusterupgrade/pkg/storage"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/cuemby/clusterupgrade/pkg/upgrade"
	"github.com/gorilla/mux"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string `json:"message"`
}

// NodeGroupRequest creates a node group in a cluster
type NodeGroupRequest struct {
	Name string `json:"name"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, format string, args ...interface{}) {
	writeJSON(w, code, ErrorResponse{Message: fmt.Sprintf(format, args...)})
}

// writeError maps err to a status code and writes it as an ErrorResponse
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *upgrade.ValidationError
		duplicate  *upgrade.DuplicateRelationError
		unmatched  *upgrade.UnmatchedNetworkGroupError
	)

	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		code = validation.Status
	case errors.As(err, &duplicate):
		code = http.StatusBadRequest
	case errors.As(err, &unmatched):
		code = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		code = http.StatusNotFound
	}

	if code >= http.StatusInternalServerError {
		logger := s.logger.With().Str("route", routeName(r)).Logger()
		logger.Error().Err(err).Msg("Request handler failed")
	}
	writeMessage(w, code, "%s", err.Error())
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &upgrade.ValidationError{
			Message: fmt.Sprintf("invalid request body: %v", err),
			Status:  http.StatusBadRequest,
		}
	}
	return nil
}

func (s *Server) clusterFromPath(r *http.Request) (*types.Cluster, error) {
	id := mux.Vars(r)["cluster_id"]
	cluster, err := s.objects.GetCluster(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &upgrade.ValidationError{
			Message: fmt.Sprintf("Cluster with id %s not found", id),
			Status:  http.StatusNotFound,
		}
	}
	return cluster, err
}

// Upgrade

func (s *Server) cloneHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orig, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req upgrade.CloneRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.helper.ValidateClone(orig, req); err != nil {
			s.writeError(w, r, err)
			return
		}

		seed, err := s.helper.CloneCluster(orig, req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, seed)
	}
}

func (s *Server) assignHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seed, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req upgrade.AssignRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		task, err := s.helper.ReassignNode(r.Context(), seed, req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if task != nil {
			writeJSON(w, http.StatusAccepted, task)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

func (s *Server) copyVIPsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seed, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		relation, err := s.helper.ValidateCopyVIPs(seed)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		orig, err := s.objects.GetCluster(relation.OrigClusterID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		if err := s.helper.CopyVIPs(orig, seed); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

func (s *Server) cloneReleaseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orig, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		release, err := s.helper.CreateUpgradeRelease(orig, mux.Vars(r)["release_id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, release)
	}
}

func (s *Server) deploymentInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cluster, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		info, err := s.helper.DeploymentInfo(cluster.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// Releases

func (s *Server) createReleaseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var release types.Release
		if err := decodeBody(r, &release); err != nil {
			s.writeError(w, r, err)
			return
		}
		if release.Name == "" {
			writeMessage(w, http.StatusBadRequest, "'name' is a required property")
			return
		}

		if err := s.objects.CreateRelease(&release); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, release)
	}
}

func (s *Server) listReleasesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		releases, err := s.objects.ListReleases()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, releases)
	}
}

func (s *Server) getReleaseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		release, err := s.objects.GetRelease(mux.Vars(r)["release_id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, release)
	}
}

// Clusters

func (s *Server) createClusterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data types.ClusterCreateData
		if err := decodeBody(r, &data); err != nil {
			s.writeError(w, r, err)
			return
		}
		if data.Name == "" {
			writeMessage(w, http.StatusBadRequest, "'name' is a required property")
			return
		}
		if _, err := s.objects.GetClusterByName(data.Name); err == nil {
			writeMessage(w, http.StatusConflict, "Environment with this name '%s' already exists.", data.Name)
			return
		}

		cluster, err := s.objects.CreateCluster(data)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, cluster)
	}
}

func (s *Server) listClustersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clusters, err := s.objects.ListClusters()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, clusters)
	}
}

func (s *Server) getClusterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cluster, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cluster)
	}
}

func (s *Server) deleteClusterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cluster, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.objects.DeleteCluster(cluster.ID); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) createNodeGroupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cluster, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req NodeGroupRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Name == "" {
			writeMessage(w, http.StatusBadRequest, "'name' is a required property")
			return
		}

		group, err := s.objects.CreateNodeGroup(cluster.ID, req.Name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, group)
	}
}

func (s *Server) listNodeGroupsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cluster, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		groups, err := s.objects.ListNodeGroups(cluster.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

func (s *Server) networkConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cluster, err := s.clusterFromPath(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		config, err := s.objects.NetworkManager(cluster).SerializeNetworkConfig()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, config)
	}
}

// Nodes

func (s *Server) createNodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var node types.Node
		if err := decodeBody(r, &node); err != nil {
			s.writeError(w, r, err)
			return
		}

		if err := s.objects.CreateNode(&node); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, node)
	}
}

func (s *Server) listNodesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			nodes []*types.Node
			err   error
		)
		if clusterID := r.URL.Query().Get("cluster_id"); clusterID != "" {
			nodes, err = s.objects.ListNodesByCluster(clusterID)
		} else {
			nodes, err = s.objects.ListNodes()
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nodes)
	}
}

func (s *Server) getNodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		node, err := s.objects.GetNode(mux.Vars(r)["node_id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, node)
	}
}

// Tasks

func (s *Server) getTaskHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := s.objects.GetTask(mux.Vars(r)["task_id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

// listEventsHandler returns the recent events, optionally narrowed by the
// type and cluster_id query parameters
func (s *Server) listEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		writeJSON(w, http.StatusOK, s.objects.Events(events.Filter{
			Type:      events.EventType(query.Get("type")),
			ClusterID: query.Get("cluster_id"),
		}))
	}
}
