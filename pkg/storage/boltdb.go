package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cuemby/clusterupgrade/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketReleases      = []byte("releases")
	bucketClusters      = []byte("clusters")
	bucketNodeGroups    = []byte("node_groups")
	bucketNetworkGroups = []byte("network_groups")
	bucketNodes         = []byte("nodes")
	bucketVIPs          = []byte("vips")
	bucketRelations     = []byte("relations")
	bucketTasks         = []byte("tasks")
)

// DBFileName is the name of the database file inside the data directory
const DBFileName = "clusterupgrade.db"

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the store in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, DBFileName)

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketReleases,
			bucketClusters,
			bucketNodeGroups,
			bucketNetworkGroups,
			bucketNodes,
			bucketVIPs,
			bucketRelations,
			bucketTasks,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func (s *BoltStore) put(bucket []byte, key string, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucket, key, v)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

func get[T any](db *bolt.DB, bucket []byte, kind, key string) (*T, error) {
	var v T
	err := db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", kind, key, ErrNotFound)
		}
		return json.Unmarshal(data, &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// list decodes every record of bucket accepted by keep. A nil keep accepts
// all records.
func list[T any](db *bolt.DB, bucket []byte, keep func(*T) bool) ([]*T, error) {
	var items []*T
	err := db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			if keep == nil || keep(&item) {
				items = append(items, &item)
			}
			return nil
		})
	})
	return items, err
}

// Release operations
func (s *BoltStore) CreateRelease(release *types.Release) error {
	return s.put(bucketReleases, release.ID, release)
}

func (s *BoltStore) GetRelease(id string) (*types.Release, error) {
	return get[types.Release](s.db, bucketReleases, "release", id)
}

func (s *BoltStore) ListReleases() ([]*types.Release, error) {
	return list[types.Release](s.db, bucketReleases, nil)
}

func (s *BoltStore) UpdateRelease(release *types.Release) error {
	return s.CreateRelease(release)
}

// Cluster operations
func (s *BoltStore) CreateCluster(cluster *types.Cluster) error {
	return s.put(bucketClusters, cluster.ID, cluster)
}

func (s *BoltStore) GetCluster(id string) (*types.Cluster, error) {
	return get[types.Cluster](s.db, bucketClusters, "cluster", id)
}

func (s *BoltStore) GetClusterByName(name string) (*types.Cluster, error) {
	clusters, err := list(s.db, bucketClusters, func(c *types.Cluster) bool {
		return c.Name == name
	})
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, fmt.Errorf("cluster %s: %w", name, ErrNotFound)
	}
	return clusters[0], nil
}

func (s *BoltStore) ListClusters() ([]*types.Cluster, error) {
	return list[types.Cluster](s.db, bucketClusters, nil)
}

func (s *BoltStore) UpdateCluster(cluster *types.Cluster) error {
	return s.CreateCluster(cluster)
}

func (s *BoltStore) DeleteCluster(id string) error {
	return s.delete(bucketClusters, id)
}

// Node group operations
func (s *BoltStore) CreateNodeGroup(group *types.NodeGroup) error {
	return s.put(bucketNodeGroups, group.ID, group)
}

func (s *BoltStore) GetNodeGroup(id string) (*types.NodeGroup, error) {
	return get[types.NodeGroup](s.db, bucketNodeGroups, "node group", id)
}

func (s *BoltStore) ListNodeGroupsByCluster(clusterID string) ([]*types.NodeGroup, error) {
	return list(s.db, bucketNodeGroups, func(g *types.NodeGroup) bool {
		return g.ClusterID == clusterID
	})
}

func (s *BoltStore) DeleteNodeGroup(id string) error {
	return s.delete(bucketNodeGroups, id)
}

// Network group operations
func (s *BoltStore) CreateNetworkGroup(group *types.NetworkGroup) error {
	return s.put(bucketNetworkGroups, group.ID, group)
}

func (s *BoltStore) GetNetworkGroup(id string) (*types.NetworkGroup, error) {
	return get[types.NetworkGroup](s.db, bucketNetworkGroups, "network group", id)
}

func (s *BoltStore) ListNetworkGroups() ([]*types.NetworkGroup, error) {
	return list[types.NetworkGroup](s.db, bucketNetworkGroups, nil)
}

func (s *BoltStore) ListNetworkGroupsByNodeGroup(groupID string) ([]*types.NetworkGroup, error) {
	return list(s.db, bucketNetworkGroups, func(g *types.NetworkGroup) bool {
		return g.GroupID == groupID
	})
}

func (s *BoltStore) UpdateNetworkGroup(group *types.NetworkGroup) error {
	return s.CreateNetworkGroup(group)
}

func (s *BoltStore) DeleteNetworkGroup(id string) error {
	return s.delete(bucketNetworkGroups, id)
}

// Node operations
func (s *BoltStore) CreateNode(node *types.Node) error {
	return s.put(bucketNodes, node.ID, node)
}

func (s *BoltStore) GetNode(id string) (*types.Node, error) {
	return get[types.Node](s.db, bucketNodes, "node", id)
}

func (s *BoltStore) ListNodes() ([]*types.Node, error) {
	return list[types.Node](s.db, bucketNodes, nil)
}

func (s *BoltStore) ListNodesByCluster(clusterID string) ([]*types.Node, error) {
	return list(s.db, bucketNodes, func(n *types.Node) bool {
		return n.ClusterID == clusterID
	})
}

func (s *BoltStore) UpdateNode(node *types.Node) error {
	return s.CreateNode(node) // Same as create (upsert)
}

func (s *BoltStore) DeleteNode(id string) error {
	return s.delete(bucketNodes, id)
}

// VIP operations
func vipKey(networkGroupID, name string) string {
	return networkGroupID + "/" + name
}

func (s *BoltStore) PutVIP(vip *types.VIP) error {
	return s.put(bucketVIPs, vipKey(vip.NetworkGroupID, vip.Name), vip)
}

func (s *BoltStore) GetVIP(networkGroupID, name string) (*types.VIP, error) {
	return get[types.VIP](s.db, bucketVIPs, "vip", vipKey(networkGroupID, name))
}

func (s *BoltStore) ListVIPsByNetworkGroup(networkGroupID string) ([]*types.VIP, error) {
	return list(s.db, bucketVIPs, func(v *types.VIP) bool {
		return v.NetworkGroupID == networkGroupID
	})
}

func (s *BoltStore) DeleteVIP(networkGroupID, name string) error {
	return s.delete(bucketVIPs, vipKey(networkGroupID, name))
}

// Relation operations

// CreateRelation stores a relation keyed by the orig cluster. The check and
// the write happen in one transaction, so two concurrent clones of the same
// cluster cannot both succeed.
func (s *BoltStore) CreateRelation(relation *types.UpgradeRelation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := findRelation(tx.Bucket(bucketRelations), relation.OrigClusterID)
		switch {
		case err == nil:
			return fmt.Errorf("cluster %s: %w", relation.OrigClusterID, ErrDuplicateRelation)
		case !errors.Is(err, ErrNotFound):
			return err
		}
		return put(tx, bucketRelations, relation.OrigClusterID, relation)
	})
}

// GetRelation returns the relation the cluster takes part in, as orig or seed
func (s *BoltStore) GetRelation(clusterID string) (*types.UpgradeRelation, error) {
	var relation *types.UpgradeRelation
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		relation, err = findRelation(tx.Bucket(bucketRelations), clusterID)
		return err
	})
	return relation, err
}

func (s *BoltStore) ListRelations() ([]*types.UpgradeRelation, error) {
	return list[types.UpgradeRelation](s.db, bucketRelations, nil)
}

// DeleteRelation removes the relation the cluster takes part in, if any
func (s *BoltStore) DeleteRelation(clusterID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRelations)
		relation, err := findRelation(b, clusterID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return b.Delete([]byte(relation.OrigClusterID))
	})
}

func findRelation(b *bolt.Bucket, clusterID string) (*types.UpgradeRelation, error) {
	if data := b.Get([]byte(clusterID)); data != nil {
		var relation types.UpgradeRelation
		if err := json.Unmarshal(data, &relation); err != nil {
			return nil, err
		}
		return &relation, nil
	}

	var found *types.UpgradeRelation
	err := b.ForEach(func(k, v []byte) error {
		var relation types.UpgradeRelation
		if err := json.Unmarshal(v, &relation); err != nil {
			return err
		}
		if relation.SeedClusterID == clusterID {
			found = &relation
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("relation for cluster %s: %w", clusterID, ErrNotFound)
	}
	return found, nil
}

// Task operations
func (s *BoltStore) CreateTask(task *types.Task) error {
	return s.put(bucketTasks, task.ID, task)
}

func (s *BoltStore) GetTask(id string) (*types.Task, error) {
	return get[types.Task](s.db, bucketTasks, "task", id)
}

func (s *BoltStore) ListTasksByCluster(clusterID string) ([]*types.Task, error) {
	return list(s.db, bucketTasks, func(t *types.Task) bool {
		return t.ClusterID == clusterID
	})
}

func (s *BoltStore) UpdateTask(task *types.Task) error {
	return s.CreateTask(task)
}
