package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/clusterupgrade/pkg/client"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a manifest file",
	Long: `Create releases, clusters and nodes from a YAML manifest.

A manifest holds one or more documents separated by ---. Objects that
already exist (by name) are skipped.

Examples:
  # Register a release and a cluster using it
  clusterupgrade apply -f environment.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// Resource is a single manifest document
type Resource struct {
	APIVersion string                 `yaml:"apiVersion"`
	Kind       string                 `yaml:"kind"`
	Metadata   ResourceMetadata       `yaml:"metadata"`
	Spec       map[string]interface{} `yaml:"spec"`
}

// ResourceMetadata identifies a manifest document
type ResourceMetadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// decodeResources reads every document of a manifest
func decodeResources(r io.Reader) ([]Resource, error) {
	var resources []Resource
	dec := yaml.NewDecoder(r)
	for {
		var resource Resource
		err := dec.Decode(&resource)
		if errors.Is(err, io.EOF) {
			return resources, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if resource.Kind == "" {
			continue
		}
		if resource.Metadata.Name == "" {
			return nil, fmt.Errorf("%s without metadata.name", resource.Kind)
		}
		resources = append(resources, resource)
	}
}

// decodeSpec converts a manifest spec into an API object through its json
// field names
func decodeSpec(spec map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	resources, err := decodeResources(f)
	if err != nil {
		return err
	}

	a := &applier{client: newClient(cmd), out: cmd.OutOrStdout()}
	for i := range resources {
		if err := a.apply(cmd.Context(), &resources[i]); err != nil {
			return err
		}
	}
	return nil
}

type applier struct {
	client *client.Client
	out    io.Writer
}

func (a *applier) apply(ctx context.Context, resource *Resource) error {
	switch resource.Kind {
	case "Release":
		return a.applyRelease(ctx, resource)
	case "Cluster":
		return a.applyCluster(ctx, resource)
	case "Node":
		return a.applyNode(ctx, resource)
	default:
		return fmt.Errorf("unsupported resource kind: %s", resource.Kind)
	}
}

func (a *applier) applyRelease(ctx context.Context, resource *Resource) error {
	name := resource.Metadata.Name

	existing, err := a.findRelease(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		fmt.Fprintf(a.out, "Release already exists: %s (skipping)\n", name)
		return nil
	}

	var release types.Release
	if err := decodeSpec(resource.Spec, &release); err != nil {
		return fmt.Errorf("invalid release %s: %w", name, err)
	}
	release.Name = name

	created, err := a.client.CreateRelease(ctx, &release)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Release created: %s (ID: %s)\n", name, created.ID)
	return nil
}

func (a *applier) applyCluster(ctx context.Context, resource *Resource) error {
	name := resource.Metadata.Name

	existing, err := a.findCluster(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		fmt.Fprintf(a.out, "Cluster already exists: %s (skipping)\n", name)
		return nil
	}

	release, err := a.findRelease(ctx, getString(resource.Spec, "release", ""))
	if err != nil {
		return err
	}
	if release == nil {
		return fmt.Errorf("cluster %s: release %q not found", name, getString(resource.Spec, "release", ""))
	}

	cluster, err := a.client.CreateCluster(ctx, types.ClusterCreateData{
		Name:                name,
		ReleaseID:           release.ID,
		Mode:                getString(resource.Spec, "mode", ""),
		NetProvider:         getString(resource.Spec, "net_provider", ""),
		NetSegmentationType: getString(resource.Spec, "net_segment_type", ""),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Cluster created: %s (ID: %s)\n", name, cluster.ID)

	for _, group := range getStrings(resource.Spec, "node_groups") {
		if _, err := a.client.CreateNodeGroup(ctx, cluster.ID, group); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ Node group created: %s/%s\n", name, group)
	}
	return nil
}

func (a *applier) applyNode(ctx context.Context, resource *Resource) error {
	hostname := resource.Metadata.Name

	var node types.Node
	if err := decodeSpec(resource.Spec, &node); err != nil {
		return fmt.Errorf("invalid node %s: %w", hostname, err)
	}
	node.Hostname = hostname
	node.ClusterID = ""
	node.GroupID = ""

	if clusterName := getString(resource.Spec, "cluster", ""); clusterName != "" {
		cluster, err := a.findCluster(ctx, clusterName)
		if err != nil {
			return err
		}
		if cluster == nil {
			return fmt.Errorf("node %s: cluster %q not found", hostname, clusterName)
		}
		node.ClusterID = cluster.ID

		if groupName := getString(resource.Spec, "node_group", ""); groupName != "" {
			groups, err := a.client.ListNodeGroups(ctx, cluster.ID)
			if err != nil {
				return err
			}
			for _, g := range groups {
				if g.Name == groupName {
					node.GroupID = g.ID
				}
			}
			if node.GroupID == "" {
				return fmt.Errorf("node %s: node group %q not found in cluster %s", hostname, groupName, clusterName)
			}
		}
	}

	created, err := a.client.CreateNode(ctx, &node)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Node created: %s (ID: %s)\n", hostname, created.ID)
	return nil
}

// findRelease looks a release up by name or id
func (a *applier) findRelease(ctx context.Context, ref string) (*types.Release, error) {
	releases, err := a.client.ListReleases(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range releases {
		if r.Name == ref || r.ID == ref {
			return r, nil
		}
	}
	return nil, nil
}

// findCluster looks a cluster up by name or id
func (a *applier) findCluster(ctx context.Context, ref string) (*types.Cluster, error) {
	clusters, err := a.client.ListClusters(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range clusters {
		if c.Name == ref || c.ID == ref {
			return c, nil
		}
	}
	return nil, nil
}

// Helper functions
func getString(m map[string]interface{}, key, defaultValue string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return defaultValue
}

func getStrings(m map[string]interface{}, key string) []string {
	list, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}
