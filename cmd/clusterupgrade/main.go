package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clusterupgrade",
	Short: "Cluster upgrade service",
	Long: `clusterupgrade upgrades deployed clusters to a newer release.

An orig cluster is cloned into a seed cluster on the new release, which
inherits its attributes, node groups and network settings. Nodes and VIPs
are then moved over from the orig cluster one by one.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"clusterupgrade version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("server", "http://127.0.0.1:8090", "Upgrade API address")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "API request timeout")
	rootCmd.PersistentFlags().StringP("output", "o", "yaml", "Output format: yaml or json")
}

// newClient builds an API client from the persistent flags
func newClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg := client.DefaultConfig(server)
	cfg.Timeout = timeout
	return client.NewClient(cfg)
}

// printResult writes v to the command output in the selected format
func printResult(cmd *cobra.Command, v interface{}) error {
	format, _ := cmd.Flags().GetString("output")
	return writeResult(cmd.OutOrStdout(), format, v)
}

func writeResult(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Round trip through JSON so the field names follow the json tags
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var tree interface{}
		if err := json.Unmarshal(data, &tree); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
