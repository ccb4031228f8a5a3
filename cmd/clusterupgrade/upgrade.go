package main

import (
	"fmt"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/events"
	"github.com/cuemby/clusterupgrade/pkg/upgrade"
	"github.com/spf13/cobra"
)

var cloneCmd = &cobra.Command{
	Use:   "clone CLUSTER_ID --name NAME --release RELEASE_ID",
	Short: "Clone a cluster into a seed cluster on a new release",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		releaseID, _ := cmd.Flags().GetString("release")

		seed, err := newClient(cmd).CloneCluster(cmd.Context(), args[0], upgrade.CloneRequest{
			Name:      name,
			ReleaseID: releaseID,
		})
		if err != nil {
			return err
		}
		return printResult(cmd, seed)
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign SEED_CLUSTER_ID --node NODE_ID",
	Short: "Move a node of the orig cluster to the seed cluster",
	Long: `Move a node of the orig cluster to the seed cluster.

By default the node is reprovisioned and its roles become pending roles in
the seed cluster. With --reprovision=false the node keeps its roles and no
provisioning task is started.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node")
		roles, _ := cmd.Flags().GetStringSlice("roles")
		wait, _ := cmd.Flags().GetBool("wait")

		req := upgrade.AssignRequest{NodeID: nodeID, Roles: roles}
		if cmd.Flags().Changed("reprovision") {
			reprovision, _ := cmd.Flags().GetBool("reprovision")
			req.Reprovision = &reprovision
		}

		c := newClient(cmd)
		task, err := c.AssignNode(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		if task == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Node %s assigned to cluster %s\n", nodeID, args[0])
			return nil
		}

		if wait {
			interval, _ := cmd.Flags().GetDuration("poll-interval")
			if task, err = c.WaitTask(cmd.Context(), task.ID, interval); err != nil {
				return err
			}
		}
		return printResult(cmd, task)
	},
}

var copyVIPsCmd = &cobra.Command{
	Use:   "copy-vips SEED_CLUSTER_ID",
	Short: "Copy the VIPs of the orig cluster to the seed cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient(cmd).CopyVIPs(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ VIPs copied to cluster %s\n", args[0])
		return nil
	},
}

var cloneReleaseCmd = &cobra.Command{
	Use:   "clone-release CLUSTER_ID RELEASE_ID",
	Short: "Create an upgrade release for a cluster from a base release",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		release, err := newClient(cmd).CloneRelease(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printResult(cmd, release)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info CLUSTER_ID",
	Short: "Show the upgrade relation of a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := newClient(cmd).DeploymentInfo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, info)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent upgrade events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterID, _ := cmd.Flags().GetString("cluster")
		eventType, _ := cmd.Flags().GetString("type")

		list, err := newClient(cmd).ListEvents(cmd.Context(), events.Filter{
			Type:      events.EventType(eventType),
			ClusterID: clusterID,
		})
		if err != nil {
			return err
		}
		return printResult(cmd, list)
	},
}

func init() {
	cloneCmd.Flags().String("name", "", "Name of the seed cluster (required)")
	cloneCmd.Flags().String("release", "", "Release of the seed cluster (required)")
	_ = cloneCmd.MarkFlagRequired("name")
	_ = cloneCmd.MarkFlagRequired("release")

	assignCmd.Flags().String("node", "", "Node to move (required)")
	assignCmd.Flags().Bool("reprovision", true, "Reprovision the node")
	assignCmd.Flags().StringSlice("roles", nil, "Roles of the node in the seed cluster")
	assignCmd.Flags().Bool("wait", false, "Wait for the provisioning task to finish")
	assignCmd.Flags().Duration("poll-interval", 2*time.Second, "Task polling interval with --wait")
	_ = assignCmd.MarkFlagRequired("node")

	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(copyVIPsCmd)
	rootCmd.AddCommand(cloneReleaseCmd)
	eventsCmd.Flags().String("cluster", "", "Only events of this cluster (orig or seed side)")
	eventsCmd.Flags().String("type", "", "Only events of this type, e.g. cluster.cloned")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(eventsCmd)
}
