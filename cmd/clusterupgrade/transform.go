package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cuemby/clusterupgrade/pkg/config"
	"github.com/cuemby/clusterupgrade/pkg/transformations"
	clustertf "github.com/cuemby/clusterupgrade/pkg/transformations/cluster"
	viptf "github.com/cuemby/clusterupgrade/pkg/transformations/vip"
	volumestf "github.com/cuemby/clusterupgrade/pkg/transformations/volumes"
	"github.com/spf13/cobra"
)

// domains builds the transformation manager of each domain
var domains = map[string]func(transformations.Settings) (*transformations.Manager, error){
	clustertf.Name: clustertf.NewManager,
	viptf.Name:     viptf.NewManager,
	volumestf.Name: volumestf.NewManager,
}

func domainNames() []string {
	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadSettings returns the transformation overrides of the --config file
func loadSettings(cmd *cobra.Command) (transformations.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Transformations, nil
}

func buildDomain(cmd *cobra.Command, domain string) (*transformations.Manager, error) {
	build, ok := domains[domain]
	if !ok {
		return nil, fmt.Errorf("unknown domain %q, expected one of %s", domain, strings.Join(domainNames(), ", "))
	}
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return build(settings)
}

var transformCmd = &cobra.Command{
	Use:   "transform DOMAIN --from VERSION --to VERSION -f FILE",
	Short: "Run the transformations of a domain over a JSON document",
	Long: `Run the transformations of a domain over a JSON document offline.

The input depends on the domain:
  cluster  {"editable": {...}, "generated": {...}}
  vip      {"vips": {ng_id: {vip_name: vip}}, "network_groups": {ng_id: name}}
  volumes  [volume, ...]

Examples:
  clusterupgrade transform cluster --from 6.0 --to 9.0 -f attributes.json
  cat volumes.json | clusterupgrade transform volumes --from 8.0 --to 9.0 -f -`,
	Args: cobra.ExactArgs(1),
	RunE: runTransform,
}

func runTransform(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	filename, _ := cmd.Flags().GetString("file")

	manager, err := buildDomain(cmd, args[0])
	if err != nil {
		return err
	}

	var raw []byte
	if filename == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(filename)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	var data interface{}
	if args[0] == viptf.Name {
		var vips viptf.Data
		err = json.Unmarshal(raw, &vips)
		data = vips
	} else {
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return fmt.Errorf("failed to parse input: %w", err)
	}

	out, err := manager.Apply(from, to, data)
	if err != nil {
		return err
	}
	return printResult(cmd, out)
}

var transformationsCmd = &cobra.Command{
	Use:   "transformations",
	Short: "Inspect the transformation registries",
}

var transformationsListCmd = &cobra.Command{
	Use:   "list [DOMAIN]",
	Short: "List the transformers of each domain in application order",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names := domainNames()
		if len(args) == 1 {
			names = args
		}

		w := cmd.OutOrStdout()
		for _, domain := range names {
			manager, err := buildDomain(cmd, domain)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s:\n", domain)
			for _, entry := range manager.Entries() {
				fmt.Fprintf(w, "  %s: %s\n", entry.Version.Original(), strings.Join(entry.Names, ", "))
			}
		}
		return nil
	},
}

func init() {
	transformCmd.Flags().String("from", "", "Version of the input data (required)")
	transformCmd.Flags().String("to", "", "Target version (required)")
	transformCmd.Flags().StringP("file", "f", "", "JSON input file, - for stdin (required)")
	transformCmd.Flags().String("config", "", "Configuration file with transformation overrides")
	_ = transformCmd.MarkFlagRequired("from")
	_ = transformCmd.MarkFlagRequired("to")
	_ = transformCmd.MarkFlagRequired("file")

	transformationsListCmd.Flags().String("config", "", "Configuration file with transformation overrides")

	transformationsCmd.AddCommand(transformationsListCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(transformationsCmd)
}
