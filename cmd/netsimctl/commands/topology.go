package commands

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/netlab-sim/netsim"
	"github.com/netlab-sim/netsim/cmd/netsimctl/internal/scenario"
)

func topologyCmd() *cobra.Command {
	var scenarioPath string

	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Validate a scenario file and print its topology",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTopology(scenarioPath)
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to the scenario YAML file (required)")
	netsim.Must0(cmd.MarkFlagRequired("scenario"))
	return cmd
}

func printTopology(scenarioPath string) error {
	cfg, err := scenario.Load(scenarioPath)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}

	sim := netsim.NewSim(log.Log)
	net := netsim.NewNetHelper(sim)
	nodes, err := scenario.Build(net, cfg)
	if err != nil {
		return fmt.Errorf("building topology: %w", err)
	}

	fmt.Printf("%d nodes, %d links, routing=%s, congestion=%s\n",
		len(nodes), len(cfg.Links), orDefault(cfg.Run.Routing, "static"), orDefault(cfg.Run.Congestion, "none"))

	for hostname, node := range nodes {
		fmt.Printf("  %s\n", hostname)
		for _, link := range node.Links() {
			loss := "0"
			if link.LossRate != nil {
				loss = fmt.Sprintf("%g", *link.LossRate)
			}
			fmt.Printf("    -> %s (addr %d, %.0f bit/s, %.3fs prop, loss %s)\n",
				link.Endpoint.Hostname, link.Address, link.Bandwidth, link.Propagation, loss)
		}
	}

	for _, send := range cfg.Sends {
		fmt.Printf("  send %s -> %s: protocol=%s length=%d count=%d delay=%.3fs\n",
			send.From, send.To, orDefault(send.Protocol, "data"), send.LengthBytes, send.Count, send.DelaySeconds)
	}

	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
