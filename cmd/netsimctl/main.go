// Command netsimctl drives discrete-event network simulation
// scenarios described in a YAML scenario file.
package main

import "github.com/netlab-sim/netsim/cmd/netsimctl/commands"

func main() {
	commands.Execute()
}
