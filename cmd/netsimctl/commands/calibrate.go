package commands

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/netlab-sim/netsim"
)

// calibrateCmd helps calibrate a single [netsim.Link]'s behavior: feed
// it a back-to-back packet stream at a given length and packet loss
// rate, and report the throughput the link's bandwidth and loss
// actually deliver, the same sanity check the upstream calibrate tool
// performs against a real userspace network stack.
func calibrateCmd() *cobra.Command {
	var (
		bandwidth   float64
		propagation float64
		lossRate    float64
		length      int
		count       int
	)

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Calibrate a single link's throughput under bandwidth, propagation, and loss",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalibration(bandwidth, propagation, lossRate, length, count)
		},
	}
	cmd.Flags().Float64Var(&bandwidth, "bandwidth-bps", 10_000_000, "link bandwidth in bits per second")
	cmd.Flags().Float64Var(&propagation, "propagation-s", 0.01, "one-way propagation delay in seconds")
	cmd.Flags().Float64Var(&lossRate, "loss-rate", 0, "Bernoulli per-packet loss rate in [0,1]")
	cmd.Flags().IntVar(&length, "length-bytes", 1500, "packet length in bytes")
	cmd.Flags().IntVar(&count, "count", 1000, "number of packets to send back to back")
	return cmd
}

func runCalibration(bandwidth, propagation, lossRate float64, length, count int) error {
	sim := netsim.NewSim(log.Log)
	net := netsim.NewNetHelper(sim)
	net.DefaultProtocol = "data"
	net.DefaultLength = length

	left, err := net.AddNode("left")
	if err != nil {
		return err
	}
	right, err := net.AddNode("right")
	if err != nil {
		return err
	}
	link := net.AddLink(1, left, right, bandwidth, propagation)
	net.ForwardLinks([2]*netsim.Node{left, right})
	if lossRate > 0 {
		link.SetLossRate(&lossRate)
	}

	recorder := netsim.NewRecordingObserver(nil)
	recorder.Attach(right)
	recorder.AttachLink(link)

	if err := net.RunScenario(func(net *netsim.NetHelper) error {
		return net.SendPacketStream(left, right, count, 0, length)
	}); err != nil {
		return err
	}

	delivered := len(recorder.Received)
	dropped := count - delivered
	totalBytes := delivered * length
	elapsed := sim.Scheduler.CurrentTime()
	var mbps float64
	if elapsed > 0 {
		mbps = (float64(totalBytes*8) / elapsed) / (1000 * 1000)
	}

	fmt.Printf("elapsed (s),delivered,dropped,total (byte),speed (Mbit/s)\n")
	fmt.Printf("%f,%d,%d,%d,%f\n", elapsed, delivered, dropped, totalBytes, mbps)
	return nil
}
