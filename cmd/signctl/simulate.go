package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/signctl/internal/discovery"
	"github.com/muurk/signctl/internal/logging"
	"github.com/muurk/signctl/internal/simulator"
	"github.com/muurk/signctl/internal/ui"
)

// Simulate command flags
var (
	simListen    string
	simAddress   string
	simSeed      string
	simSeedOff   string
	simPassOff   string
	simAdvertise string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated sign controller",
	Long: `Listen for masters and answer as a controller with two groups: three text
signs in group 1 and one graphics sign in group 2. Frames, messages and
plans written by a master are kept for the life of the process.

Point a device entry at the listen address with the same offsets to try
the other commands without hardware.`,
	Example: `  signctl simulate --listen :4001 --seed-offset 20 --password-offset 5A5A
  signctl config add sim --host 127.0.0.1 --port 4001 --seed-offset 20 --password-offset 5A5A
  signctl status sim

  # Make it findable by 'signctl discover'
  signctl simulate --advertise "Bench VMS"`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simListen, "listen", ":4001", "TCP listen address")
	simulateCmd.Flags().StringVar(&simAddress, "address", "01", "Controller address (2 hex digits)")
	simulateCmd.Flags().StringVar(&simSeed, "seed", "10", "Password seed sent to masters (2 hex digits)")
	simulateCmd.Flags().StringVar(&simSeedOff, "seed-offset", "00", "Seed offset (hex)")
	simulateCmd.Flags().StringVar(&simPassOff, "password-offset", "0000", "Password offset (hex)")
	simulateCmd.Flags().StringVar(&simAdvertise, "advertise", "", "Register over mDNS as "+discovery.ServiceType+" with this instance name")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if logLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		if err := logging.Initialize("info"); err != nil {
			return err
		}
	}

	seed, err := strconv.ParseUint(simSeed, 16, 8)
	if err != nil {
		return fmt.Errorf("--seed %q: want 2 hex digits", simSeed)
	}
	sim := simulator.New(simulator.Options{
		Address:        simAddress,
		Seed:           byte(seed),
		SeedOffset:     simSeedOff,
		PasswordOffset: simPassOff,
	})

	ln, err := net.Listen("tcp", simListen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", simListen, err)
	}

	if simAdvertise != "" {
		ad, err := discovery.AdvertiseController(simAdvertise, discovery.PortOf(ln.Addr()), simAddress)
		if err != nil {
			ln.Close()
			return err
		}
		defer ad.Shutdown()
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintHeader("Simulated controller", cmd.CommandPath(), map[string]string{
		"Listen":          ln.Addr().String(),
		"Address":         simAddress,
		"Seed":            simSeed,
		"Seed offset":     simSeedOff,
		"Password offset": simPassOff,
	})
	return sim.Serve(cmd.Context(), ln)
}
