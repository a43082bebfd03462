package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/signctl/internal/discovery"
	"github.com/muurk/signctl/internal/ui"
)

// Discover command flags
var (
	discoverTimeout  time.Duration
	discoverSave     bool
	discoverSeed     string
	discoverPassword string
	discoverGateways bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find sign controllers on the local network",
	Long: `Browse mDNS for controllers registered as ` + discovery.ServiceType + `.

With --save every controller found is added to the configuration file as a
disabled TCP device; --seed-offset and --password-offset supply the
credentials, which mDNS does not carry. Review the entries and clear
'disabled' to supervise them.`,
	Example: `  # Browse for five seconds
  signctl discover

  # Browse longer and save what is found
  signctl discover --timeout 15s --save --seed-offset 20 --password-offset 5A5A

  # Find running signctl gateways instead
  signctl discover --gateways`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 0, "Browse time (default from configuration, 5s)")
	discoverCmd.Flags().BoolVar(&discoverSave, "save", false, "Add discovered controllers to the configuration file")
	discoverCmd.Flags().StringVar(&discoverSeed, "seed-offset", "", "Seed offset for saved controllers (hex)")
	discoverCmd.Flags().StringVar(&discoverPassword, "password-offset", "", "Password offset for saved controllers (hex)")
	discoverCmd.Flags().BoolVar(&discoverGateways, "gateways", false, "Browse for signctl gateways ("+discovery.GatewayServiceType+")")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if discoverSave && (discoverSeed == "" || discoverPassword == "") {
		return fmt.Errorf("--save needs --seed-offset and --password-offset")
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = reg.Preferences.DiscoverTimeout.D()
	if discoverTimeout > 0 {
		scanner.Timeout = discoverTimeout
	}
	if discoverGateways {
		scanner.Service = discovery.GatewayServiceType
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Discovery", cmd.CommandPath(), map[string]string{
		"Service": scanner.Service,
		"Timeout": scanner.Timeout.String(),
	})

	var found []*discovery.Controller
	if ui.IsTerminal(os.Stdout) {
		found, err = ui.RunWait(cmd.Context(), cmd.OutOrStdout(), "Browsing "+scanner.Service, scanner.Timeout, scanner.Scan)
	} else {
		found, err = scanner.Scan(cmd.Context())
	}
	if err != nil {
		p.PrintError("Discovery failed", err, []string{
			"Check multicast is allowed on this interface",
			"UDP port 5353 must not be firewalled",
		})
		return reported(err)
	}
	if len(found) == 0 {
		p.PrintWarning("No controllers found", map[string]string{"Timeout": scanner.Timeout.String()})
		return nil
	}

	rows := make([][]string, 0, len(found))
	for _, c := range found {
		rows = append(rows, []string{c.Name(), c.Instance, c.Endpoint(), c.Address})
	}
	p.PrintTable([]string{"Name", "Instance", "Endpoint", "Address"}, rows)

	if !discoverSave || discoverGateways {
		return nil
	}

	saved := 0
	for _, c := range found {
		name := c.Name()
		if reg.GetDevice(name) != nil {
			continue
		}
		d := c.ToConfig(discoverSeed, discoverPassword)
		d.Disabled = true
		if err := reg.AddDevice(name, d); err != nil {
			return err
		}
		saved++
	}
	if err := reg.Save(); err != nil {
		return err
	}
	p.Newline()
	p.PrintSuccess("Configuration updated", map[string]string{
		"File":  reg.Path(),
		"Added": fmt.Sprint(saved),
	})
	return nil
}
