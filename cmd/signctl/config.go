package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/signctl/internal/config"
	"github.com/muurk/signctl/internal/transport"
	"github.com/muurk/signctl/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the device configuration file",
}

func init() {
	configCmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigAddCmd(), newConfigRemoveCmd())
	rootCmd.AddCommand(configCmd)
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				var err error
				if path, err = config.GetConfigPath(); err != nil {
					return err
				}
			}
			reg, err := config.CreateDefaultConfig(path, force)
			if err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Configuration created", map[string]string{
				"File":    reg.Path(),
				"Devices": fmt.Sprint(len(reg.Devices)),
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the configured devices",
		Example: `  signctl config show
  signctl config show --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(reg)
			case "table":
			default:
				return fmt.Errorf("unknown format %q (table, yaml)", format)
			}

			p := ui.NewPrinter(out)
			p.PrintHeader("Configuration", reg.Path(), map[string]string{
				"Heartbeat": reg.Preferences.HeartbeatInterval.String(),
				"Timeout":   reg.Preferences.RequestTimeout.String(),
				"Listen":    reg.Server.Listen,
			})
			rows := make([][]string, 0, len(reg.Devices))
			for _, name := range reg.DeviceNames() {
				d := reg.Devices[name]
				state := "enabled"
				if d.Disabled {
					state = "disabled"
				}
				seen := "never"
				if !d.LastSeen.IsZero() {
					seen = d.LastSeen.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{name, d.Endpoint(), d.Address, state, seen})
			}
			p.PrintTable([]string{"Name", "Endpoint", "Address", "State", "Last seen"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, yaml)")
	return cmd
}

func newConfigAddCmd() *cobra.Command {
	var d config.Device
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a device",
		Example: `  signctl config add gantry-north --host 10.0.4.12 --port 4001 --address 01 \
      --seed-offset 20 --password-offset 5A5A

  signctl config add ramp-vms --serial-port /dev/ttyUSB0 --baud 9600 --address 02 \
      --seed-offset 10 --password-offset 0101`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			if d.SerialPort != "" && d.Host == "" {
				d.Transport = string(transport.KindSerial)
				d.Port = 0
			}
			if err := reg.AddDevice(args[0], &d); err != nil {
				return err
			}
			if err := reg.Save(); err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Device saved", map[string]string{
				"Name":     args[0],
				"Endpoint": d.Endpoint(),
				"File":     reg.Path(),
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&d.Host, "host", "", "Controller host (TCP)")
	cmd.Flags().IntVar(&d.Port, "port", 4001, "Controller port (TCP)")
	cmd.Flags().StringVar(&d.SerialPort, "serial-port", "", "Serial device (selects the serial transport)")
	cmd.Flags().IntVar(&d.BaudRate, "baud", 0, "Serial baud rate (default 9600)")
	cmd.Flags().StringVar(&d.Address, "address", "01", "Controller address (2 hex digits)")
	cmd.Flags().StringVar(&d.SeedOffset, "seed-offset", "", "Password seed offset (hex)")
	cmd.Flags().StringVar(&d.PasswordOffset, "password-offset", "", "Password offset (hex)")
	cmd.Flags().BoolVar(&d.Disabled, "disabled", false, "Save without supervising")
	_ = cmd.MarkFlagRequired("seed-offset")
	_ = cmd.MarkFlagRequired("password-offset")
	return cmd
}

func newConfigRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			if !reg.RemoveDevice(args[0]) {
				return fmt.Errorf("unknown device %q", args[0])
			}
			return reg.Save()
		},
	}
}
