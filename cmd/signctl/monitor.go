package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/ui"
)

var monitorPlain bool

var monitorCmd = &cobra.Command{
	Use:   "monitor [device...]",
	Short: "Watch device sessions live",
	Long: `Supervise the configured devices and show their sessions in a live table.

Keys: p polls the selected device, s starts its session, e ends it,
? shows help and q quits. When stdout is not a terminal, or with --plain,
one line is printed per event instead.`,
	Example: `  signctl monitor
  signctl monitor gantry-north --plain | tee monitor.log`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorPlain, "plain", false, "Print events as lines instead of the interactive table")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	mgr, err := device.FromRegistry(reg, args...)
	if err != nil {
		return err
	}
	if len(mgr.Names()) == 0 {
		return fmt.Errorf("no enabled devices in %s", reg.Path())
	}

	events, unsubscribe := mgr.Subscribe(256)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(cmd.Context())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = mgr.Run(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	if monitorPlain || !ui.IsTerminal(os.Stdout) {
		return ui.RunPlain(ctx, cmd.OutOrStdout(), events)
	}
	return ui.RunMonitor(ctx, mgr, events)
}
