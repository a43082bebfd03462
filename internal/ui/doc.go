// Package ui renders terminal output for the signctl CLI.
//
// One-shot device commands print a Header, the session steps as the
// supervisor reports them (Progress) and a Result box, all driven by a
// Runner:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Set Text Frame",
//	    Command: "signctl text-frame gantry-north",
//	    Params:  map[string]string{"Frame": "5"},
//	})
//	opts.OnEvent = runner.Observe
//	reply, err := runner.Run(ctx, func(ctx context.Context) (any, error) {
//	    return nil, sup.SetTextFrame(ctx, frame)
//	})
//
// "signctl monitor" runs MonitorModel, a Bubble Tea program with a table of
// device sessions, a recent-event log and key bindings to poll, start and end
// sessions. When stdout is not a terminal RunPlain prints one line per event
// instead.
//
// Zap logging is silent unless SIGNCTL_LOG_LEVEL or --log-level is set, so
// these renderers own the terminal by default.
package ui
