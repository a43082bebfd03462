package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/protocol"
	"github.com/muurk/signctl/internal/ui"
)

func init() {
	rootCmd.AddCommand(
		newStatusCmd(),
		newConfigurationCmd(),
		newResetCmd(),
		newTimeCmd(),
		newTextFrameCmd(),
		newMessageCmd(),
		newDisplayFrameCmd(),
		newDisplayMessageCmd(),
		newDisplayAtomicCmd(),
		newStoredCmd(),
		newFaultLogCmd(),
		newResetFaultLogCmd(),
		newPlansCmd(),
		newPlanCmd("enable-plan", "Enable a plan on a group", true),
		newPlanCmd("disable-plan", "Disable a plan on a group", false),
		newDimCmd(),
		newSwitchCmd("power", "Switch sign groups on or off", (*device.Supervisor).PowerOnOff),
		newSwitchCmd("enable-device", "Enable or disable sign groups", (*device.Supervisor).EnableDisableDevice),
		newExtendedStatusCmd(),
	)
}

func newStatusCmd() *cobra.Command {
	return addDeviceFlags(&cobra.Command{
		Use:   "status <device>",
		Short: "Poll a controller and show sign status",
		Example: `  signctl status gantry-north
  signctl status gantry-north --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, args[0], "Sign Status", nil, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return sup.Poll(ctx)
			})
		},
	})
}

func newConfigurationCmd() *cobra.Command {
	return addDeviceFlags(&cobra.Command{
		Use:   "configuration <device>",
		Short: "Show the groups and signs a controller reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, args[0], "Sign Configuration", nil, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return sup.RequestConfiguration(ctx)
			})
		},
	})
}

func newResetCmd() *cobra.Command {
	var group, level byte
	var factory bool
	cmd := addDeviceFlags(&cobra.Command{
		Use:   "reset <device>",
		Short: "Reset a sign group",
		Long: `Send a system reset to one group (or group 0 for the whole controller).

The command asks for the device name to be typed back unless --yes is given.`,
		Example: `  signctl reset gantry-north --group 1 --level 1
  signctl reset gantry-north --factory --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := protocol.ResetLevel(level)
			if factory {
				l = protocol.ResetLevelFactory
			}
			if !l.Valid() {
				return fmt.Errorf("reset level %d is not 0-3", level)
			}
			if !assumeYes && !jsonOutput && !ui.ConfirmReset(os.Stdin, cmd.OutOrStdout(), args[0], l) {
				return nil
			}
			params := map[string]string{"Group": byteParam(group), "Level": fmt.Sprintf("0x%02X", byte(l))}
			return withDevice(cmd, args[0], "System Reset", params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return nil, sup.SystemReset(ctx, group, l)
			})
		},
	})
	cmd.Flags().Uint8Var(&group, "group", 0, "Group ID (0 = controller)")
	cmd.Flags().Uint8Var(&level, "level", 0, "Reset level 0-3")
	cmd.Flags().BoolVar(&factory, "factory", false, "Factory reset")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newTimeCmd() *cobra.Command {
	var at string
	cmd := addDeviceFlags(&cobra.Command{
		Use:   "time <device>",
		Short: "Set the controller clock",
		Example: `  signctl time gantry-north
  signctl time gantry-north --at 2026-05-01T06:00:00+10:00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := time.Now()
			if at != "" {
				var err error
				if t, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			params := map[string]string{"Time": t.Format(time.RFC3339)}
			return withDevice(cmd, args[0], "Update Time", params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return nil, sup.UpdateTime(ctx, t)
			})
		},
	})
	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 time to set (default: now)")
	return cmd
}

func newTextFrameCmd() *cobra.Command {
	var f protocol.TextFrame
	var verify bool
	cmd := addDeviceFlags(&cobra.Command{
		Use:   "text-frame <device>",
		Short: "Store a text frame",
		Example: `  signctl text-frame gantry-north --id 5 --text "ROAD WORK AHEAD"
  signctl text-frame gantry-north --id 6 --font 2 --colour 3 --conspicuity 1 --text "FOG"
  signctl text-frame gantry-north --id 7 --text "QUEUE AHEAD" --verify`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{"Frame": byteParam(f.FrameID), "Text": f.Text}
			return withDevice(cmd, args[0], "Set Text Frame", params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				if err := sup.SetTextFrame(ctx, &f); err != nil || !verify {
					return nil, err
				}
				return verified(sup.VerifyTextFrame(ctx, &f, device.DefaultVerifyOptions()))
			})
		},
	})
	cmd.Flags().Uint8Var(&f.FrameID, "id", 0, "Frame ID (1-255)")
	cmd.Flags().Uint8Var(&f.Revision, "revision", 0, "Revision")
	cmd.Flags().Uint8Var(&f.Font, "font", 0, "Font")
	cmd.Flags().Uint8Var(&f.Colour, "colour", 0, "Colour code")
	cmd.Flags().Uint8Var(&f.Conspicuity, "conspicuity", 0, "Conspicuity (flashing/lanterns)")
	cmd.Flags().StringVar(&f.Text, "text", "", "Frame text (printable ASCII)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Read the frame back and compare it")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newMessageCmd() *cobra.Command {
	var m protocol.MessageDefinition
	var entries []string
	var verify bool
	cmd := addDeviceFlags(&cobra.Command{
		Use:   "message <device>",
		Short: "Store a message built from frames",
		Long: `Store a message of up to six frames. Each --frame is frame-id:time with
time in tenths of a second.`,
		Example: `  signctl message gantry-north --id 3 --frame 5:20 --frame 6:20`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parsePairs("frame", entries)
			if err != nil {
				return err
			}
			for _, p := range pairs {
				m.Entries = append(m.Entries, protocol.MessageEntry{FrameID: p[0], Time: p[1]})
			}
			params := map[string]string{"Message": byteParam(m.MessageID), "Frames": fmt.Sprint(len(m.Entries))}
			return withDevice(cmd, args[0], "Set Message", params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				if err := sup.SetMessage(ctx, &m); err != nil || !verify {
					return nil, err
				}
				return verified(sup.VerifyMessage(ctx, &m, device.DefaultVerifyOptions()))
			})
		},
	})
	cmd.Flags().Uint8Var(&m.MessageID, "id", 0, "Message ID (1-255)")
	cmd.Flags().Uint8Var(&m.Revision, "revision", 0, "Revision")
	cmd.Flags().Uint8Var(&m.TransitionTime, "transition", 0, "Transition time between frames")
	cmd.Flags().StringArrayVar(&entries, "frame", nil, "frame-id:time, repeatable")
	cmd.Flags().BoolVar(&verify, "verify", false, "Read the message back and compare it")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("frame")
	return cmd
}

func newDisplayFrameCmd() *cobra.Command {
	var group, frame byte
	cmd := addDeviceFlags(&cobra.Command{
		Use:     "display-frame <device>",
		Short:   "Display a stored frame on a group",
		Example: `  signctl display-frame gantry-north --group 1 --frame 5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{"Group": byteParam(group), "Frame": byteParam(frame)}
			return withDevice(cmd, args[0], "Display Frame", params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return nil, sup.DisplayFrame(ctx, group, frame)
			})
		},
	})
	cmd.Flags().Uint8Var(&group, "group", 1, "Group ID")
	cmd.Flags().Uint8Var(&frame, "frame", 0, "Frame ID (0 blanks the group)")
	return cmd
}

func newDisplayMessageCmd() *cobra.Command {
	var group, message byte
	cmd := addDeviceFlags(&cobra.Command{
		Use:     "display-message <device>",
		Short:   "Display a stored message on a group",
		Example: `  signctl display-message gantry-north --group 1 --message 3`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{"Group": byteParam(group), "Message": byteParam(message)}
			return withDevice(cmd, args[0], "Display Message", params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return nil, sup.DisplayMessage(ctx, group, message)
			})
		},
	})
	cmd.Flags().Uint8Var(&group, "group", 1, "Group ID")
	cmd.Flags().Uint8Var(&message, "message", 0, "Message ID")
	return cmd
}

func newDisplayAtomicCmd() *cobra.Command {
	var group byte
	var signs []string
	cmd := addDeviceFlags(&cobra.Command{
		Use:     "display-atomic <device>",
		Short:   "Display frames on several signs of a group at once",
		Example: `  signctl display-atomic gantry-north --group 1 --sign 1:5 --sign 2:6 --sign 3:5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parsePairs("sign", signs)
			if err != nil {
				return err
			}
			frames := make([]protocol.SignFrame, len(pairs))
			for i, p := range pairs {
				frames[i] = protocol.SignFrame{SignID: p[0], FrameID: p[1]}
			}
			params := map[string]string{"Group": byteParam(group), "Signs": fmt.Sprint(len(frames))}
			return withDevice(cmd, args[0], "Display Atomic Frames", params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return nil, sup.DisplayAtomicFrames(ctx, group, frames)
			})
		},
	})
	cmd.Flags().Uint8Var(&group, "group", 1, "Group ID")
	cmd.Flags().StringArrayVar(&signs, "sign", nil, "sign-id:frame-id, repeatable")
	_ = cmd.MarkFlagRequired("sign")
	return cmd
}

func newStoredCmd() *cobra.Command {
	return addDeviceFlags(&cobra.Command{
		Use:   "stored <device> frame|message|plan <id>",
		Short: "Read back a stored frame, message or plan",
		Example: `  signctl stored gantry-north frame 5
  signctl stored gantry-north plan 2 --json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind protocol.StoredKind
			switch args[1] {
			case "frame":
				kind = protocol.StoredKindFrame
			case "message":
				kind = protocol.StoredKindMessage
			case "plan":
				kind = protocol.StoredKindPlan
			default:
				return fmt.Errorf("%q is not frame, message or plan", args[1])
			}
			id, err := parseByte(args[2])
			if err != nil {
				return err
			}
			params := map[string]string{"Kind": args[1], "ID": byteParam(id)}
			return withDevice(cmd, args[0], "Request Stored", params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				obj, err := sup.RequestStored(ctx, kind, id)
				if err != nil {
					return nil, err
				}
				return obj.Value(), nil
			})
		},
	})
}

func newFaultLogCmd() *cobra.Command {
	return addDeviceFlags(&cobra.Command{
		Use:   "fault-log <device>",
		Short: "Retrieve the controller fault log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, args[0], "Fault Log", nil, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return sup.RetrieveFaultLog(ctx)
			})
		},
	})
}

func newResetFaultLogCmd() *cobra.Command {
	cmd := addDeviceFlags(&cobra.Command{
		Use:   "reset-fault-log <device>",
		Short: "Clear the controller fault log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !assumeYes && !jsonOutput && !ui.Confirm(os.Stdin, cmd.OutOrStdout(), "RESET FAULT LOG",
				[]string{"Every fault log entry on " + args[0] + " is deleted"}, args[0]) {
				return nil
			}
			return withDevice(cmd, args[0], "Reset Fault Log", nil, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return nil, sup.ResetFaultLog(ctx)
			})
		},
	})
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newPlansCmd() *cobra.Command {
	return addDeviceFlags(&cobra.Command{
		Use:   "plans <device>",
		Short: "List enabled plans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, args[0], "Enabled Plans", nil, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return sup.RequestEnabledPlans(ctx)
			})
		},
	})
}

func newPlanCmd(use, short string, enable bool) *cobra.Command {
	var group, plan byte
	title := "Disable Plan"
	if enable {
		title = "Enable Plan"
	}
	cmd := addDeviceFlags(&cobra.Command{
		Use:     use + " <device>",
		Short:   short,
		Example: fmt.Sprintf("  signctl %s gantry-north --group 1 --plan 2", use),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{"Group": byteParam(group), "Plan": byteParam(plan)}
			return withDevice(cmd, args[0], title, params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				if enable {
					return nil, sup.EnablePlan(ctx, group, plan)
				}
				return nil, sup.DisablePlan(ctx, group, plan)
			})
		},
	})
	cmd.Flags().Uint8Var(&group, "group", 1, "Group ID")
	cmd.Flags().Uint8Var(&plan, "plan", 0, "Plan ID")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newDimCmd() *cobra.Command {
	var groups []string
	var auto []uint
	cmd := addDeviceFlags(&cobra.Command{
		Use:   "dim <device>",
		Short: "Set manual dimming levels or return groups to automatic",
		Long: fmt.Sprintf(`Each --group is group-id:level with level 1-%d and sets manual dimming.
Each --auto returns a group to automatic dimming.`, protocol.MaxDimmingLevel),
		Example: `  signctl dim gantry-north --group 1:8 --auto 2`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parsePairs("group", groups)
			if err != nil {
				return err
			}
			var settings []protocol.DimmingSetting
			for _, p := range pairs {
				settings = append(settings, protocol.DimmingSetting{GroupID: p[0], Manual: true, Level: p[1]})
			}
			for _, g := range auto {
				if g > 255 {
					return fmt.Errorf("--auto %d is not a group ID", g)
				}
				settings = append(settings, protocol.DimmingSetting{GroupID: byte(g)})
			}
			params := map[string]string{"Groups": fmt.Sprint(len(settings))}
			return withDevice(cmd, args[0], "Set Dimming Level", params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return nil, sup.SetDimmingLevel(ctx, settings)
			})
		},
	})
	cmd.Flags().StringArrayVar(&groups, "group", nil, "group-id:level, repeatable")
	cmd.Flags().UintSliceVar(&auto, "auto", nil, "Group IDs to return to automatic dimming")
	return cmd
}

func newSwitchCmd(use, short string, run func(*device.Supervisor, context.Context, []protocol.GroupSwitch) error) *cobra.Command {
	var groups []uint
	cmd := addDeviceFlags(&cobra.Command{
		Use:     use + " <device> on|off",
		Short:   short,
		Example: fmt.Sprintf("  signctl %s gantry-north off --group 1 --group 2", use),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				return fmt.Errorf("at least one --group is required")
			}
			switches := make([]protocol.GroupSwitch, 0, len(groups))
			for _, g := range groups {
				if g > 255 {
					return fmt.Errorf("--group %d is not a group ID", g)
				}
				switches = append(switches, protocol.GroupSwitch{GroupID: byte(g), On: on})
			}
			params := map[string]string{"State": args[1], "Groups": fmt.Sprint(groups)}
			return withDevice(cmd, args[0], short, params, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return nil, run(sup, ctx, switches)
			})
		},
	})
	cmd.Flags().UintSliceVar(&groups, "group", nil, "Group IDs")
	return cmd
}

func newExtendedStatusCmd() *cobra.Command {
	return addDeviceFlags(&cobra.Command{
		Use:   "extended-status <device>",
		Short: "Request the controller's extended status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, args[0], "Extended Status", nil, func(ctx context.Context, sup *device.Supervisor) (any, error) {
				return sup.ExtendedStatus(ctx)
			})
		},
	})
}
