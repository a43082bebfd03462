package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/muurk/signctl/internal/device"
)

// FormatEvent renders an event as one log line.
func FormatEvent(e device.Event) string {
	ts := e.Time.Format("15:04:05")
	switch e.Kind {
	case device.EventState:
		return fmt.Sprintf("%s %-16s state   %s -> %s", ts, e.Device, e.From, e.State)
	case device.EventStatus:
		if e.Status == nil {
			return fmt.Sprintf("%s %-16s status", ts, e.Device)
		}
		line := fmt.Sprintf("%s %-16s status  online=%t signs=%d", ts, e.Device, e.Status.Online, len(e.Status.Signs))
		if faulted := e.Status.Faulted(); len(faulted) > 0 {
			ids := make([]string, len(faulted))
			for i, id := range faulted {
				ids[i] = fmt.Sprintf("%d", id)
			}
			line += " faulted=" + strings.Join(ids, ",")
		}
		return line
	case device.EventConfiguration:
		return fmt.Sprintf("%s %-16s config  %d signs", ts, e.Device, e.Signs)
	case device.EventError:
		return fmt.Sprintf("%s %-16s error   %s", ts, e.Device, e.Error)
	}
	return fmt.Sprintf("%s %-16s %s", ts, e.Device, e.Kind)
}

// RunPlain writes one line per event until ctx is done or events closes.
// It is the monitor used when stdout is not a terminal.
func RunPlain(ctx context.Context, w io.Writer, events <-chan device.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintln(w, FormatEvent(e)); err != nil {
				return err
			}
		}
	}
}
