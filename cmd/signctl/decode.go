package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/signctl/internal/protocol"
	"github.com/muurk/signctl/internal/ui"
)

// Decode command flags
var (
	decodeFile string
	decodeRaw  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode captured protocol traffic",
	Long: `Split captured bytes into frames, check each frame's CRC and decode the
application message it carries.

Input is hex text: one or more arguments, or a file with one chunk per line
(blank lines and lines starting with # are skipped). Frames may span chunks.
With --raw the file is read as the byte stream itself.

Replies are decoded into their fields. Requests a master sends are listed
by message identifier only.`,
	Example: `  signctl decode --file capture.hex
  cat day1.hex day2.hex | signctl decode --file -
  signctl decode --file trace.bin --raw --json`,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "f", "", "Capture file (- for stdin)")
	decodeCmd.Flags().BoolVar(&decodeRaw, "raw", false, "Read the file as raw bytes instead of hex text")
	decodeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON object per frame")
	rootCmd.AddCommand(decodeCmd)
}

// decodedFrame is one frame of a capture.
type decodedFrame struct {
	Index   int              `json:"index"`
	Frame   string           `json:"frame"`
	MI      string           `json:"mi,omitempty"`
	Message protocol.Message `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// captureStats counts what a capture contained.
type captureStats struct {
	Frames    int
	Decoded   int
	Requests  int
	Failed    int
	Leftover  int
	ByMessage map[string]int
}

func runDecode(cmd *cobra.Command, args []string) error {
	var chunks [][]byte
	var err error
	switch {
	case decodeFile != "":
		chunks, err = readCapture(cmd.InOrStdin(), decodeFile, decodeRaw)
	case len(args) > 0:
		chunks, err = hexChunks(strings.NewReader(strings.Join(args, "\n")))
	default:
		return fmt.Errorf("nothing to decode: pass hex arguments or --file")
	}
	if err != nil {
		return err
	}

	frames, stats := analyzeCapture(chunks)

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		for _, f := range frames {
			if err := enc.Encode(f); err != nil {
				return err
			}
		}
		return nil
	}

	p := ui.NewPrinter(out)
	rows := make([][]string, 0, len(frames))
	for _, f := range frames {
		detail := f.Error
		if f.Message != nil {
			detail = f.Message.String()
		}
		rows = append(rows, []string{strconv.Itoa(f.Index), f.Frame, f.MI, detail})
	}
	if len(rows) > 0 {
		p.PrintTable([]string{"#", "FRAME", "MI", "DECODED"}, rows)
	}

	details := map[string]string{
		"Frames":   strconv.Itoa(stats.Frames),
		"Decoded":  strconv.Itoa(stats.Decoded),
		"Requests": strconv.Itoa(stats.Requests),
		"Failed":   strconv.Itoa(stats.Failed),
	}
	if stats.Leftover > 0 {
		details["Trailing bytes"] = strconv.Itoa(stats.Leftover)
	}
	for name, n := range stats.ByMessage {
		details["MI "+name] = strconv.Itoa(n)
	}
	if stats.Failed > 0 {
		p.PrintWarning("Capture decoded with errors", details)
		return nil
	}
	p.PrintSuccess("Capture decoded", details)
	return nil
}

func readCapture(stdin io.Reader, path string, raw bool) ([][]byte, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open capture: %w", err)
		}
		defer f.Close()
		r = f
	}
	if raw {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read capture: %w", err)
		}
		return [][]byte{data}, nil
	}
	return hexChunks(r)
}

// hexChunks reads one hex chunk per line. Whitespace inside a line is ignored.
func hexChunks(r io.Reader) ([][]byte, error) {
	var chunks [][]byte
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.Join(strings.Fields(sc.Text()), "")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		b, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		chunks = append(chunks, b)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return chunks, nil
}

// analyzeCapture reassembles chunks into frames and decodes each one.
func analyzeCapture(chunks [][]byte) ([]decodedFrame, captureStats) {
	stats := captureStats{ByMessage: make(map[string]int)}
	var frames []decodedFrame
	var reasm protocol.Reassembler

	for _, chunk := range chunks {
		for _, raw := range reasm.Feed(chunk) {
			stats.Frames++
			d := decodedFrame{Index: stats.Frames, Frame: protocol.Printable(raw)}
			f, err := protocol.Decode(raw)
			if err != nil {
				stats.Failed++
				d.Error = err.Error()
				frames = append(frames, d)
				continue
			}
			if !f.IsData() {
				d.MI = protocol.MarkerName(f.Start)
				stats.Decoded++
				stats.ByMessage[d.MI]++
				frames = append(frames, d)
				continue
			}

			d.MI = f.MI.String()
			stats.ByMessage[d.MI]++
			msg, err := protocol.ParseMessage(f)
			switch {
			case err == nil:
				d.Message = msg
				stats.Decoded++
			case errors.Is(err, protocol.ErrUnexpectedMI):
				stats.Requests++
			default:
				d.Error = err.Error()
				stats.Failed++
			}
			frames = append(frames, d)
		}
	}
	stats.Leftover = reasm.Pending()
	return frames, stats
}
