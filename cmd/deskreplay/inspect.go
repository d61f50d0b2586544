package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/v0xg/deskreplay/internal/sequence"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <sequence.json>",
	Short: "Validate a sequence and list its actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := sequence.Load(args[0])
		if err != nil {
			return err
		}
		if inspectJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(seq)
		}
		describe(os.Stdout, args[0], seq)
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the normalized sequence as JSON")
	rootCmd.AddCommand(inspectCmd)
}

// describe prints sequence metadata, a per-type tally and every action
func describe(w io.Writer, name string, seq *sequence.Sequence) {
	fmt.Fprintf(w, "%s\n", name)
	fmt.Fprintf(w, "  version:    %s\n", orDash(seq.Version))
	fmt.Fprintf(w, "  platform:   %s\n", orDash(seq.Platform))
	if r := seq.ScreenResolution; r != nil {
		fmt.Fprintf(w, "  resolution: %dx%d\n", r.Width, r.Height)
	}
	fmt.Fprintf(w, "  duration:   %.2fs (actions span %.2fs)\n", seq.Duration, seq.Span())
	fmt.Fprintf(w, "  actions:    %d\n", len(seq.Actions))

	counts := seq.CountByType()
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		note := ""
		if !sequence.ActionType(t).Replayable() {
			note = " (skipped on replay)"
		}
		fmt.Fprintf(w, "    %-15s %d%s\n", t, counts[sequence.ActionType(t)], note)
	}

	fmt.Fprintln(w)
	first := seq.FirstTimestamp()
	for i, a := range seq.Actions {
		fmt.Fprintf(w, "  [%d] +%.3fs %s\n", i+1, a.Timestamp-first, a.Summary())
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
