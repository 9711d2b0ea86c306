// Package cli implements availability-check, an offline tool for trying booking requests
// against a schedule file without a database.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/schedule"
	"github.com/spf13/cobra"
)

var errRejected = errors.New("slot rejected")

// scheduleFile matches the body of GET /api/v1/schedule.
type scheduleFile struct {
	TimeZone     string              `json:"timezone"`
	Availability map[string][]string `json:"availability"`
}

type bookingEntry struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type checkOptions struct {
	schedulePath string
	bookingsPath string
	start        string
	end          string
	json         bool
}

func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil && !errors.Is(err, errRejected) {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
	}
	return ExitCode(err)
}

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "availability-check",
		Short:         "Check booking requests against a trainer schedule file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd())
	root.AddCommand(newValidateCmd())
	return root
}

func newCheckCmd() *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve one interval against a schedule and optional existing bookings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			weekly, err := loadSchedule(opts.schedulePath)
			if err != nil {
				return wrap(exitUsage, err)
			}
			start, err := time.Parse(time.RFC3339, opts.start)
			if err != nil {
				return wrap(exitUsage, fmt.Errorf("--start: %w", err))
			}
			end, err := time.Parse(time.RFC3339, opts.end)
			if err != nil {
				return wrap(exitUsage, fmt.Errorf("--end: %w", err))
			}
			existing, err := loadBookings(opts.bookingsPath)
			if err != nil {
				return wrap(exitUsage, err)
			}

			verdict := availability.Resolve(start, end, weekly, existing)
			out := cmd.OutOrStdout()
			if opts.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(verdict); err != nil {
					return wrap(exitUsage, err)
				}
			} else if verdict.Available {
				fmt.Fprintln(out, "available")
			} else {
				fmt.Fprintf(out, "rejected: %s\n", verdict.Reason)
			}
			if !verdict.Available {
				return wrap(exitRejected, errRejected)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.schedulePath, "schedule", "", "Schedule JSON file")
	cmd.Flags().StringVar(&opts.bookingsPath, "bookings", "", "JSON array of existing bookings ({start, end})")
	cmd.Flags().StringVar(&opts.start, "start", "", "Interval start (RFC3339)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Interval end (RFC3339)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the verdict as JSON")
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a schedule file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			weekly, err := loadSchedule(path)
			if err != nil {
				return wrap(exitUsage, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok (%s)\n", weekly.TimeZone())
			for d := time.Sunday; d <= time.Saturday; d++ {
				for _, w := range weekly.Windows(d) {
					fmt.Fprintf(out, "  %s %s\n", schedule.DayCode(d), w)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "schedule", "", "Schedule JSON file")
	_ = cmd.MarkFlagRequired("schedule")
	return cmd
}

func loadSchedule(path string) (schedule.Weekly, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return schedule.Weekly{}, err
	}
	var f scheduleFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return schedule.Weekly{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return schedule.ParseWeekly(f.Availability, f.TimeZone)
}

func loadBookings(path string) ([]availability.Interval, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []bookingEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make([]availability.Interval, 0, len(entries))
	for _, e := range entries {
		out = append(out, availability.Interval{Start: e.Start, End: e.End})
	}
	return out, nil
}
