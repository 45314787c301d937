package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/journal-platform/internal/genclient"
)

var entryIDs []string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Submit entries for a new report and wait for the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(entryIDs) == 0 {
			return errors.New("at least one --entry is required")
		}
		return follow(cmd, func(ctx context.Context, c *genclient.Controller) error {
			return c.Generate(ctx, entryIDs)
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Resume following the active job, or show the cached result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return follow(cmd, nil)
	},
}

func init() {
	generateCmd.Flags().StringSliceVarP(&entryIDs, "entry", "e", nil, "journal entry id (repeatable)")
}

// follow mounts the controller, optionally starts a job, and prints progress
// until the job settles or the user interrupts.
func follow(cmd *cobra.Command, start func(context.Context, *genclient.Controller) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.close()
	ctrl := sess.ctrl

	out := cmd.OutOrStdout()
	done := make(chan genclient.State, 1)
	var mu sync.Mutex
	lastStep := -1
	ctrl.Subscribe(func(s genclient.State) {
		mu.Lock()
		defer mu.Unlock()
		if s.IsGenerating && s.Step != lastStep {
			lastStep = s.Step
			fmt.Fprintf(out, "generating... step %d/%d (job %s)\n", s.Step, genclient.StepDone, s.JobID)
		}
		if settled(s) {
			select {
			case done <- s:
			default:
			}
		}
	})

	if err := ctrl.Mount(ctx); err != nil {
		return err
	}
	if start != nil {
		if err := start(ctx, ctrl); err != nil {
			if msg := ctrl.State().Error; msg != "" {
				return errors.New(msg)
			}
			return err
		}
	}

	s := ctrl.State()
	if !settled(s) {
		if !s.IsGenerating {
			fmt.Fprintln(out, "no report generation in progress")
			return nil
		}
		select {
		case s = <-done:
		case <-ctx.Done():
			fmt.Fprintln(out, "stopped following; run \"reportctl watch\" to resume")
			return nil
		}
	}
	return printOutcome(cmd, s)
}

func settled(s genclient.State) bool {
	return !s.IsGenerating && (s.Result != nil || s.Error != "")
}

func printOutcome(cmd *cobra.Command, s genclient.State) error {
	if s.Error != "" {
		return fmt.Errorf("report generation failed: %s", s.Error)
	}
	out := cmd.OutOrStdout()
	if p := s.Result.Period; p != nil {
		fmt.Fprintf(out, "Report for %s - %s\n\n", p.Start, p.End)
	}
	fmt.Fprintln(out, s.Result.Report)
	return nil
}
