package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/journal-platform/internal/genclient"
)

var errNoResult = errors.New("no finished report to save; run \"reportctl generate\" first")

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Store the finished report and clear it from the client state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.close()

		tabs := genclient.NewTabSync(sess.bus, func() {}, false)
		defer tabs.Close()

		id, err := saveResult(ctx, sess.ctrl, sess.api, tabs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved report %s\n", id)
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print a line whenever another client changes journal data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if redisAddr == "" {
			return errors.New("listen needs --redis-addr")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.close()

		out := cmd.OutOrStdout()
		tabs := genclient.NewTabSync(sess.bus, func() { fmt.Fprintln(out, "data changed, refresh") }, true)
		if err := tabs.Start(ctx); err != nil {
			return err
		}
		defer tabs.Close()

		<-ctx.Done()
		return nil
	},
}

type reportSaver interface {
	SaveReport(ctx context.Context, st *genclient.JobStatus) (string, error)
}

// saveResult stores the cached result as a permanent report, tells sibling
// clients their report lists are out of date, and drops the cached result.
func saveResult(ctx context.Context, ctrl *genclient.Controller, saver reportSaver, tabs *genclient.TabSync) (string, error) {
	if err := ctrl.Sync(ctx); err != nil {
		return "", err
	}
	res := ctrl.State().Result
	if res == nil {
		return "", errNoResult
	}
	id, err := saver.SaveReport(ctx, res)
	if err != nil {
		return "", err
	}
	tabs.BroadcastUpdate(ctx)
	if err := ctrl.Clear(ctx); err != nil {
		return id, err
	}
	return id, nil
}
