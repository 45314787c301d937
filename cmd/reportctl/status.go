package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/journal-platform/internal/genclient"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Print the server-side status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api := genclient.NewHTTPAPI(apiURL, token, 30*time.Second)
		st, err := api.Status(cmd.Context(), args[0])
		if errors.Is(err, genclient.ErrNotFound) {
			return fmt.Errorf("job %s not found", args[0])
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the active job and cached result",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()
		if err := sess.ctrl.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cleared")
		return nil
	},
}
