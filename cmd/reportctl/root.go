package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/journal-platform/internal/genclient"
	"github.com/suPer8Hu/journal-platform/internal/logging"
	"github.com/suPer8Hu/journal-platform/internal/store/redisstore"
)

var (
	apiURL    string
	token     string
	stateFile string
	redisAddr string
	namespace string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "Generate weekly reports from journal entries",
	Long: `reportctl submits report generation jobs to the journal API and follows
them to completion. The active job and its result are persisted, so an
interrupted run can be resumed with "reportctl watch".

With --redis-addr the state is shared with every other client of the same
namespace and progress is synchronised between them.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel, "text")
	},
}

func init() {
	home, _ := os.UserHomeDir()

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("JOURNAL_API", "http://localhost:8080"), "journal API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("JOURNAL_TOKEN"), "bearer token (default: $JOURNAL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state", filepath.Join(home, ".journal", "report_state.json"), "file holding the active job and result")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "share state through redis instead of --state")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "default", "redis namespace, usually the user id")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(generateCmd, watchCmd, statusCmd, clearCmd, saveCmd, listenCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// session bundles what a command needs to talk to the server and to
// sibling clients.
type session struct {
	api   *genclient.HTTPAPI
	ctrl  *genclient.Controller
	// bus is nil unless --redis-addr is set.
	bus   genclient.Bus
	close func()
}

// openSession builds a controller over file or redis storage.
func openSession(ctx context.Context) (*session, error) {
	api := genclient.NewHTTPAPI(apiURL, token, 30*time.Second)

	if redisAddr == "" {
		ctrl := genclient.NewController(api, genclient.NewFileStorage(stateFile))
		return &session{api: api, ctrl: ctrl, close: ctrl.Close}, nil
	}

	store := redisstore.New(redisAddr, "", 0)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	bus := genclient.NewJSONBus(store.Bus(genclient.SyncChannel + ":" + namespace))
	ctrl := genclient.NewController(api, store.ClientStorage(namespace), genclient.WithBus(bus))
	closeAll := func() {
		ctrl.Close()
		_ = store.Close()
	}
	return &session{api: api, ctrl: ctrl, bus: bus, close: closeAll}, nil
}
