// Command storefront is a headless checkout client for the streamvault API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"streamvault/internal/logging"
	"streamvault/pkg/checkout"
)

type options struct {
	apiURL   string
	logLevel string
	timeout  time.Duration
	sandbox  bool
	logger   *slog.Logger
}

func (o *options) client() *checkout.Client {
	return checkout.NewClient(o.apiURL, o.timeout)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Browse packages and pay for a subscription from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = logging.New("development", opts.logLevel, logOut).
				With("command", cmd.CommandPath(), "correlation_id", uuid.NewString())
		},
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("STOREFRONT_API_URL", "http://localhost:8099"), "storefront API base URL")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "HTTP timeout per request")
	root.PersistentFlags().BoolVar(&opts.sandbox, "sandbox", os.Getenv("GATEWAY_SANDBOX") == "true", "server runs sandbox gateways")

	root.AddCommand(
		newPackagesCmd(opts),
		newQuoteCmd(opts),
		newConfigCmd(opts),
		newCouponCmd(opts),
		newCheckoutCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
