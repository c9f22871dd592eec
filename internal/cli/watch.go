package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/mailtap/common/logging"
	"github.com/telhawk-systems/mailtap/internal/monitor"
	"github.com/telhawk-systems/mailtap/internal/provider"
	"github.com/telhawk-systems/mailtap/pkg/output"
)

const teardownTimeout = 30 * time.Second

// ErrNoEmail is returned when the wait budget ran out without a delivery.
var ErrNoEmail = errors.New("no email received")

// deliveryView is a delivery in json and yaml output.
type deliveryView struct {
	Recipient  string    `json:"recipient" yaml:"recipient"`
	Bucket     string    `json:"bucket" yaml:"bucket"`
	ObjectKey  string    `json:"object_key" yaml:"object_key"`
	MessageID  string    `json:"message_id" yaml:"message_id"`
	ReceivedAt time.Time `json:"received_at" yaml:"received_at"`
	Content    string    `json:"content" yaml:"content"`
}

var watchCmd = &cobra.Command{
	Use:   "watch <recipient>",
	Short: "Wait for the next email to a recipient",
	Long: `Monitor a recipient and print the next email delivered to it.

The email is written to stdout as stored (raw MIME) unless --output is json or
yaml. With --follow, mailtap keeps waiting and prints every email until
interrupted. The temporary queue and subscription are always removed.`,
	Example: `  mailtap watch feed1@example.com --timeout 60
  mailtap watch feed1@example.com --follow --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Int("timeout", 0, "seconds to wait for each email (default: poll.timeout_seconds)")
	watchCmd.Flags().Bool("follow", false, "keep waiting for further emails")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (default: metrics.addr)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	recipient := args[0]
	flags := cmd.Flags()

	timeout := cfg.Poll.TimeoutSeconds
	if flags.Changed("timeout") {
		timeout, _ = flags.GetInt("timeout")
	}
	follow, _ := flags.GetBool("follow")
	metricsAddr := cfg.Metrics.Addr
	if flags.Changed("metrics-addr") {
		metricsAddr, _ = flags.GetString("metrics-addr")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithWatchID(ctx, uuid.NewString())

	svc, err := loadService(ctx)
	if err != nil {
		return err
	}
	var monitored bool
	defer func() {
		// The watch context may already be cancelled; teardown still has to run.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		defer cancel()
		if err := svc.Close(closeCtx); err != nil {
			logger.ErrorContext(closeCtx, "teardown incomplete", logging.Error(err))
			output.Warn("Some resources for %s may need manual cleanup: %v", recipient, err)
			return
		}
		if monitored {
			output.Success("Removed queue and subscription for %s", recipient)
		}
	}()

	if !svc.Exists(recipient) {
		return fmt.Errorf("%s is not a recipient of rule sets %v", recipient, cfg.RuleSets)
	}

	if metricsAddr != "" {
		srv := serveMetrics(ctx, metricsAddr)
		defer srv.Close()
	}

	monitored = true
	if err := svc.Monitor(ctx, recipient); err != nil {
		if !errors.Is(err, provider.ErrDegraded) {
			return err
		}
		output.Warn("Monitor for %s is degraded: %v", recipient, err)
	}

	output.Info("Waiting for email to %s", recipient)
	for {
		d, err := svc.Next(ctx, recipient, timeout)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, monitor.ErrNotMonitored):
			return fmt.Errorf("cannot receive email for %s: %w", recipient, err)
		case err != nil:
			output.Warn("%v", err)
			if !follow {
				return err
			}
			continue
		case d == nil:
			if follow {
				continue
			}
			return fmt.Errorf("%w for %s within %ds", ErrNoEmail, recipient, timeout)
		}

		if err := printDelivery(cmd, d); err != nil {
			return err
		}
		if !follow {
			return nil
		}
	}
}

func printDelivery(cmd *cobra.Command, d *monitor.Delivery) error {
	format := outputFormat(cmd)
	if format == output.FormatTable {
		_, err := fmt.Fprint(os.Stdout, d.Content)
		return err
	}

	view := deliveryView{
		Recipient:  d.Recipient,
		Bucket:     d.Bucket,
		ObjectKey:  d.ObjectKey,
		MessageID:  d.MessageID,
		ReceivedAt: d.ReceivedAt,
		Content:    d.Content,
	}
	return output.Print(format, view, nil)
}

func serveMetrics(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "metrics server failed", slog.String("addr", addr), logging.Error(err))
		}
	}()
	return srv
}
