package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/user/zte-adk/pkg/queue"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Write a scan request message (JSON line) for the consume command",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}
		service, region, project := scanTarget(cmd, cfg)
		out, _ := cmd.Flags().GetString("out")

		var w io.Writer = os.Stdout
		if out != "" && out != "-" {
			f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
			if err != nil {
				fmt.Printf("Error opening %s: %v\n", out, err)
				return
			}
			defer f.Close()
			w = f
		}

		req := queue.NewScanRequest(service, region, project, time.Now())
		if err := queue.NewPublisher(w).Publish(req); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		if w != os.Stdout {
			fmt.Printf("Queued job %s for %s\n", req.JobID, service)
		}
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Process scan request messages (JSON lines) from a file or stdin",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx, "consume")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer rt.Close()

		input, _ := cmd.Flags().GetString("file")
		workers, _ := cmd.Flags().GetInt("workers")
		snapshotPath, _ := cmd.Flags().GetString("snapshot")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		var r io.Reader = os.Stdin
		if input != "" && input != "-" {
			f, err := os.Open(input)
			if err != nil {
				fmt.Printf("Error opening %s: %v\n", input, err)
				return
			}
			defer f.Close()
			r = f
		}

		if metricsAddr != "" {
			srv := &http.Server{
				Addr:              metricsAddr,
				Handler:           promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				rt.log.Info("serving metrics", "addr", metricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					rt.log.Error("metrics server failed", "error", err)
				}
			}()
			defer srv.Close()
		}

		resolver, err := rt.newResolver(ctx, snapshotPath)
		if err != nil {
			fmt.Printf("Error creating resolver: %v\n", err)
			return
		}

		consumer := &queue.Consumer{
			Processor:      rt.processor(resolver),
			Workers:        workers,
			DefaultRegion:  rt.cfg.Scanner.DefaultRegion,
			DefaultProject: rt.cfg.Scanner.DefaultProject,
			Logger:         rt.log.Named("consumer"),
		}
		if !OutputJSON {
			consumer.OnResult = func(res queue.ScanResult, err error) {
				if err != nil {
					fmt.Printf("FAIL %s %s: %v\n", res.JobID, res.ServiceName, err)
					return
				}
				fmt.Printf("OK   %s %s: %d findings\n", res.JobID, res.ServiceName, len(res.Findings))
			}
		}

		stats, err := consumer.Run(ctx, r)
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Printf("Error reading messages: %v\n", err)
		}
		if OutputJSON {
			if err := printJSON(stats); err != nil {
				fmt.Printf("Error encoding stats: %v\n", err)
			}
			return
		}
		fmt.Printf("Processed %d, failed %d, malformed %d, findings stored %d\n",
			stats.Processed, stats.Failed, stats.Malformed, stats.Findings)
	},
}

func init() {
	addTargetFlags(enqueueCmd)
	enqueueCmd.Flags().StringP("out", "o", "-", "Queue file to append to ('-' for stdout)")

	consumeCmd.Flags().StringP("file", "f", "-", "Queue file to read ('-' for stdin)")
	consumeCmd.Flags().IntP("workers", "w", 4, "Requests processed in parallel")
	consumeCmd.Flags().String("snapshot", "", "Resolve every request from this snapshot file")
	consumeCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(consumeCmd)
}
