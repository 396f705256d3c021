package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/zte-adk/pkg/cloudrun"
	"github.com/user/zte-adk/pkg/config"
	"github.com/user/zte-adk/pkg/queue"
)

// scanTarget reads --service/--region/--project, falling back to config defaults
func scanTarget(cmd *cobra.Command, cfg *config.Config) (service, region, project string) {
	service, _ = cmd.Flags().GetString("service")
	region, _ = cmd.Flags().GetString("region")
	project, _ = cmd.Flags().GetString("project")
	if region == "" {
		region = cfg.Scanner.DefaultRegion
	}
	if region == "" {
		region = queue.DefaultRegion
	}
	if project == "" {
		project = cfg.Scanner.DefaultProject
	}
	return service, region, project
}

// newResolver reads facts from a saved snapshot when one is given, else from the Cloud Run API
func (rt *appRuntime) newResolver(ctx context.Context, snapshotPath string) (queue.Resolver, error) {
	if snapshotPath != "" {
		snap, err := cloudrun.LoadSnapshot(snapshotPath)
		if err != nil {
			return nil, err
		}
		rt.log.Debug("resolving from snapshot", "path", snapshotPath)
		return &cloudrun.SnapshotResolver{Snapshot: snap}, nil
	}
	f, err := cloudrun.NewFetcher(ctx, rt.log.Named("cloudrun"))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (rt *appRuntime) processor(resolver queue.Resolver) *queue.Processor {
	return &queue.Processor{
		Resolver: resolver,
		Engine:   rt.engine(),
		Store:    rt.store,
		Logger:   rt.log.Named("processor"),
		Metrics:  rt.metrics,
	}
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan one Cloud Run service and store its findings",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		rt, err := newRuntime(ctx, "scan")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer rt.Close()

		service, region, project := scanTarget(cmd, rt.cfg)
		jobID, _ := cmd.Flags().GetString("job-id")
		snapshotPath, _ := cmd.Flags().GetString("snapshot")

		req := queue.NewScanRequest(service, region, project, time.Now())
		if jobID != "" {
			req.JobID = jobID
		}

		resolver, err := rt.newResolver(ctx, snapshotPath)
		if err != nil {
			fmt.Printf("Error creating resolver: %v\n", err)
			return
		}

		result, err := rt.processor(resolver).Process(ctx, req)
		if err != nil {
			fmt.Printf("Error scanning %s: %v\n", service, err)
			if result.Stored == 0 {
				return
			}
		}

		if OutputJSON {
			if err := printJSON(result); err != nil {
				fmt.Printf("Error encoding result: %v\n", err)
			}
			return
		}
		fmt.Printf("Job %s: %d findings for %s (%d stored)\n", result.JobID, len(result.Findings), result.ServiceName, result.Stored)
		if result.SkippedBindings > 0 {
			fmt.Printf("Skipped %d bindings without a role\n", result.SkippedBindings)
		}
		printFindings(result.Findings)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save a service definition and IAM policy as a snapshot for offline scans",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		rt, err := newRuntime(ctx, "export")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer rt.Close()

		service, region, project := scanTarget(cmd, rt.cfg)
		out, _ := cmd.Flags().GetString("out")
		if service == "" || project == "" || out == "" {
			fmt.Println("Error: --service, --project and --out are required")
			return
		}

		f, err := cloudrun.NewFetcher(ctx, rt.log.Named("cloudrun"))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := f.SaveSnapshot(ctx, project, region, service, out); err != nil {
			fmt.Printf("Error exporting %s: %v\n", service, err)
			return
		}
		fmt.Printf("Snapshot written to %s\n", out)
	},
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("service", "s", "", "Cloud Run service name")
	cmd.Flags().StringP("region", "r", "", "Region (default from config, then us-central1)")
	cmd.Flags().StringP("project", "p", "", "GCP project id (default from config)")
}

func init() {
	addTargetFlags(scanCmd)
	scanCmd.Flags().String("job-id", "", "Scan job id (default: new UUID)")
	scanCmd.Flags().String("snapshot", "", "Read facts from a snapshot file instead of the Cloud Run API")

	addTargetFlags(exportCmd)
	exportCmd.Flags().StringP("out", "o", "", "Snapshot file to write")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(exportCmd)
}
