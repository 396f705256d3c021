package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/user/zte-adk/pkg/engine"
	"github.com/user/zte-adk/pkg/store"
	"github.com/user/zte-adk/pkg/synthesis"
)

// withRuntime runs fn with a runtime named after the command and prints its error
func withRuntime(name string, fn func(ctx context.Context, rt *appRuntime) error) {
	ctx := context.Background()
	rt, err := newRuntime(ctx, name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer rt.Close()
	if err := fn(ctx, rt); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func queryOptions(cmd *cobra.Command) (store.QueryOptions, error) {
	var opts store.QueryOptions
	opts.Ranked, _ = cmd.Flags().GetBool("ranked")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	if raw, _ := cmd.Flags().GetString("severity"); raw != "" {
		sev, err := engine.ParseSeverity(raw)
		if err != nil {
			return opts, err
		}
		opts.Severity = &sev
	}
	return opts, nil
}

var findingsCmd = &cobra.Command{
	Use:   "findings <job-id>",
	Short: "List the findings of a scan job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRuntime("findings", func(ctx context.Context, rt *appRuntime) error {
			opts, err := queryOptions(cmd)
			if err != nil {
				return err
			}
			findings, err := rt.store.Query(ctx, args[0], opts)
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("sarif"); path != "" {
				if err := writeSARIFFile(path, findings); err != nil {
					return err
				}
				fmt.Printf("SARIF written to %s\n", path)
			}
			if OutputJSON {
				return printJSON(findings)
			}
			printFindings(findings)
			return nil
		})
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List scan jobs with per-severity counts",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		withRuntime("jobs", func(ctx context.Context, rt *appRuntime) error {
			jobs, err := rt.store.ListJobs(ctx, limit)
			if err != nil {
				return err
			}
			if OutputJSON {
				return printJSON(jobs)
			}
			printJobs(jobs)
			return nil
		})
	},
}

func explainFinding(ctx context.Context, rt *appRuntime, id string) (synthesis.Explanation, error) {
	f, err := rt.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return synthesis.Explanation{}, fmt.Errorf("finding %s not found", id)
	}
	if err != nil {
		return synthesis.Explanation{}, err
	}
	return rt.synthesizer(ctx).GenerateExplanation(ctx, f), nil
}

var explainCmd = &cobra.Command{
	Use:   "explain <finding-id>",
	Short: "Explain one finding: blast radius, risk, priority and urgency",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRuntime("explain", func(ctx context.Context, rt *appRuntime) error {
			e, err := explainFinding(ctx, rt, args[0])
			if err != nil {
				return err
			}
			if OutputJSON {
				return printJSON(e)
			}
			printExplanation(e)
			return nil
		})
	},
}

func summarizeJob(ctx context.Context, rt *appRuntime, jobID string) (synthesis.Summary, error) {
	findings, err := rt.jobFindings(ctx, jobID, nil)
	if err != nil {
		return synthesis.Summary{}, err
	}
	return rt.synthesizer(ctx).GenerateScanSummary(ctx, findings), nil
}

var summaryCmd = &cobra.Command{
	Use:   "summary <job-id>",
	Short: "Executive summary of a scan job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withRuntime("summary", func(ctx context.Context, rt *appRuntime) error {
			s, err := summarizeJob(ctx, rt, args[0])
			if err != nil {
				return err
			}
			if OutputJSON {
				return printJSON(s)
			}
			printSummary(s)
			return nil
		})
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <baseline-job-id> <job-id>",
	Short: "Compare two scans: new, fixed and unchanged findings",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withRuntime("diff", func(ctx context.Context, rt *appRuntime) error {
			baseline, err := rt.store.Query(ctx, args[0], store.QueryOptions{})
			if err != nil {
				return err
			}
			current, err := rt.store.Query(ctx, args[1], store.QueryOptions{})
			if err != nil {
				return err
			}
			diff := engine.CompareFindings(baseline, current)
			if OutputJSON {
				return printJSON(diff)
			}
			fmt.Printf("New (%d):\n", len(diff.New))
			printFindings(diff.New)
			fmt.Printf("\nFixed (%d):\n", len(diff.Fixed))
			printFindings(diff.Fixed)
			fmt.Printf("\nUnchanged: %d\n", len(diff.Unchanged))
			return nil
		})
	},
}

func init() {
	findingsCmd.Flags().String("severity", "", "Only this severity (critical, high, medium, low)")
	findingsCmd.Flags().Bool("ranked", false, "Order by severity and risk score instead of newest first")
	findingsCmd.Flags().IntP("limit", "n", 0, "Maximum findings to return (0 for all)")
	findingsCmd.Flags().String("sarif", "", "Also write the findings as SARIF to this file")

	jobsCmd.Flags().IntP("limit", "n", 20, "Maximum jobs to list")

	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(diffCmd)
}
