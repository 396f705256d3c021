package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/zte-adk/pkg/engine"
	"github.com/user/zte-adk/pkg/queue"
	"github.com/user/zte-adk/pkg/store"
)

const interactiveHelp = `Commands:
  scan <service> [project] [region]   scan a Cloud Run service
  jobs                                list scan jobs
  findings <job-id>                   list a job's findings, ranked
  explain <finding-id>                explain one finding
  summary <job-id>                    executive summary of a job
  propose <job-id>                    propose fixes and store the report
  diff <baseline-job-id> <job-id>     compare two scans
  help                                show this help
  quit | exit                         leave the session`

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start an interactive session over scans and findings",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		rt, err := newRuntime(ctx, "interactive")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer rt.Close()

		snapshotPath, _ := cmd.Flags().GetString("snapshot")
		resolver, err := rt.newResolver(ctx, snapshotPath)
		if err != nil {
			fmt.Printf("Error creating resolver: %v\n", err)
			return
		}
		processor := rt.processor(resolver)

		synth := rt.synthesizer(ctx)
		fmt.Println("\n---------------------------------------------------------")
		if synth.Enabled() {
			fmt.Printf("ZTE-ADK session ready (model: %s).\n", synth.Model())
		} else {
			fmt.Println("ZTE-ADK session ready (AI disabled, deterministic analysis).")
		}
		fmt.Println("Type 'help' for commands, 'quit' or 'exit' to stop.")
		fmt.Println("---------------------------------------------------------")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("\n> ")
			if !scanner.Scan() {
				break
			}
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "quit" || fields[0] == "exit" {
				break
			}
			if err := runInteractive(ctx, rt, processor, fields); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	},
}

func runInteractive(ctx context.Context, rt *appRuntime, processor *queue.Processor, fields []string) error {
	verb, args := fields[0], fields[1:]
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s); type 'help'", verb, n)
		}
		return nil
	}

	switch verb {
	case "help":
		fmt.Println(interactiveHelp)
	case "scan":
		if err := need(1); err != nil {
			return err
		}
		project, region := rt.cfg.Scanner.DefaultProject, rt.cfg.Scanner.DefaultRegion
		if len(args) > 1 {
			project = args[1]
		}
		if len(args) > 2 {
			region = args[2]
		}
		if region == "" {
			region = queue.DefaultRegion
		}
		result, err := processor.Process(ctx, queue.NewScanRequest(args[0], region, project, time.Now()))
		if err != nil {
			return err
		}
		fmt.Printf("Job %s: %d findings\n", result.JobID, len(result.Findings))
		printFindings(result.Findings)
	case "jobs":
		jobs, err := rt.store.ListJobs(ctx, 20)
		if err != nil {
			return err
		}
		printJobs(jobs)
	case "findings":
		if err := need(1); err != nil {
			return err
		}
		findings, err := rt.store.Query(ctx, args[0], store.QueryOptions{Ranked: true})
		if err != nil {
			return err
		}
		printFindings(findings)
	case "explain":
		if err := need(1); err != nil {
			return err
		}
		fmt.Print("Analyzing... ")
		e, err := explainFinding(ctx, rt, args[0])
		fmt.Print("\r\033[K")
		if err != nil {
			return err
		}
		printExplanation(e)
	case "summary":
		if err := need(1); err != nil {
			return err
		}
		s, err := summarizeJob(ctx, rt, args[0])
		if err != nil {
			return err
		}
		printSummary(s)
	case "propose":
		if err := need(1); err != nil {
			return err
		}
		rep, location, err := proposeFixes(ctx, rt, args[0], nil, rt.cfg.Scanner.DefaultProject, rt.cfg.Scanner.DefaultRegion)
		if err != nil {
			return err
		}
		fmt.Printf("Report stored at %s\n\n", location)
		printProposal(rep.AIProposals)
	case "diff":
		if err := need(2); err != nil {
			return err
		}
		baseline, err := rt.store.Query(ctx, args[0], store.QueryOptions{})
		if err != nil {
			return err
		}
		current, err := rt.store.Query(ctx, args[1], store.QueryOptions{})
		if err != nil {
			return err
		}
		diff := engine.CompareFindings(baseline, current)
		fmt.Printf("New: %d, fixed: %d, unchanged: %d\n", len(diff.New), len(diff.Fixed), len(diff.Unchanged))
		printFindings(diff.New)
	default:
		return fmt.Errorf("unknown command %q; type 'help'", verb)
	}
	return nil
}

func init() {
	interactiveCmd.Flags().String("snapshot", "", "Resolve scans from this snapshot file instead of the Cloud Run API")
	rootCmd.AddCommand(interactiveCmd)
}
