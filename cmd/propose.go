package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/zte-adk/pkg/engine"
	"github.com/user/zte-adk/pkg/report"
)

func writeSARIFFile(path string, findings []engine.Finding) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteSARIF(f, findings); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (rt *appRuntime) sink() (report.Sink, error) {
	if bucket := rt.cfg.Report.S3Bucket; bucket != "" {
		s, err := report.NewS3Sink(bucket, rt.cfg.Report.S3Region)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return &report.FileSink{Dir: rt.cfg.Report.Dir}, nil
}

func (rt *appRuntime) reportBuilder(project, region string) *report.Builder {
	b := &report.Builder{Project: project, Region: region}
	if rem, err := engine.NewDefaultRemediationEngine(); err != nil {
		rt.log.Warn("remediation templates unavailable", "error", err)
	} else {
		b.Remediation = rem
	}
	if comp, err := engine.NewDefaultComplianceEngine(); err != nil {
		rt.log.Warn("compliance profiles unavailable", "error", err)
	} else {
		b.Compliance = comp
	}
	return b
}

// proposeFixes builds and stores the remediation report for a job
func proposeFixes(ctx context.Context, rt *appRuntime, jobID string, ids []string, project, region string) (report.Report, string, error) {
	findings, err := rt.jobFindings(ctx, jobID, ids)
	if err != nil {
		return report.Report{}, "", err
	}
	if len(findings) == 0 {
		return report.Report{}, "", fmt.Errorf("no findings for job %s", jobID)
	}

	synth := rt.synthesizer(ctx)
	proposal := synth.GenerateFixProposal(ctx, findings)
	summary := synth.GenerateScanSummary(ctx, findings)
	rep := rt.reportBuilder(project, region).Build(jobID, findings, proposal, &summary)

	sink, err := rt.sink()
	if err != nil {
		return rep, "", err
	}
	location, err := sink.Write(ctx, rep)
	if errors.Is(err, report.ErrReportExists) {
		return rep, "", fmt.Errorf("job %s already has a report", jobID)
	}
	if err != nil {
		return rep, "", fmt.Errorf("failed to store report: %w", err)
	}
	rt.log.Info("report stored", "job_id", jobID, "location", location)
	return rep, location, nil
}

var proposeCmd = &cobra.Command{
	Use:   "propose <job-id>",
	Short: "Propose fixes for a job's findings and store the remediation report",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ids, _ := cmd.Flags().GetStringSlice("finding")
		sarifPath, _ := cmd.Flags().GetString("sarif")

		withRuntime("propose", func(ctx context.Context, rt *appRuntime) error {
			_, region, project := scanTarget(cmd, rt.cfg)
			rep, location, err := proposeFixes(ctx, rt, args[0], ids, project, region)
			if err != nil {
				return err
			}
			if sarifPath != "" {
				if err := writeSARIFFile(sarifPath, rep.Findings); err != nil {
					return err
				}
			}
			if OutputJSON {
				return printJSON(rep)
			}
			fmt.Printf("Report for job %s: %s\n", rep.JobID, location)
			fmt.Printf("Findings: %d, overall risk %s\n\n", rep.Summary.TotalFindings, rep.Summary.OverallRisk)
			printProposal(rep.AIProposals)
			return nil
		})
	},
}

func init() {
	proposeCmd.Flags().StringSlice("finding", nil, "Only these finding ids (default: all findings of the job)")
	proposeCmd.Flags().String("sarif", "", "Also write the findings as SARIF to this file")
	proposeCmd.Flags().StringP("region", "r", "", "Region used in remediation commands")
	proposeCmd.Flags().StringP("project", "p", "", "GCP project id used in remediation commands")

	rootCmd.AddCommand(proposeCmd)
}
