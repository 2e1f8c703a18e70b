package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/qs3c/slide_review_server/internal/database"
	"github.com/qs3c/slide_review_server/internal/repository"
	"github.com/qs3c/slide_review_server/internal/verify"
)

var errVerificationFailed = errors.New("verification found errors")

func newVerifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check stored review data against slide geometry and session rules",
	}
	cmd.AddCommand(newVerifyAlignmentCmd(a), newVerifySessionsCmd(a))
	return cmd
}

func newVerifyAlignmentCmd(a *app) *cobra.Command {
	var (
		imageID    string
		reportPath string
		samples    int
	)

	cmd := &cobra.Command{
		Use:   "alignment",
		Short: "Verify lattice math and stored clicks for one slide",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, cleanup, err := a.verifier()
			if err != nil {
				return err
			}
			defer cleanup()
			if samples > 0 {
				v.SetSamples(samples)
			}

			report, err := v.Alignment(cmd.Context(), imageID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "image %s: %d grids, %d events, %d clicks checked\n",
				report.ImageID, len(report.Grids), report.EventsChecked, report.ClicksChecked)
			return finishReport(out, reportPath, report, &report.Findings)
		},
	}

	cmd.Flags().StringVar(&imageID, "image", "", "Slide identifier")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the YAML report to this file instead of stdout")
	cmd.Flags().IntVar(&samples, "samples", verify.DefaultAlignmentSamples, "Cells sampled per magnification for the round trip check")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func newVerifySessionsCmd(a *app) *cobra.Command {
	var (
		imageID    string
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Verify required events and attempt ordering for review sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, cleanup, err := a.verifier()
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := v.Sessions(cmd.Context(), imageID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d sessions (%d completed), %d events, %d cell clicks\n",
				report.Totals.Sessions, report.Totals.Completed, report.Totals.Events, report.Totals.CellClicks)
			return finishReport(out, reportPath, report, &report.Findings)
		},
	}

	cmd.Flags().StringVar(&imageID, "image", "", "Only check sessions for this slide")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the YAML report to this file instead of stdout")

	return cmd
}

func (a *app) verifier() (*verify.Verifier, func(), error) {
	db, err := a.openDB()
	if err != nil {
		return nil, nil, err
	}
	manifests, err := a.manifests()
	if err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}

	v := verify.NewVerifier(
		repository.NewSessionRepository(db),
		repository.NewEventRepository(db),
		manifests,
	)
	return v, func() { _ = database.Close(db) }, nil
}

// finishReport 输出报告，存在错误级发现时返回非 nil
func finishReport(out io.Writer, reportPath string, report any, f *verify.Findings) error {
	fmt.Fprintf(out, "%d errors, %d warnings\n", len(f.Errors), len(f.Warnings))

	if reportPath != "" {
		if err := verify.WriteYAMLFile(reportPath, report); err != nil {
			return err
		}
		fmt.Fprintf(out, "report written to %s\n", reportPath)
	} else if err := verify.WriteYAML(out, report); err != nil {
		return err
	}

	if !f.OK() {
		return errVerificationFailed
	}
	return nil
}
