package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/veedubyou/stem-splitter/src/server/application"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/lib/logging"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

type failureOutput struct {
	Status string                `json:"status"`
	JobID  string                `json:"job_id"`
	Kind   separationerrors.Kind `json:"error_kind"`
	Detail string                `json:"error_detail"`
}

func newSeparateCommand(ctx *commandContext) *cobra.Command {
	var modelName string
	var twoStems string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "separate <filename>",
		Short: "Separate one uploaded file in process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			components, err := application.NewComponents(cfg)
			if err != nil {
				return err
			}
			defer components.Close()

			job, sepErr := components.Separator.Separate(cmd.Context(), separationentity.SeparationRequest{
				Filename:  args[0],
				ModelName: modelName,
				TwoStems:  twoStems,
			})

			asJSON := jsonOutput || !logging.IsTerminal(os.Stdout)
			if sepErr != nil {
				cerr.Log(sepErr)
				if asJSON {
					if err := writeJSON(cmd, failureOutput{
						Status: string(job.Status),
						JobID:  job.ID,
						Kind:   job.Error.Kind,
						Detail: job.Error.Detail,
					}); err != nil {
						return err
					}
				}
				return errors.Wrapf(sepErr, "separation failed (%s)", job.Error.Kind)
			}

			if asJSON {
				return writeJSON(cmd, job.Result())
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderResult(job))
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Separation model, defaults to tool.default_model")
	cmd.Flags().StringVar(&twoStems, "two-stems", "", "Split into this stem and everything else")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	return cmd
}

func renderResult(job *separationentity.Job) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(fmt.Sprintf("Job %s: %s", job.ID, job.FinalOutputPath))
	tw.AppendHeader(table.Row{"Stem", "Download"})

	urls := map[string]string{}
	for _, download := range job.Downloads {
		urls[download.Name] = download.URL
	}

	for _, stem := range job.StemFiles {
		tw.AppendRow(table.Row{stem, urls[stem]})
	}

	return tw.Render()
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
