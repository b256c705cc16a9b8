package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/giobale/dog-breed-explorer/backend/processing"
	"github.com/giobale/dog-breed-explorer/internal/models"
)

// printGraph writes every model in evaluation order with its materialization and inputs.
func printGraph(w io.Writer) error {
	project, err := processing.DefaultProject()
	if err != nil {
		return err
	}
	catalog, err := project.Catalog()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tMATERIALIZED\tINPUTS\tTESTS")
	for _, m := range catalog {
		inputs := "-"
		if len(m.Inputs) > 0 {
			inputs = strings.Join(m.Inputs, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", m.Name, m.Materialized, inputs, len(m.DataTests))
	}
	return tw.Flush()
}

// printRun writes a run summary followed by one line per step.
func printRun(w io.Writer, run *models.PipelineRun) {
	fmt.Fprintf(w, "run %s: %s %s\n", run.ID, run.Stage, run.Status)
	if run.LoadID != "" {
		fmt.Fprintf(w, "load %s: %d rows\n", run.LoadID, run.RowsLoaded)
	}
	if len(run.Steps) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tKIND\tSTATUS\tROWS\tMESSAGE")
	for _, s := range run.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.Name, s.Kind, s.Status, s.Rows, s.Message)
	}
	tw.Flush()
}
