package cli

import (
	"encoding/json"
	"io"

	"github.com/olekukonko/tablewriter"
	"go.wireprobe.io/wireprobe/pkg/render"
	"gopkg.in/yaml.v3"
)

// writeReport prints a per-item report. JSON and YAML encode records as is;
// every other format gets a table of rows.
func writeReport(w io.Writer, format render.Format, records any, header []string, rows [][]string) error {
	switch format {
	case render.JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case render.YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	}

	table := tablewriter.NewWriter(w)
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	table.Header(headerCells...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
