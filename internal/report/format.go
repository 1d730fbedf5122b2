package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/classifier/internal/records"
)

// Formats accepted by Write
const (
	FormatText = "text"
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Write renders the report in the given format
func Write(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return writeText(w, r)
	case FormatYAML:
		return writeYAML(w, r)
	case FormatJSON:
		return writeJSON(w, r)
	case FormatCSV:
		return writeCSV(w, r)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeText(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "Sample:  %s\n", r.Sample)
	fmt.Fprintf(w, "Objects: %d\n", r.Objects)
	fmt.Fprintln(w)

	if len(r.Raters) == 0 {
		fmt.Fprintln(w, "No rater files found.")
		return nil
	}

	headers := []string{"Rater", "Records", "Coverage", "Low", "Med", "High", "Mean", "Species"}
	headers = append(headers, records.ProloculousValues...)
	rows := make([][]string, 0, len(r.Raters))
	for _, s := range r.Raters {
		row := []string{
			s.Initials,
			strconv.Itoa(s.Records),
			percent(s.Coverage),
			strconv.Itoa(s.Confidence[records.ConfidenceLow]),
			strconv.Itoa(s.Confidence[records.ConfidenceMed]),
			strconv.Itoa(s.Confidence[records.ConfidenceHigh]),
			fmt.Sprintf("%.2f", s.MeanConfidence),
			strconv.Itoa(s.Species),
		}
		for _, p := range records.ProloculousValues {
			row = append(row, strconv.Itoa(s.Proloculous[p]))
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(w, RenderTable(headers, rows))

	if len(r.Agreement) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Pairwise agreement:")
		rows = rows[:0]
		for _, p := range r.Agreement {
			rows = append(rows, []string{p.A, p.B, strconv.Itoa(p.Shared), strconv.Itoa(p.Agreed), percent(p.Rate)})
		}
		fmt.Fprintln(w, RenderTable([]string{"Rater", "Rater", "Shared", "Agreed", "Rate"}, rows))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Consensus across %d raters: %d unanimous, %d disagreements\n",
		r.Consensus.Raters, r.Consensus.Unanimous, r.Consensus.Disagreements)

	return nil
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// RenderTable draws rows under headers; every column after the first is right aligned
func RenderTable(headers []string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignRight
		if i == 0 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func writeYAML(w io.Writer, r *Report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return encoder.Close()
}

func writeJSON(w io.Writer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// writeCSV writes one row per rater
func writeCSV(w io.Writer, r *Report) error {
	writer := csv.NewWriter(w)

	header := []string{"Sample", "Rater", "Records", "Coverage", "Low", "Med", "High", "Mean Confidence", "Species"}
	header = append(header, records.ProloculousValues...)
	if err := writer.Write(header); err != nil {
		return err
	}

	raters := append([]RaterStats(nil), r.Raters...)
	sort.Slice(raters, func(i, j int) bool {
		return raters[i].Initials < raters[j].Initials
	})

	for _, s := range raters {
		row := []string{
			r.Sample,
			s.Initials,
			strconv.Itoa(s.Records),
			fmt.Sprintf("%.4f", s.Coverage),
			strconv.Itoa(s.Confidence[records.ConfidenceLow]),
			strconv.Itoa(s.Confidence[records.ConfidenceMed]),
			strconv.Itoa(s.Confidence[records.ConfidenceHigh]),
			fmt.Sprintf("%.4f", s.MeanConfidence),
			strconv.Itoa(s.Species),
		}
		for _, p := range records.ProloculousValues {
			row = append(row, strconv.Itoa(s.Proloculous[p]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
