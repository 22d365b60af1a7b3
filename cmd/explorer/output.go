package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/olids/explorer/internal/domain/records"
	"github.com/olids/explorer/internal/domain/timeline"
	"github.com/olids/explorer/internal/platform/db"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// detailColumns are tried in order to label a record in table output.
var detailColumns = []string{
	"practice_name",
	"mapped_concept_display",
	"condition_name",
	"national_slot_category_name",
	"ethnicity_subcategory",
	"gender",
}

type timelineOptions struct {
	Identifier string
	Type       string
	Range      string
	Format     string
	Monthly    bool
	Out        io.Writer
	Err        io.Writer
}

// detectFormat falls back to a table on a terminal and JSON when piped.
func detectFormat(requested string) string {
	if requested != "" {
		return requested
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return formatTable
	}
	return formatJSON
}

func runTimeline(ctx context.Context, svc *timeline.Service, opts timelineOptions) error {
	if opts.Format != formatTable && opts.Format != formatJSON {
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
	rt, err := timeline.ParseRecordType(opts.Type)
	if err != nil {
		return err
	}
	rng, err := timeline.ParseRange(opts.Range, svc.Now())
	if err != nil {
		return err
	}

	id, err := svc.ResolveIdentifier(ctx, opts.Identifier)
	if err != nil {
		return err
	}

	tl, err := svc.BuildTimeline(ctx, id, rt, rng)
	var integrity *timeline.DataIntegrityError
	switch {
	case errors.As(err, &integrity):
		for _, w := range integrity.Warnings() {
			fmt.Fprintf(opts.Err, "warning: %s\n", w)
		}
	case err != nil:
		return err
	}

	if opts.Monthly {
		past := tl.CurrentSnapshot().Past
		months := timeline.MergeByMonthWithin(past, rng.From, rng.To)
		if opts.Format == formatJSON {
			return writeJSON(opts.Out, months)
		}
		return renderMonths(opts.Out, months)
	}
	if opts.Format == formatJSON {
		return writeJSON(opts.Out, tl)
	}
	return renderTimeline(opts.Out, tl)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTimeline(w io.Writer, tl *timeline.Timeline) error {
	table := tablewriter.NewTable(w)
	table.Header("Status", "Key", "From", "To", "Detail")
	for _, r := range tl.Records {
		if err := table.Append(
			string(r.Status),
			r.GroupKey,
			records.FormatDate(&r.EffectiveFrom, false),
			records.FormatDate(r.EffectiveTo, false),
			detail(r.Payload),
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d %s record(s) for %s\n", len(tl.Records), tl.RecordType, tl.Patient)
	return nil
}

func renderMonths(w io.Writer, months []timeline.MonthBucket) error {
	table := tablewriter.NewTable(w)
	table.Header("Month", "Count")
	for _, m := range months {
		if err := table.Append(m.Label, strconv.Itoa(m.Count)); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderMigrations(w io.Writer, statuses []db.MigrationStatus) error {
	table := tablewriter.NewTable(w)
	table.Header("Version", "Name", "Status", "Applied At")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		if err := table.Append(strconv.Itoa(s.Version), s.Name, status, appliedAt); err != nil {
			return err
		}
	}
	return table.Render()
}

func detail(row timeline.Row) string {
	for _, col := range detailColumns {
		if v := row.String(col); v != "" {
			return v
		}
	}
	return ""
}
