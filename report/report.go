// Package report writes the text, CSV, and Markdown artifacts produced
// after a sync run.
package report

import (
	"encoding/csv"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/projectdiscovery/mapcidr"

	"github.com/netopsio/infoblox-sync/sync"
)

// StatusReport renders the reconciliation outcome as a plain-text report.
func StatusReport(buckets *sync.Buckets, view string, dryRun bool, now time.Time) string {
	report := []string{}
	line := func(format string, args ...interface{}) {
		report = append(report, fmt.Sprintf(format, args...))
	}

	line(strings.Repeat("=", 80))
	line("NETWORK INVENTORY TO INFOBLOX SYNC REPORT")
	line(strings.Repeat("=", 80))
	line("Generated: %s", now.Format("2006-01-02 15:04:05"))
	mode := "LIVE"
	if dryRun {
		mode = "DRY RUN"
	}
	line("Mode: %s", mode)
	line("Network View: %s", view)
	line("")

	line("SUMMARY")
	line(strings.Repeat("-", 40))
	line("Total Matching Networks: %d", len(buckets.Matched))
	line("Total Missing Networks: %d", len(buckets.Missing))
	line("Total Networks with EA Discrepancies: %d", len(buckets.Discrepant))
	line("Total Networks Existing as Containers: %d", len(buckets.Containers))
	line("Total Errors: %d", len(buckets.Errors))
	line("")

	if len(buckets.Missing) > 0 {
		line("MISSING NETWORKS (Not in InfoBlox)")
		line(strings.Repeat("-", 40))
		for _, c := range buckets.Missing {
			line("  CIDR: %s (%s addresses)", c.Record.CIDR, addressCount(c.Record.CIDR))
			line("    Source: %s", c.Record.SourceID)
		}
		line("")
	}

	if len(buckets.Discrepant) > 0 {
		line("NETWORKS WITH EA DISCREPANCIES")
		line(strings.Repeat("-", 40))
		for _, c := range buckets.Discrepant {
			line("  CIDR: %s", c.Record.CIDR)
			line("    Source: %s", c.Record.SourceID)
			line("    Mapped EAs: %v", c.Record.EAs)
			line("    InfoBlox EAs: %v", c.Existing.ExtAttrs)
		}
		line("")
	}

	if len(buckets.Containers) > 0 {
		line("NETWORKS EXISTING AS CONTAINERS")
		line(strings.Repeat("-", 40))
		for _, c := range buckets.Containers {
			line("  CIDR: %s (Container)", c.Record.CIDR)
			line("    Source: %s", c.Record.SourceID)
		}
		line("")
	}

	if len(buckets.Errors) > 0 {
		line("ERRORS")
		line(strings.Repeat("-", 40))
		for _, c := range buckets.Errors {
			line("  CIDR: %s", c.Record.CIDR)
			line("    Error: %s", c.Err)
		}
		line("")
	}

	return strings.Join(report, "\n") + "\n"
}

func addressCount(cidr string) string {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return "?"
	}
	return fmt.Sprintf("%d", mapcidr.AddressCountIpnet(network))
}

// CreationReport appends the materialization outcome to the text report.
func CreationReport(outcomes []*sync.CreationOutcome, analysis *sync.OverlapAnalysis, dryRun bool) string {
	report := []string{}
	line := func(format string, args ...interface{}) {
		report = append(report, fmt.Sprintf(format, args...))
	}

	line("")
	line(strings.Repeat("=", 80))
	line("NETWORK CREATION REPORT")
	line(strings.Repeat("=", 80))

	verb := "CREATED"
	if dryRun {
		verb = "WOULD CREATE"
	}

	containers := filterByBase(outcomes, sync.CreatedContainer)
	if len(containers) > 0 {
		line("")
		line("%s CONTAINERS:", verb)
		for _, o := range containers {
			line("  - %s (source: %s, contains %d networks)", o.Record.CIDR, o.Record.SourceID, len(analysis.Containments[o.Record.CIDR]))
		}
	}

	networks := filterByBase(outcomes, sync.CreatedNetwork)
	if len(networks) > 0 {
		line("")
		line("%s NETWORKS:", verb)
		for _, o := range networks {
			line("  - %s (source: %s)", o.Record.CIDR, o.Record.SourceID)
		}
	}

	skipped := filterByBase(outcomes, sync.SkippedOverlap)
	if len(skipped) > 0 {
		line("")
		line("SKIPPED DUE TO OVERLAPS:")
		for _, o := range skipped {
			line("  - %s", o.Record.CIDR)
		}
		for _, pair := range analysis.PartialOverlaps {
			line("  * %s", pair.Message)
		}
	}

	failed := filterByBase(outcomes, sync.Failed)
	if len(failed) > 0 {
		line("")
		line("FAILED:")
		for _, o := range failed {
			line("  - %s (%s): %s", o.Record.CIDR, o.Category, o.Err)
		}
	}

	return strings.Join(report, "\n") + "\n"
}

func filterByBase(outcomes []*sync.CreationOutcome, base sync.CreationAction) []*sync.CreationOutcome {
	matched := []*sync.CreationOutcome{}
	for _, o := range outcomes {
		if o.Action.Base() == base {
			matched = append(matched, o)
		}
	}
	return matched
}

// MarkdownSummary renders the run as a short Markdown table for wikis.
func MarkdownSummary(buckets *sync.Buckets, outcomes []*sync.CreationOutcome, view string, dryRun bool, now time.Time) string {
	var b strings.Builder
	mode := "live"
	if dryRun {
		mode = "dry run"
	}
	fmt.Fprintf(&b, "# InfoBlox Sync Summary\n\n")
	fmt.Fprintf(&b, "Generated %s against view `%s` (%s).\n\n", now.Format("2006-01-02 15:04:05"), view, mode)
	fmt.Fprintf(&b, "| Bucket | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| Matched | %d |\n", len(buckets.Matched))
	fmt.Fprintf(&b, "| EA discrepancies | %d |\n", len(buckets.Discrepant))
	fmt.Fprintf(&b, "| Missing | %d |\n", len(buckets.Missing))
	fmt.Fprintf(&b, "| Existing containers | %d |\n", len(buckets.Containers))
	fmt.Fprintf(&b, "| Errors | %d |\n", len(buckets.Errors))
	if outcomes != nil {
		fmt.Fprintf(&b, "\n| Creation outcome | Count |\n|---|---|\n")
		counts := map[sync.CreationAction]int{}
		order := []sync.CreationAction{sync.CreatedContainer, sync.CreatedNetwork, sync.AlreadyExisted, sync.SkippedOverlap, sync.SkippedInvalid, sync.Failed}
		for _, o := range outcomes {
			counts[o.Action.Base()]++
		}
		for _, action := range order {
			fmt.Fprintf(&b, "| %s | %d |\n", action, counts[action])
		}
	}
	return b.String()
}

// Writer persists report artifacts under a reports directory with
// timestamped names.
type Writer struct {
	Dir string
	Now time.Time
}

func (w *Writer) path(name, ext string, dryRun bool) string {
	suffix := ""
	if dryRun {
		suffix = "_dryrun"
	}
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%s%s.%s", name, w.Now.Format("20060102_150405"), suffix, ext))
}

func (w *Writer) write(path, content string) (string, error) {
	err := os.MkdirAll(w.Dir, 0755)
	if err != nil {
		return "", fmt.Errorf("Error creating reports directory: %s", err)
	}
	err = os.WriteFile(path, []byte(content), 0644)
	if err != nil {
		return "", fmt.Errorf("Error writing %s: %s", path, err)
	}
	return path, nil
}

func (w *Writer) WriteStatusReport(content string, dryRun bool) (string, error) {
	return w.write(w.path("network_status_report", "txt", dryRun), content)
}

func (w *Writer) WriteMarkdownSummary(content string, dryRun bool) (string, error) {
	return w.write(w.path("sync_summary", "md", dryRun), content)
}

func (w *Writer) writeCSV(path string, header []string, rows [][]string) (string, error) {
	err := os.MkdirAll(w.Dir, 0755)
	if err != nil {
		return "", fmt.Errorf("Error creating reports directory: %s", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("Error creating %s: %s", path, err)
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	err = cw.Write(header)
	if err != nil {
		return "", fmt.Errorf("Error writing %s: %s", path, err)
	}
	for _, row := range rows {
		err = cw.Write(row)
		if err != nil {
			return "", fmt.Errorf("Error writing %s: %s", path, err)
		}
	}
	cw.Flush()
	return path, cw.Error()
}

// WriteCreationCSVs writes the creation-errors, already-existed, and EA
// update failure CSVs for any outcomes in those states. Returns the paths
// written.
func (w *Writer) WriteCreationCSVs(outcomes []*sync.CreationOutcome) ([]string, error) {
	written := []string{}

	errorRows := [][]string{}
	existedRows := [][]string{}
	eaFailureRows := [][]string{}
	for _, o := range outcomes {
		switch {
		case o.Action == sync.Failed:
			errorRows = append(errorRows, []string{o.Record.CIDR, o.Record.SourceID, string(o.Category), o.Err.Error()})
		case o.Action == sync.AlreadyExisted && o.UpdateErr != nil:
			eaFailureRows = append(eaFailureRows, []string{o.Record.CIDR, o.Record.SourceID, o.UpdateErr.Error()})
		case o.Action == sync.AlreadyExisted:
			existedRows = append(existedRows, []string{o.Record.CIDR, o.Record.SourceID})
		}
	}

	if len(errorRows) > 0 {
		path, err := w.writeCSV(w.path("network_creation_errors", "csv", false),
			[]string{"cidr", "source_id", "category", "error"}, errorRows)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if len(existedRows) > 0 {
		path, err := w.writeCSV(w.path("networks_already_existed", "csv", false),
			[]string{"cidr", "source_id"}, existedRows)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if len(eaFailureRows) > 0 {
		path, err := w.writeCSV(w.path("ea_update_failures", "csv", false),
			[]string{"cidr", "source_id", "error"}, eaFailureRows)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
