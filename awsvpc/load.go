// Package awsvpc turns network inventory sources - VPC CSV exports, property
// file CSVs, and the EC2 API itself - into sync.NetworkRecord batches.
package awsvpc

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/netopsio/infoblox-sync/sync"
)

type Logger interface {
	Log(string, ...interface{})
}

func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Error opening %s: %s", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("Error reading header from %s: %s", path, err)
	}
	for idx := range header {
		header[idx] = strings.TrimSpace(header[idx])
	}

	rows := []map[string]string{}
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Error reading %s: %s", path, err)
		}
		row := map[string]string{}
		for idx, value := range fields {
			if idx < len(header) {
				row[header[idx]] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadVPCCSV loads an AWS VPC export. Expected columns: Name, VpcId,
// CidrBlock, Tags (a JSON or Python-repr tag list), and optionally AccountId
// and Region which are folded into the tag set.
func LoadVPCCSV(path string, logger Logger) ([]*sync.NetworkRecord, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	logger.Log("Loaded %d VPC records from %s", len(rows), path)

	records := []*sync.NetworkRecord{}
	for _, row := range rows {
		tags, err := sync.ParseTagString(row["Tags"])
		if err != nil {
			logger.Log("Error parsing tags for VPC %s: %s", row["VpcId"], err)
			tags = nil
		}
		for _, extra := range []string{"AccountId", "Region", "VpcId"} {
			if row[extra] != "" {
				tags = append(tags, sync.Tag{Key: extra, Value: row[extra]})
			}
		}
		name := row["Name"]
		if name == "" {
			name = "Unnamed VPC"
		}
		records = append(records, &sync.NetworkRecord{
			CIDR:     row["CidrBlock"],
			SourceID: row["VpcId"],
			Name:     name,
			Comment:  fmt.Sprintf("AWS VPC: %s (VPC ID: %s)", name, row["VpcId"]),
			RawTags:  tags,
			EAs:      sync.MapTagsToEAs(tags),
		})
	}
	return records, nil
}

// LoadPropertyCSV loads a property file. Each row carries site_id, m_host,
// and a prefixes column listing one or more CIDRs; rows expand one-to-many
// into independent records, one per prefix. Rows whose prefixes column does
// not parse are skipped with a log line, never fatal.
func LoadPropertyCSV(path string, clk clock.Clock, logger Logger) ([]*sync.NetworkRecord, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	logger.Log("Loaded %d property records from %s", len(rows), path)

	importDate := clk.Now().Format("2006-01-02 15:04:05")
	records := []*sync.NetworkRecord{}
	for _, row := range rows {
		siteID := row["site_id"]
		prefixes, err := parsePrefixList(row["prefixes"])
		if err != nil {
			logger.Log("Error parsing prefixes for site_id %s: %s", siteID, err)
			continue
		}
		for _, prefix := range prefixes {
			tags := []sync.Tag{
				{Key: "site_id", Value: siteID},
				{Key: "m_host", Value: row["m_host"]},
				{Key: "source", Value: "properties_file"},
				{Key: "import_date", Value: importDate},
			}
			records = append(records, &sync.NetworkRecord{
				CIDR:     prefix,
				SourceID: siteID,
				Name:     siteID,
				Comment:  fmt.Sprintf("Property site_id: %s, m_host: %s", siteID, row["m_host"]),
				RawTags:  tags,
				EAs: map[string]string{
					"site_id":     siteID,
					"m_host":      row["m_host"],
					"source":      "properties_file",
					"import_date": importDate,
				},
			})
		}
	}
	logger.Log("Expanded %d property records to %d network records", len(rows), len(records))
	return records, nil
}

// parsePrefixList accepts a bare CIDR, a comma-separated list, or a
// bracketed list with optional quoting ("['10.0.0.0/24', '10.1.0.0/24']").
func parsePrefixList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	prefixes := []string{}
	for _, piece := range strings.Split(s, ",") {
		piece = strings.Trim(strings.TrimSpace(piece), `'"`)
		if piece == "" {
			continue
		}
		if !strings.Contains(piece, "/") {
			return nil, fmt.Errorf("%q is not CIDR notation", piece)
		}
		prefixes = append(prefixes, piece)
	}
	return prefixes, nil
}
