package sync

import (
	"fmt"
	"net"
	"strings"

	"github.com/netopsio/infoblox-sync/infoblox"
)

// Bucket is the classification outcome for one record after existence
// checking. Every record lands in exactly one bucket per run.
type Bucket string

const (
	BucketMatched    Bucket = "matched"
	BucketDiscrepant Bucket = "discrepant"
	BucketMissing    Bucket = "missing"
	BucketContainer  Bucket = "container"
	BucketError      Bucket = "error"
)

// Classified pairs a record with what the grid knows about it. Existing is
// nil for the Missing and Error buckets; Err is set only for BucketError.
type Classified struct {
	Record   *NetworkRecord
	Existing *infoblox.ExistenceResult
	Err      error
}

// Buckets holds one reconciliation pass's classification of every record.
type Buckets struct {
	Matched    []*Classified
	Discrepant []*Classified
	Missing    []*Classified
	Containers []*Classified
	Errors     []*Classified
}

func (b *Buckets) MissingRecords() []*NetworkRecord {
	records := make([]*NetworkRecord, 0, len(b.Missing))
	for _, c := range b.Missing {
		records = append(records, c.Record)
	}
	return records
}

type Reconciler struct {
	IPAM   infoblox.Client
	Logger Logger
}

// eaEqual requires identical key sets and byte-equal values; a key present
// on only one side is a discrepancy.
func eaEqual(mapped, stored map[string]string) bool {
	if len(mapped) != len(stored) {
		return false
	}
	for key, mappedValue := range mapped {
		storedValue, ok := stored[key]
		if !ok || mappedValue != storedValue {
			return false
		}
	}
	return true
}

// isNotFoundError matches lookup failures that are really the store's way of
// reporting a missing object. Best-effort string inspection, kept because
// the WAPI does not return structured codes for this case.
func isNotFoundError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}

func validateCIDR(cidr string) error {
	ip, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("Invalid CIDR %q: %s", cidr, err)
	}
	if ip.To4() == nil {
		return fmt.Errorf("Invalid CIDR %q: not an IPv4 network", cidr)
	}
	if !ip.Equal(network.IP) {
		return fmt.Errorf("Invalid CIDR %q: host bits set", cidr)
	}
	return nil
}

// Classify checks one record against the grid and assigns its bucket. The
// lookup is always fresh; results are never reused across records because a
// creation earlier in the run may have changed the store.
func (r *Reconciler) Classify(record *NetworkRecord, view string) (Bucket, *Classified) {
	if err := validateCIDR(record.CIDR); err != nil {
		return BucketError, &Classified{Record: record, Err: err}
	}

	existing, err := r.IPAM.CheckNetworkOrContainer(record.CIDR, view)
	if err != nil {
		if isNotFoundError(err) {
			r.Logger.Log("Network %s (%s) appears to not exist in InfoBlox", record.CIDR, record.SourceID)
			return BucketMissing, &Classified{Record: record}
		}
		r.Logger.Log("Error processing record %s (%s): %s", record.CIDR, record.SourceID, err)
		return BucketError, &Classified{Record: record, Err: err}
	}

	switch existing.State {
	case infoblox.Absent:
		return BucketMissing, &Classified{Record: record}
	case infoblox.ExistsAsContainer:
		return BucketContainer, &Classified{Record: record, Existing: existing}
	}

	classified := &Classified{Record: record, Existing: existing}
	if eaEqual(record.EAs, existing.ExtAttrs) {
		return BucketMatched, classified
	}
	r.Logger.Log("Network %s (%s) has extensible attribute discrepancies", record.CIDR, record.SourceID)
	return BucketDiscrepant, classified
}

// Reconcile classifies every record in the batch. Per-record failures are
// captured in the Errors bucket and never abort the pass.
func (r *Reconciler) Reconcile(records []*NetworkRecord, view string) *Buckets {
	buckets := &Buckets{}
	for _, record := range records {
		bucket, classified := r.Classify(record, view)
		switch bucket {
		case BucketMatched:
			buckets.Matched = append(buckets.Matched, classified)
		case BucketDiscrepant:
			buckets.Discrepant = append(buckets.Discrepant, classified)
		case BucketMissing:
			buckets.Missing = append(buckets.Missing, classified)
		case BucketContainer:
			buckets.Containers = append(buckets.Containers, classified)
		case BucketError:
			buckets.Errors = append(buckets.Errors, classified)
		}
	}
	return buckets
}

// FixDiscrepancyResult is the outcome of one attribute repair attempt.
type FixDiscrepancyResult struct {
	Record   *NetworkRecord
	WouldFix bool
	Fixed    bool
	Err      error
}

// FixDiscrepancies pushes the mapped extensible attributes onto every
// discrepant network. In dry-run mode it only reports what would change.
func (r *Reconciler) FixDiscrepancies(discrepant []*Classified, dryRun bool) []*FixDiscrepancyResult {
	results := []*FixDiscrepancyResult{}
	for _, c := range discrepant {
		if dryRun {
			r.Logger.Log("DRY RUN: Would update extensible attributes for %s", c.Record.CIDR)
			results = append(results, &FixDiscrepancyResult{Record: c.Record, WouldFix: true})
			continue
		}
		err := r.IPAM.UpdateExtAttrs(c.Existing.Ref, c.Record.EAs)
		if err != nil {
			r.Logger.Log("Failed to update extensible attributes for %s: %s", c.Record.CIDR, err)
			results = append(results, &FixDiscrepancyResult{Record: c.Record, Err: err})
			continue
		}
		r.Logger.Log("Updated extensible attributes for %s", c.Record.CIDR)
		results = append(results, &FixDiscrepancyResult{Record: c.Record, Fixed: true})
	}
	return results
}
