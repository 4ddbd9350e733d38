package sync

import (
	"fmt"
	"net"
	"sort"

	"github.com/projectdiscovery/mapcidr"
)

// OverlapPair records two networks whose address ranges intersect without
// either containing the other. Such pairs cannot be represented
// hierarchically and neither side may be created.
type OverlapPair struct {
	A       *NetworkRecord
	B       *NetworkRecord
	Message string
}

// InvalidRecord is a record excluded from analysis with the reason why.
type InvalidRecord struct {
	Record *NetworkRecord
	Reason string
}

// OverlapAnalysis is the result of analyzing one batch of candidate
// networks for containment and overlap relationships.
type OverlapAnalysis struct {
	// ContainerCIDRs holds every CIDR that strictly contains at least one
	// other CIDR in the batch and so must be created as a network container.
	ContainerCIDRs map[string]bool
	// Containments maps a container CIDR to its immediate children, sorted
	// by ascending prefix length. A grandchild appears only under its
	// closest enclosing container, not under every ancestor.
	Containments map[string][]*NetworkRecord
	// PartialOverlaps lists pairs that intersect without nesting.
	PartialOverlaps []OverlapPair
	// Invalid lists records excluded from pairwise comparison: unparseable
	// CIDRs and duplicate CIDRs within the batch.
	Invalid []InvalidRecord
}

// IsSkippedForOverlap reports whether the CIDR appears in any partial
// overlap pair.
func (a *OverlapAnalysis) IsSkippedForOverlap(cidr string) bool {
	for _, pair := range a.PartialOverlaps {
		if pair.A.CIDR == cidr || pair.B.CIDR == cidr {
			return true
		}
	}
	return false
}

type parsedRecord struct {
	record    *NetworkRecord
	prefixLen int
	start     uint32
	end       uint32
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}

func parseRecordCIDR(record *NetworkRecord) (*parsedRecord, error) {
	ip, network, err := net.ParseCIDR(record.CIDR)
	if err != nil {
		return nil, fmt.Errorf("Invalid CIDR %q: %s", record.CIDR, err)
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("Invalid CIDR %q: not an IPv4 network", record.CIDR)
	}
	if !ip.Equal(network.IP) {
		return nil, fmt.Errorf("Invalid CIDR %q: host bits set", record.CIDR)
	}
	first, last, err := mapcidr.AddressRange(network)
	if err != nil {
		return nil, fmt.Errorf("Invalid CIDR %q: %s", record.CIDR, err)
	}
	prefixLen, _ := network.Mask.Size()
	return &parsedRecord{
		record:    record,
		prefixLen: prefixLen,
		start:     ipToUint32(first),
		end:       ipToUint32(last),
	}, nil
}

// contains reports whether a strictly contains b. Equal ranges do not count
// as containment.
func (a *parsedRecord) contains(b *parsedRecord) bool {
	if a.start == b.start && a.end == b.end {
		return false
	}
	return a.start <= b.start && b.end <= a.end
}

func (a *parsedRecord) intersects(b *parsedRecord) bool {
	return a.start <= b.end && b.start <= a.end
}

// AnalyzeOverlaps computes pairwise containment and overlap relationships
// for a batch of candidate networks. Deterministic: given the same input
// order it always produces the same analysis.
func AnalyzeOverlaps(records []*NetworkRecord, logger Logger) *OverlapAnalysis {
	analysis := &OverlapAnalysis{
		ContainerCIDRs: map[string]bool{},
		Containments:   map[string][]*NetworkRecord{},
	}

	parsed := []*parsedRecord{}
	seen := map[string]bool{}
	for _, record := range records {
		p, err := parseRecordCIDR(record)
		if err != nil {
			logger.Log("Excluding record %s (%s): %s", record.CIDR, record.SourceID, err)
			analysis.Invalid = append(analysis.Invalid, InvalidRecord{Record: record, Reason: err.Error()})
			continue
		}
		if seen[record.CIDR] {
			reason := fmt.Sprintf("Duplicate CIDR %s in batch", record.CIDR)
			logger.Log("Excluding record %s (%s): %s", record.CIDR, record.SourceID, reason)
			analysis.Invalid = append(analysis.Invalid, InvalidRecord{Record: record, Reason: reason})
			continue
		}
		seen[record.CIDR] = true
		parsed = append(parsed, p)
	}

	// Consider larger blocks first so containers surface before their
	// children; the pairwise checks themselves are order-independent.
	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].prefixLen < parsed[j].prefixLen
	})

	// parent tracks the closest enclosing container found so far for each
	// contained CIDR.
	parent := map[string]*parsedRecord{}
	for i, a := range parsed {
		for _, b := range parsed[i+1:] {
			switch {
			case a.contains(b):
				analysis.ContainerCIDRs[a.record.CIDR] = true
				best, ok := parent[b.record.CIDR]
				if !ok || a.prefixLen > best.prefixLen {
					parent[b.record.CIDR] = a
				}
				logger.Log("Network %s contains %s - marking as container", a.record.CIDR, b.record.CIDR)
			case a.intersects(b):
				pair := OverlapPair{
					A:       a.record,
					B:       b.record,
					Message: fmt.Sprintf("Networks %s and %s partially overlap", a.record.CIDR, b.record.CIDR),
				}
				analysis.PartialOverlaps = append(analysis.PartialOverlaps, pair)
				logger.Log("Partial overlap detected between %s and %s", a.record.CIDR, b.record.CIDR)
			}
		}
	}

	for _, p := range parsed {
		container, ok := parent[p.record.CIDR]
		if ok {
			analysis.Containments[container.record.CIDR] = append(analysis.Containments[container.record.CIDR], p.record)
		}
	}
	// Children were appended in ascending-prefix-length iteration order, so
	// each list is already largest-first; keep the guarantee explicit.
	for cidr := range analysis.Containments {
		children := analysis.Containments[cidr]
		sort.SliceStable(children, func(i, j int) bool {
			return prefixLength(children[i].CIDR) < prefixLength(children[j].CIDR)
		})
	}
	return analysis
}

func prefixLength(cidr string) int {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return 32
	}
	length, _ := network.Mask.Size()
	return length
}
