package sync

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testLogger struct {
	t *testing.T
}

func (l *testLogger) Log(format string, args ...interface{}) {
	l.t.Logf(format, args...)
}

func record(cidr string) *NetworkRecord {
	return &NetworkRecord{CIDR: cidr, SourceID: "src-" + cidr, EAs: map[string]string{}}
}

func cidrs(records []*NetworkRecord) []string {
	out := []string{}
	for _, r := range records {
		out = append(out, r.CIDR)
	}
	return out
}

func TestAnalyzeOverlapsContainment(t *testing.T) {
	records := []*NetworkRecord{
		record("10.0.0.0/16"),
		record("10.0.1.0/24"),
		record("10.0.2.0/24"),
		record("192.168.0.0/24"),
	}
	analysis := AnalyzeOverlaps(records, &testLogger{t})

	if !analysis.ContainerCIDRs["10.0.0.0/16"] {
		t.Errorf("Expected 10.0.0.0/16 to be marked as a container")
	}
	if analysis.ContainerCIDRs["192.168.0.0/24"] {
		t.Errorf("Did not expect 192.168.0.0/24 to be a container")
	}
	children := cidrs(analysis.Containments["10.0.0.0/16"])
	expected := []string{"10.0.1.0/24", "10.0.2.0/24"}
	if diff := cmp.Diff(expected, children); diff != "" {
		t.Errorf("Children of 10.0.0.0/16 did not match (-want +got):\n%s", diff)
	}
	if len(analysis.PartialOverlaps) != 0 {
		t.Errorf("Expected no partial overlaps, got %v", analysis.PartialOverlaps)
	}
	if len(analysis.Invalid) != 0 {
		t.Errorf("Expected no invalid records, got %v", analysis.Invalid)
	}
}

func TestAnalyzeOverlapsImmediateParentOnly(t *testing.T) {
	records := []*NetworkRecord{
		record("10.0.0.0/24"),
		record("10.0.0.0/8"),
		record("10.0.0.0/16"),
	}
	analysis := AnalyzeOverlaps(records, &testLogger{t})

	if !analysis.ContainerCIDRs["10.0.0.0/8"] || !analysis.ContainerCIDRs["10.0.0.0/16"] {
		t.Errorf("Expected both /8 and /16 to be containers, got %v", analysis.ContainerCIDRs)
	}
	if diff := cmp.Diff([]string{"10.0.0.0/16"}, cidrs(analysis.Containments["10.0.0.0/8"])); diff != "" {
		t.Errorf("Children of /8 did not match (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.0.0.0/24"}, cidrs(analysis.Containments["10.0.0.0/16"])); diff != "" {
		t.Errorf("Children of /16 did not match (-want +got):\n%s", diff)
	}
}

func TestAnalyzeOverlapsInvalidRecords(t *testing.T) {
	records := []*NetworkRecord{
		record("10.0.0.0/24"),
		record("10.0.0.5/24"),   // host bits set
		record("not-a-cidr"),    // unparseable
		record("2001:db8::/32"), // not IPv4
		record("10.0.0.0/24"),   // duplicate
	}
	analysis := AnalyzeOverlaps(records, &testLogger{t})

	if len(analysis.Invalid) != 4 {
		t.Fatalf("Expected 4 invalid records, got %d: %v", len(analysis.Invalid), analysis.Invalid)
	}
	// The surviving record has nothing to contain or overlap with.
	if len(analysis.ContainerCIDRs) != 0 || len(analysis.PartialOverlaps) != 0 {
		t.Errorf("Expected the valid record to be standalone, got containers %v overlaps %v",
			analysis.ContainerCIDRs, analysis.PartialOverlaps)
	}
}

func TestAnalyzeOverlapsDeterministic(t *testing.T) {
	records := []*NetworkRecord{
		record("10.0.0.0/16"),
		record("10.0.0.0/20"),
		record("10.0.1.0/24"),
		record("10.0.16.0/24"),
	}
	first := AnalyzeOverlaps(records, &testLogger{t})
	second := AnalyzeOverlaps(records, &testLogger{t})

	if diff := cmp.Diff(cidrs(first.Containments["10.0.0.0/16"]), cidrs(second.Containments["10.0.0.0/16"])); diff != "" {
		t.Errorf("Repeated analysis produced different children for /16:\n%s", diff)
	}
	// 10.0.1.0/24 sits inside both the /16 and the /20; only the /20 is its
	// immediate parent.
	if diff := cmp.Diff([]string{"10.0.1.0/24"}, cidrs(first.Containments["10.0.0.0/20"])); diff != "" {
		t.Errorf("Children of /20 did not match (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.0.0.0/20", "10.0.16.0/24"}, cidrs(first.Containments["10.0.0.0/16"])); diff != "" {
		t.Errorf("Children of /16 did not match (-want +got):\n%s", diff)
	}
}

func TestContainsAndIntersectsIntervals(t *testing.T) {
	// Valid CIDR blocks can only nest or be disjoint, so true partial
	// overlaps are constructed here at the interval level.
	interval := func(start, end uint32, prefixLen int) *parsedRecord {
		return &parsedRecord{start: start, end: end, prefixLen: prefixLen}
	}
	testCases := []struct {
		Name       string
		A, B       *parsedRecord
		AContainsB bool
		Intersects bool
	}{
		{Name: "Nested", A: interval(0, 255, 24), B: interval(0, 127, 25), AContainsB: true, Intersects: true},
		{Name: "Disjoint", A: interval(0, 255, 24), B: interval(512, 767, 24), AContainsB: false, Intersects: false},
		{Name: "Partial overlap", A: interval(0, 200, 24), B: interval(100, 300, 24), AContainsB: false, Intersects: true},
		{Name: "Equal ranges are not containment", A: interval(0, 255, 24), B: interval(0, 255, 24), AContainsB: false, Intersects: true},
		{Name: "Adjacent", A: interval(0, 255, 24), B: interval(256, 511, 24), AContainsB: false, Intersects: false},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			if got := tc.A.contains(tc.B); got != tc.AContainsB {
				t.Errorf("contains = %t, expected %t", got, tc.AContainsB)
			}
			if tc.AContainsB && tc.B.contains(tc.A) {
				t.Errorf("Containment must be asymmetric")
			}
			if got := tc.A.intersects(tc.B); got != tc.Intersects {
				t.Errorf("intersects = %t, expected %t", got, tc.Intersects)
			}
			// Intersection is symmetric regardless of comparison order.
			if tc.A.intersects(tc.B) != tc.B.intersects(tc.A) {
				t.Errorf("intersects must not depend on argument order")
			}
		})
	}
}

func TestAnalyzeOverlapsOrderIndependent(t *testing.T) {
	forward := []*NetworkRecord{
		record("10.0.0.0/16"),
		record("10.0.0.0/20"),
		record("10.0.1.0/24"),
		record("192.168.0.0/24"),
	}
	reversed := []*NetworkRecord{}
	for i := len(forward) - 1; i >= 0; i-- {
		reversed = append(reversed, record(forward[i].CIDR))
	}

	a := AnalyzeOverlaps(forward, &testLogger{t})
	b := AnalyzeOverlaps(reversed, &testLogger{t})

	if diff := cmp.Diff(a.ContainerCIDRs, b.ContainerCIDRs); diff != "" {
		t.Errorf("Container set changed with input order:\n%s", diff)
	}
	for cidr := range a.Containments {
		if diff := cmp.Diff(cidrs(a.Containments[cidr]), cidrs(b.Containments[cidr])); diff != "" {
			t.Errorf("Children of %s changed with input order:\n%s", cidr, diff)
		}
	}
	if len(a.Containments) != len(b.Containments) {
		t.Errorf("Containment map sizes differ: %d vs %d", len(a.Containments), len(b.Containments))
	}
	if len(a.PartialOverlaps) != len(b.PartialOverlaps) {
		t.Errorf("Overlap counts differ: %d vs %d", len(a.PartialOverlaps), len(b.PartialOverlaps))
	}
}

func TestIsSkippedForOverlap(t *testing.T) {
	analysis := &OverlapAnalysis{
		PartialOverlaps: []OverlapPair{
			{A: record("10.0.0.0/24"), B: record("10.0.0.128/25"), Message: "overlap"},
		},
	}
	if !analysis.IsSkippedForOverlap("10.0.0.0/24") {
		t.Errorf("Expected A side of the pair to be skipped")
	}
	if !analysis.IsSkippedForOverlap("10.0.0.128/25") {
		t.Errorf("Expected B side of the pair to be skipped")
	}
	if analysis.IsSkippedForOverlap("192.168.0.0/24") {
		t.Errorf("Did not expect an unrelated CIDR to be skipped")
	}
}
