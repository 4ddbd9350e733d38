package sync

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/netopsio/infoblox-sync/testhelpers"
	"github.com/netopsio/infoblox-sync/testmocks"
)

func missingBatch() []*NetworkRecord {
	return []*NetworkRecord{
		recordWithEnv("10.0.0.0/16", ""),
		recordWithEnv("10.0.1.0/24", "prod"),
		recordWithEnv("10.0.2.0/24", "dev"),
		recordWithEnv("192.168.0.0/24", ""),
	}
}

func materialize(t *testing.T, mock *testmocks.MockInfoblox, missing []*NetworkRecord, dryRun bool) []*CreationOutcome {
	analysis := AnalyzeOverlaps(missing, &testLogger{t})
	ordered := Schedule(missing, analysis)
	materializer := &Materializer{IPAM: mock, Logger: &testLogger{t}}
	return materializer.MaterializeMissing(ordered, analysis, "default", dryRun)
}

func baseActions(outcomes []*CreationOutcome) map[string]CreationAction {
	actions := map[string]CreationAction{}
	for _, o := range outcomes {
		actions[o.Record.CIDR] = o.Action.Base()
	}
	return actions
}

func TestMaterializeMissing(t *testing.T) {
	mock := &testmocks.MockInfoblox{}
	outcomes := materialize(t, mock, missingBatch(), false)

	expected := map[string]CreationAction{
		"10.0.0.0/16":    CreatedContainer,
		"10.0.1.0/24":    CreatedNetwork,
		"10.0.2.0/24":    CreatedNetwork,
		"192.168.0.0/24": CreatedNetwork,
	}
	if diff := cmp.Diff(expected, baseActions(outcomes)); diff != "" {
		t.Errorf("Actions did not match (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.0.0.0/16"}, mock.ContainersCreated); diff != "" {
		t.Errorf("Containers created did not match (-want +got):\n%s", diff)
	}
	// Outcomes come back in creation order, container first.
	if outcomes[0].Record.CIDR != "10.0.0.0/16" {
		t.Errorf("Expected the container first, got %s", outcomes[0].Record.CIDR)
	}
	for _, o := range outcomes {
		if o.Ref == "" {
			t.Errorf("Expected a reference for created object %s", o.Record.CIDR)
		}
	}
}

func TestMaterializeDryRunParity(t *testing.T) {
	dry := materialize(t, &testmocks.MockInfoblox{}, missingBatch(), true)
	live := materialize(t, &testmocks.MockInfoblox{}, missingBatch(), false)

	if !cmp.Equal(baseActions(live), baseActions(dry)) {
		t.Errorf("Dry-run actions did not match live actions:\n%s",
			testhelpers.ObjectGoPrintSideBySide(baseActions(live), baseActions(dry)))
	}
	for i := range dry {
		if dry[i].Record.CIDR != live[i].Record.CIDR {
			t.Errorf("Dry-run order diverged at %d: %s vs %s", i, dry[i].Record.CIDR, live[i].Record.CIDR)
		}
	}
}

func TestMaterializeDryRunIsReadOnly(t *testing.T) {
	mock := &testmocks.MockInfoblox{}
	materialize(t, mock, missingBatch(), true)

	if len(mock.NetworksCreated) != 0 || len(mock.ContainersCreated) != 0 || len(mock.ExtAttrsUpdated) != 0 {
		t.Errorf("Dry run mutated the grid: networks=%v containers=%v updates=%v",
			mock.NetworksCreated, mock.ContainersCreated, mock.ExtAttrsUpdated)
	}
}

func TestMaterializeAlreadyExists(t *testing.T) {
	// The network appeared between classification and creation. The attempt
	// must degrade to an attribute update, not a failure.
	mock := &testmocks.MockInfoblox{
		Networks: map[string]*testmocks.MockObject{
			"10.0.1.0/24": {Ref: "network/existing", ExtAttrs: map[string]string{"owner": "bob"}},
		},
	}
	missing := []*NetworkRecord{{
		CIDR: "10.0.1.0/24", SourceID: "vpc-1",
		EAs: map[string]string{"owner": "alice"},
	}}
	outcomes := materialize(t, mock, missing, false)

	if len(outcomes) != 1 || outcomes[0].Action != AlreadyExisted {
		t.Fatalf("Expected an already-existed outcome, got %+v", outcomes)
	}
	if outcomes[0].UpdateErr != nil {
		t.Errorf("Unexpected update error: %s", outcomes[0].UpdateErr)
	}
	if mock.ExtAttrsUpdated["network/existing"]["owner"] != "alice" {
		t.Errorf("Expected attributes pushed onto the existing object, got %v", mock.ExtAttrsUpdated)
	}
}

func TestMaterializeAlreadyExistsUpdateFailure(t *testing.T) {
	mock := &testmocks.MockInfoblox{
		Networks: map[string]*testmocks.MockObject{
			"10.0.1.0/24": {Ref: "network/existing", ExtAttrs: map[string]string{}},
		},
		UpdateExtAttrsError: errors.New("Got status 403 from InfoBlox"),
	}
	missing := []*NetworkRecord{{CIDR: "10.0.1.0/24", SourceID: "vpc-1", EAs: map[string]string{"owner": "alice"}}}
	outcomes := materialize(t, mock, missing, false)

	if len(outcomes) != 1 || outcomes[0].Action != AlreadyExisted || outcomes[0].UpdateErr == nil {
		t.Errorf("Expected already-existed with an update error, got %+v", outcomes)
	}
}

func TestMaterializeFailureCategories(t *testing.T) {
	testCases := []struct {
		Name     string
		Err      error
		Expected FailureCategory
	}{
		{"Permission denied", errors.New("Permission denied for this operation"), CategoryPermission},
		{"Parent conflict", errors.New("The network 10.0.1.0/24 has a parent 10.0.0.0/16"), CategoryOverlap},
		{"Unknown failure", errors.New("Something unexpected happened"), CategoryUnknown},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			mock := &testmocks.MockInfoblox{
				CreateNetworkError: map[string]error{"10.0.1.0/24": tc.Err},
			}
			missing := []*NetworkRecord{{CIDR: "10.0.1.0/24", SourceID: "vpc-1", EAs: map[string]string{}}}
			outcomes := materialize(t, mock, missing, false)
			if len(outcomes) != 1 || outcomes[0].Action != Failed {
				t.Fatalf("Expected a failed outcome, got %+v", outcomes)
			}
			if outcomes[0].Category != tc.Expected {
				t.Errorf("Category = %s, expected %s", outcomes[0].Category, tc.Expected)
			}
			if outcomes[0].Err == nil {
				t.Errorf("Failed outcome must carry the error")
			}
		})
	}
}

func TestMaterializeSkipsOverlapsWithoutCalling(t *testing.T) {
	mock := &testmocks.MockInfoblox{}
	overlapping := record("10.0.0.0/24")
	analysis := &OverlapAnalysis{
		ContainerCIDRs: map[string]bool{},
		Containments:   map[string][]*NetworkRecord{},
		PartialOverlaps: []OverlapPair{
			{A: overlapping, B: record("10.0.0.128/25"), Message: "overlap"},
		},
	}
	materializer := &Materializer{IPAM: mock, Logger: &testLogger{t}}

	outcomes := materializer.MaterializeMissing([]*NetworkRecord{overlapping}, analysis, "default", false)
	if len(outcomes) != 1 || outcomes[0].Action != SkippedOverlap {
		t.Fatalf("Expected a skipped-overlap outcome, got %+v", outcomes)
	}
	if len(mock.NetworksCreated) != 0 {
		t.Errorf("Skipped record must not reach the grid, got %v", mock.NetworksCreated)
	}

	dryOutcomes := materializer.MaterializeMissing([]*NetworkRecord{overlapping}, analysis, "default", true)
	if dryOutcomes[0].Action != WouldSkipOverlap || dryOutcomes[0].Action.Base() != SkippedOverlap {
		t.Errorf("Expected dry run to report would-skip, got %s", dryOutcomes[0].Action)
	}
}

func TestMaterializeDuplicateContainerCIDR(t *testing.T) {
	// The container CIDR appears twice in the batch. The first occurrence
	// must still be created, and before its child; only the duplicate is
	// skipped.
	first := record("10.0.0.0/16")
	duplicate := record("10.0.0.0/16")
	child := record("10.0.1.0/24")
	mock := &testmocks.MockInfoblox{}
	outcomes := materialize(t, mock, []*NetworkRecord{first, duplicate, child}, false)

	byRecord := map[*NetworkRecord]CreationAction{}
	for _, o := range outcomes {
		byRecord[o.Record] = o.Action
	}
	if byRecord[first] != CreatedContainer {
		t.Errorf("First occurrence = %s, expected %s", byRecord[first], CreatedContainer)
	}
	if byRecord[duplicate] != SkippedInvalid {
		t.Errorf("Duplicate occurrence = %s, expected %s", byRecord[duplicate], SkippedInvalid)
	}
	if byRecord[child] != CreatedNetwork {
		t.Errorf("Child = %s, expected %s", byRecord[child], CreatedNetwork)
	}
	if diff := cmp.Diff([]string{"10.0.0.0/16"}, mock.ContainersCreated); diff != "" {
		t.Errorf("Containers created did not match (-want +got):\n%s", diff)
	}
	if outcomes[0].Record != first {
		t.Errorf("Expected the container created before its child, got %s first", outcomes[0].Record.CIDR)
	}
}

func TestMaterializeSkipsInvalid(t *testing.T) {
	mock := &testmocks.MockInfoblox{}
	missing := []*NetworkRecord{record("10.0.0.5/24")}
	outcomes := materialize(t, mock, missing, false)

	if len(outcomes) != 1 || outcomes[0].Action != SkippedInvalid {
		t.Fatalf("Expected a skipped-invalid outcome, got %+v", outcomes)
	}
	if len(mock.NetworksCreated) != 0 {
		t.Errorf("Invalid record must not reach the grid, got %v", mock.NetworksCreated)
	}
}
