package sync

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/netopsio/infoblox-sync/testhelpers"
	"github.com/netopsio/infoblox-sync/testmocks"
)

func TestRequiredEANames(t *testing.T) {
	records := []*NetworkRecord{
		{CIDR: "10.0.0.0/24", EAs: map[string]string{"owner": "alice", "environment": "prod"}},
		{CIDR: "10.0.1.0/24", EAs: map[string]string{"owner": "bob", "site_id": "s1"}},
	}
	got := RequiredEANames(records)
	expected := []string{"environment", "owner", "site_id"}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("Required names did not match (-want +got):\n%s", diff)
	}
}

func TestEnsureRequiredEAs(t *testing.T) {
	records := []*NetworkRecord{
		{CIDR: "10.0.0.0/24", EAs: map[string]string{"owner": "alice", "site_id": "s1"}},
	}

	t.Run("Creates only the missing definitions", func(t *testing.T) {
		mock := &testmocks.MockInfoblox{EADefs: []string{"owner"}}
		before, _ := mock.ListEADefinitions()
		result, err := EnsureRequiredEAs(mock, records, false, &testLogger{t})
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}
		if diff := cmp.Diff([]string{"site_id"}, result.Created); diff != "" {
			t.Errorf("Created definitions did not match (-want +got):\n%s", diff)
		}
		after, _ := mock.ListEADefinitions()
		if diff := cmp.Diff([]string{"site_id"}, testhelpers.NewItems(before, after)); diff != "" {
			t.Errorf("Grid-side creations did not match (-want +got):\n%s", diff)
		}
	})

	t.Run("Dry run only reports", func(t *testing.T) {
		mock := &testmocks.MockInfoblox{EADefs: []string{"owner"}}
		result, err := EnsureRequiredEAs(mock, records, true, &testLogger{t})
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}
		if diff := cmp.Diff([]string{"site_id"}, result.Missing); diff != "" {
			t.Errorf("Missing definitions did not match (-want +got):\n%s", diff)
		}
		if len(mock.EADefsCreated) != 0 {
			t.Errorf("Dry run must not create definitions, got %v", mock.EADefsCreated)
		}
	})

	t.Run("Listing failure is fatal", func(t *testing.T) {
		mock := &testmocks.MockInfoblox{ListEADefsError: errors.New("Got status 503 from InfoBlox")}
		_, err := EnsureRequiredEAs(mock, records, false, &testLogger{t})
		if err == nil {
			t.Errorf("Expected an error when listing fails")
		}
	})
}
