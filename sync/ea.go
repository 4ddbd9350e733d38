package sync

import (
	"fmt"
	"sort"

	"github.com/netopsio/infoblox-sync/infoblox"
)

// EAProvisionResult summarizes one attribute-provisioning pass.
type EAProvisionResult struct {
	Required []string
	Missing  []string
	Created  []string
	Existing []string
	// Failed maps attribute name to the creation error.
	Failed map[string]error
}

// RequiredEANames collects every attribute name referenced by the batch,
// sorted for deterministic provisioning order.
func RequiredEANames(records []*NetworkRecord) []string {
	names := map[string]bool{}
	for _, record := range records {
		for name := range record.EAs {
			names[name] = true
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return sorted
}

// EnsureRequiredEAs makes sure every attribute name used by the batch exists
// as a definition in the grid. Run once per batch before creation. A failure
// to list definitions is batch-fatal; individual creation failures are not.
func EnsureRequiredEAs(ipam infoblox.Client, records []*NetworkRecord, dryRun bool, logger Logger) (*EAProvisionResult, error) {
	result := &EAProvisionResult{
		Required: RequiredEANames(records),
		Failed:   map[string]error{},
	}

	existing, err := ipam.ListEADefinitions()
	if err != nil {
		return nil, fmt.Errorf("Error listing extensible attribute definitions: %s", err)
	}
	existingNames := map[string]bool{}
	for _, name := range existing {
		existingNames[name] = true
	}

	for _, name := range result.Required {
		if existingNames[name] {
			result.Existing = append(result.Existing, name)
			continue
		}
		result.Missing = append(result.Missing, name)
	}

	if dryRun {
		logger.Log("DRY RUN: %d extensible attribute definitions would be created", len(result.Missing))
		return result, nil
	}

	for _, name := range result.Missing {
		created, err := ipam.CreateEADefinition(name)
		if err != nil {
			logger.Log("Failed to create extensible attribute definition %s: %s", name, err)
			result.Failed[name] = err
			continue
		}
		if created {
			logger.Log("Created extensible attribute definition: %s", name)
			result.Created = append(result.Created, name)
		} else {
			result.Existing = append(result.Existing, name)
		}
	}
	return result, nil
}
