package sync

import (
	"github.com/netopsio/infoblox-sync/infoblox"
)

// CreationAction is the terminal state of one creation attempt.
type CreationAction string

const (
	CreatedNetwork   CreationAction = "created"
	CreatedContainer CreationAction = "created_container"
	AlreadyExisted   CreationAction = "already_existed"
	SkippedOverlap   CreationAction = "skipped_overlap"
	SkippedInvalid   CreationAction = "skipped_invalid"
	Failed           CreationAction = "error"

	WouldCreateNetwork   CreationAction = "would_create"
	WouldCreateContainer CreationAction = "would_create_container"
	WouldSkipOverlap     CreationAction = "would_skip_overlap"
)

// Base strips the dry-run prefix so dry-run and live sequences can be
// compared action for action.
func (a CreationAction) Base() CreationAction {
	switch a {
	case WouldCreateNetwork:
		return CreatedNetwork
	case WouldCreateContainer:
		return CreatedContainer
	case WouldSkipOverlap:
		return SkippedOverlap
	}
	return a
}

// CreationOutcome records the result of attempting to materialize one
// network. Category and Err are set only when Action is Failed. UpdateErr is
// set when the object already existed but the follow-up attribute update
// failed.
type CreationOutcome struct {
	Record    *NetworkRecord
	Action    CreationAction
	Ref       string
	Category  FailureCategory
	Err       error
	UpdateErr error
}

type Materializer struct {
	IPAM   infoblox.Client
	Logger Logger
}

// MaterializeMissing walks the scheduled records in order, creating
// containers and networks through the grid client. Outcomes are emitted in
// input order, and because calls are strictly sequential a container is
// fully created before any of its children are attempted. Dry-run mode
// shares all classification and ordering logic and differs only in whether
// the mutating call fires.
func (m *Materializer) MaterializeMissing(ordered []*NetworkRecord, analysis *OverlapAnalysis, view string, dryRun bool) []*CreationOutcome {
	// Keyed by record identity, not CIDR: a duplicated CIDR puts only the
	// later occurrence in Invalid, and the first occurrence must still be
	// created.
	invalid := map[*NetworkRecord]string{}
	for _, inv := range analysis.Invalid {
		invalid[inv.Record] = inv.Reason
	}

	outcomes := []*CreationOutcome{}
	for _, record := range ordered {
		outcomes = append(outcomes, m.materializeOne(record, analysis, invalid, view, dryRun))
	}
	return outcomes
}

func (m *Materializer) materializeOne(record *NetworkRecord, analysis *OverlapAnalysis, invalid map[*NetworkRecord]string, view string, dryRun bool) *CreationOutcome {
	if reason, ok := invalid[record]; ok {
		m.Logger.Log("Skipping %s: %s", record.CIDR, reason)
		return &CreationOutcome{Record: record, Action: SkippedInvalid}
	}
	if analysis.IsSkippedForOverlap(record.CIDR) {
		m.Logger.Log("Skipping %s due to partial overlap", record.CIDR)
		if dryRun {
			return &CreationOutcome{Record: record, Action: WouldSkipOverlap}
		}
		return &CreationOutcome{Record: record, Action: SkippedOverlap}
	}

	asContainer := analysis.ContainerCIDRs[record.CIDR]
	if dryRun {
		if asContainer {
			m.Logger.Log("DRY RUN: Would create network container %s", record.CIDR)
			return &CreationOutcome{Record: record, Action: WouldCreateContainer}
		}
		m.Logger.Log("DRY RUN: Would create network %s (%s)", record.CIDR, record.SourceID)
		return &CreationOutcome{Record: record, Action: WouldCreateNetwork}
	}

	var ref string
	var err error
	if asContainer {
		ref, err = m.IPAM.CreateNetworkContainer(record.CIDR, view, record.Comment, record.EAs)
	} else {
		ref, err = m.IPAM.CreateNetwork(record.CIDR, view, record.Comment, record.EAs)
	}
	if err == nil {
		if asContainer {
			m.Logger.Log("Created network container %s", record.CIDR)
			return &CreationOutcome{Record: record, Action: CreatedContainer, Ref: ref}
		}
		m.Logger.Log("Created network %s (%s)", record.CIDR, record.SourceID)
		return &CreationOutcome{Record: record, Action: CreatedNetwork, Ref: ref}
	}

	if isAlreadyExistsError(err) {
		return m.updateExisting(record, asContainer, view)
	}

	category := CategorizeCreationError(err)
	m.Logger.Log("Failed to create %s: %s (category %s)", record.CIDR, err, category)
	return &CreationOutcome{Record: record, Action: Failed, Category: category, Err: err}
}

// updateExisting handles the already-exists case: re-fetch the object and
// push the mapped attributes onto it.
func (m *Materializer) updateExisting(record *NetworkRecord, asContainer bool, view string) *CreationOutcome {
	m.Logger.Log("Network %s already exists - checking if extensible attributes need updating", record.CIDR)
	var existing *infoblox.ExistenceResult
	var err error
	if asContainer {
		existing, err = m.IPAM.GetNetworkContainerByCIDR(record.CIDR, view)
	} else {
		existing, err = m.IPAM.GetNetworkByCIDR(record.CIDR, view)
	}
	if err != nil || existing == nil {
		m.Logger.Log("Could not fetch existing network %s for attribute update: %v", record.CIDR, err)
		return &CreationOutcome{Record: record, Action: AlreadyExisted, UpdateErr: err}
	}
	err = m.IPAM.UpdateExtAttrs(existing.Ref, record.EAs)
	if err != nil {
		m.Logger.Log("Could not update extensible attributes for existing network %s: %s", record.CIDR, err)
		return &CreationOutcome{Record: record, Action: AlreadyExisted, Ref: existing.Ref, UpdateErr: err}
	}
	m.Logger.Log("Updated extensible attributes for existing network %s", record.CIDR)
	return &CreationOutcome{Record: record, Action: AlreadyExisted, Ref: existing.Ref}
}
