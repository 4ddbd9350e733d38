package sync

import (
	"sort"
	"strconv"
	"strings"
)

// environmentBonus is subtracted from the base priority so that, at equal
// size, production networks are created before lower environments.
var environmentBonus = map[string]int{
	"prod":        5,
	"production":  5,
	"staging":     3,
	"stage":       3,
	"test":        2,
	"testing":     2,
	"dev":         1,
	"development": 1,
}

// Priority computes the creation priority for a record; lower values are
// created first. The base priority is the prefix length, so /16s sort before
// /24s; unparseable CIDRs sort last.
func Priority(record *NetworkRecord) int {
	priority := 99
	pieces := strings.Split(record.CIDR, "/")
	if len(pieces) == 2 {
		prefixLen, err := strconv.Atoi(pieces[1])
		if err == nil {
			priority = prefixLen
		}
	}
	priority -= environmentBonus[strings.ToLower(record.EAs["environment"])]
	if priority < 1 {
		priority = 1
	}
	return priority
}

// Schedule orders missing records for creation. Containers always precede
// every network they contain regardless of numeric priority; within each
// containment depth records are ordered by priority, with input order
// breaking ties.
func Schedule(missing []*NetworkRecord, analysis *OverlapAnalysis) []*NetworkRecord {
	// depth is the number of enclosing containers within the batch. Parents
	// always have strictly smaller depth than their children, so sorting by
	// depth first enforces the dependency order.
	depth := map[string]int{}
	var depthOf func(cidr string) int
	depthOf = func(cidr string) int {
		if d, ok := depth[cidr]; ok {
			return d
		}
		depth[cidr] = 0 // cycle guard; containment is acyclic but be safe
		for container, children := range analysis.Containments {
			for _, child := range children {
				if child.CIDR == cidr {
					depth[cidr] = depthOf(container) + 1
				}
			}
		}
		return depth[cidr]
	}

	ordered := append([]*NetworkRecord{}, missing...)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := depthOf(ordered[i].CIDR), depthOf(ordered[j].CIDR)
		if di != dj {
			return di < dj
		}
		return Priority(ordered[i]) < Priority(ordered[j])
	})
	return ordered
}
