package sync

// Tag is one raw key/value pair as extracted from the source row, before
// normalization into extensible attribute names.
type Tag struct {
	Key   string
	Value string
}

// NetworkRecord is one candidate network to reconcile against the grid. CIDR
// and SourceID are set at load time and never change; EAs is derived from
// RawTags by MapTagsToEAs.
type NetworkRecord struct {
	CIDR     string
	SourceID string
	Name     string
	Comment  string
	RawTags  []Tag
	EAs      map[string]string
}

type Logger interface {
	Log(string, ...interface{})
}
