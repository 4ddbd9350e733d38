package sync

import "strings"

// FailureCategory classifies a creation failure for reporting.
type FailureCategory string

const (
	CategoryOverlap     FailureCategory = "overlap"
	CategoryPermission  FailureCategory = "permission"
	CategoryInvalid     FailureCategory = "invalid"
	CategoryNetworkView FailureCategory = "network_view_error"
	CategoryNotFound    FailureCategory = "not_found"
	CategoryAttribute   FailureCategory = "ea_error"
	CategoryUnknown     FailureCategory = "unknown"
)

// creationErrorRules maps error-message substrings to failure categories.
// The WAPI reports failures as free text, not structured codes, so this is
// best-effort matching; rule order matters and mirrors the behavior the
// reports were built around.
var creationErrorRules = []struct {
	substring string
	category  FailureCategory
}{
	{"overlap", CategoryOverlap},
	{"parent", CategoryOverlap},
	{"permission", CategoryPermission},
	{"auth", CategoryPermission},
	{"invalid", CategoryInvalid},
	{"network view", CategoryNetworkView},
	{"not found", CategoryNotFound},
	{"extensible", CategoryAttribute},
	{"attribute", CategoryAttribute},
}

func CategorizeCreationError(err error) FailureCategory {
	msg := strings.ToLower(err.Error())
	for _, rule := range creationErrorRules {
		if strings.Contains(msg, rule.substring) {
			return rule.category
		}
	}
	return CategoryUnknown
}

// isAlreadyExistsError matches the store's "object already exists" failure,
// which is not a true error: it triggers an attribute update instead.
func isAlreadyExistsError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}
