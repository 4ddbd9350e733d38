package sync

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxEAValueLength = 255

// tagNameMapping maps well-known source tag keys to their canonical
// extensible attribute names. Keys not listed here get an "aws_" prefix.
// Canonical names map to themselves so that remapping already-normalized
// attributes is a no-op.
var tagNameMapping = map[string]string{
	"Name":         "aws_name",
	"environment":  "environment",
	"Environment":  "environment",
	"owner":        "owner",
	"Owner":        "owner",
	"project":      "project",
	"Project":      "project",
	"location":     "aws_location",
	"Location":     "aws_location",
	"cloudservice": "aws_cloudservice",
	"createdby":    "aws_created_by",
	"RequestedBy":  "aws_requested_by",
	"Requested_By": "aws_requested_by",
	"dud":          "aws_dud",
	"AccountId":    "aws_account_id",
	"Region":       "aws_region",
	"VpcId":        "aws_vpc_id",
	"description":  "description",
	"Description":  "description",
}

func sanitizeEAName(name string) string {
	name = strings.Replace(name, "-", "_", -1)
	name = strings.Replace(name, " ", "_", -1)
	return strings.ToLower(name)
}

// MapTagsToEAs normalizes raw source tags into extensible attribute names
// and values. It is total (bad input yields an empty map, never an error)
// and idempotent when applied to its own output.
func MapTagsToEAs(tags []Tag) map[string]string {
	eas := map[string]string{}
	for _, tag := range tags {
		eaName, ok := tagNameMapping[tag.Key]
		if !ok {
			if strings.HasPrefix(strings.ToLower(tag.Key), "aws_") {
				eaName = tag.Key
			} else {
				eaName = "aws_" + strings.ToLower(tag.Key)
			}
		}
		eaName = sanitizeEAName(eaName)
		value := tag.Value
		if runes := []rune(value); len(runes) > maxEAValueLength {
			value = string(runes[:maxEAValueLength])
		}
		eas[eaName] = value
	}
	return eas
}

type jsonTag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// ParseTagString parses the Tags column of a VPC export: a JSON list of
// {"Key": ..., "Value": ...} objects, or the single-quoted Python repr of the
// same shape that older exporters emit. Empty or unparseable input yields an
// empty tag list.
func ParseTagString(s string) ([]Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("Tag string does not look like a list: %.40q", s)
	}
	parsed := []jsonTag{}
	err := json.Unmarshal([]byte(s), &parsed)
	if err != nil {
		err = json.Unmarshal([]byte(pythonReprToJSON(s)), &parsed)
		if err != nil {
			return nil, fmt.Errorf("Error parsing tag string %.40q: %s", s, err)
		}
	}
	tags := make([]Tag, 0, len(parsed))
	for _, t := range parsed {
		if t.Key == "" {
			continue
		}
		tags = append(tags, Tag{Key: t.Key, Value: t.Value})
	}
	return tags, nil
}

// pythonReprToJSON rewrites single-quoted string literals as double-quoted
// ones. Best effort: it handles backslash escapes and double quotes inside
// single-quoted strings, which covers every tag export seen so far.
func pythonReprToJSON(s string) string {
	var out strings.Builder
	inSingle := false
	inDouble := false
	escaped := false
	for _, r := range s {
		if escaped {
			if inSingle && r == '\'' {
				out.WriteRune('\'')
			} else {
				out.WriteRune('\\')
				out.WriteRune(r)
			}
			escaped = false
			continue
		}
		switch {
		case r == '\\' && (inSingle || inDouble):
			escaped = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			out.WriteRune('"')
		case r == '"' && inSingle:
			out.WriteString("\\\"")
		case r == '"' && !inSingle:
			inDouble = !inDouble
			out.WriteRune('"')
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
