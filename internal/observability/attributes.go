// Package observability provides metrics for API calls, job waits and transfers.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod    = "method"
	attrEndpoint  = "endpoint"
	attrStatus    = "status"
	attrKind      = "kind"
	attrOutcome   = "outcome"
	attrDirection = "direction"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func endpointAttr(path string) attribute.KeyValue {
	return attribute.String(attrEndpoint, normalizeEndpoint(path))
}

func statusAttr(code int) attribute.KeyValue {
	if code == 0 {
		return attribute.String(attrStatus, "none")
	}
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func kindAttr(kind string) attribute.KeyValue {
	return attribute.String(attrKind, kind)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func directionAttr(direction string) attribute.KeyValue {
	return attribute.String(attrDirection, direction)
}

// normalizeEndpoint replaces IDs in API paths with placeholders to bound cardinality.
//
//	/Projections/123/run               -> /Projections/{id}/run
//	/Reports/Workbooks/abc/Generate    -> /Reports/Workbooks/{workbookId}/Generate
//	/Reports/Workbooks/Status/g-1      -> /Reports/Workbooks/Status/{generationId}
func normalizeEndpoint(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		prev := ""
		if i > 0 {
			prev = segments[i-1]
		}
		switch {
		case isNumeric(seg):
			segments[i] = "{id}"
		case prev == "Status":
			segments[i] = "{generationId}"
		case prev == "Workbooks" && seg != "Status":
			segments[i] = "{workbookId}"
		}
	}
	return strings.Join(segments, "/")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
