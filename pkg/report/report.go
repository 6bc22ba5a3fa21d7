// Package report renders the change-sets of one run into a document.
//
// Two encodings are supported: a human-readable markdown narrative and a
// machine-readable JSON form. Both apply the same suppression rules: entities
// on their first run contribute nothing (a baseline has no meaningful diff),
// empty change-sets contribute nothing, and a report with no surviving
// content renders as the empty string so callers never print a content-less
// document.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rodos/aws-region-watch/pkg/diff"
)

// Format selects the output encoding.
type Format string

const (
	// FormatMarkdown renders a human-readable narrative.
	FormatMarkdown Format = "markdown"

	// FormatJSON renders a machine-readable document.
	FormatJSON Format = "json"
)

// TypeResult is the outcome for one resource type within a region.
type TypeResult struct {
	// Type is the resource type ("product" or "api").
	Type string

	// FirstRun marks a freshly established baseline; its changes are
	// suppressed from the report.
	FirstRun bool

	// Changes is the computed change-set against the previous snapshot.
	Changes diff.ChangeSet
}

// RegionResult is the outcome for one region, in type order.
type RegionResult struct {
	Region string
	Types  []TypeResult
}

// Data is everything a renderer needs for one run.
type Data struct {
	// Source is the endpoint the data came from.
	Source string

	// GeneratedAt stamps the report.
	GeneratedAt time.Time

	// RegionNames maps region id to long name for display. Missing entries
	// fall back to the bare id.
	RegionNames map[string]string

	// GlobalRegions is the change-set of the global region list, nil when
	// regions are not tracked.
	GlobalRegions *diff.ChangeSet

	// GlobalFirstRun marks the global region baseline as freshly
	// established.
	GlobalFirstRun bool

	// Regions holds per-region results in processing order.
	Regions []RegionResult
}

// Render produces the report document in the requested format. The result is
// the empty string when nothing survives suppression.
func Render(d Data, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return renderJSON(d)
	case FormatMarkdown:
		return renderMarkdown(d), nil
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

// statusLabels maps raw availability statuses to friendly display labels.
// Unknown statuses pass through verbatim.
var statusLabels = map[string]string{
	"isAvailableIn":    "Available",
	"isPlannedIn":      "Planned",
	"isBeingPlannedIn": "Being Planned",
	"isNotExpandingIn": "Not Expanding",
}

// friendlyStatus converts a raw status to its display label.
func friendlyStatus(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// otherGroup collects API names that carry no Service+Operation delimiter.
const otherGroup = "_other"

// groupByService groups composite Service+Operation names by service,
// splitting on the first "+". Names without the delimiter land in the
// otherGroup bucket. The delimiter is display-only; identity stays the full
// string.
func groupByService(names []string) map[string][]string {
	groups := make(map[string][]string)
	for _, name := range names {
		service, operation, found := strings.Cut(name, "+")
		if !found {
			groups[otherGroup] = append(groups[otherGroup], name)
			continue
		}
		groups[service] = append(groups[service], operation)
	}
	return groups
}

// sortedServices returns the group keys in display order.
func sortedServices(groups map[string][]string) []string {
	services := make([]string, 0, len(groups))
	for service := range groups {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

// displayName formats a region for headings, e.g.
// "ap-southeast-2 - Asia Pacific (Sydney)".
func displayName(region string, names map[string]string) string {
	if longName, ok := names[region]; ok {
		return region + " - " + longName
	}
	return region
}
