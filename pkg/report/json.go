package report

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/rodos/aws-region-watch/pkg/diff"
)

// jsonReport is the machine-readable document: nested by region and resource
// type, with an optional top-level block for the global region list.
type jsonReport struct {
	Timestamp     string                            `json:"timestamp"`
	Source        string                            `json:"source"`
	GlobalRegions *jsonGlobalChanges                `json:"global_regions,omitempty"`
	Regions       map[string]map[string]jsonChanges `json:"regions"`
}

type jsonGlobalChanges struct {
	Added   []diff.Entry `json:"added"`
	Removed []string     `json:"removed"`
}

type jsonChanges struct {
	Added   []diff.Entry        `json:"added"`
	Changed []diff.StatusChange `json:"changed"`
	Removed []string            `json:"removed"`
}

// renderJSON builds the machine-readable report. Returns the empty string
// when no entry survives suppression.
func renderJSON(d Data) (string, error) {
	out := jsonReport{
		Timestamp: d.GeneratedAt.Format(time.RFC3339),
		Source:    d.Source,
		Regions:   make(map[string]map[string]jsonChanges),
	}

	hasChanges := false

	if d.GlobalRegions != nil && !d.GlobalFirstRun && !d.GlobalRegions.Empty() {
		out.GlobalRegions = &jsonGlobalChanges{
			Added:   nonNilEntries(d.GlobalRegions.Added),
			Removed: nonNilStrings(d.GlobalRegions.Removed),
		}
		hasChanges = true
	}

	for _, region := range d.Regions {
		regionData := make(map[string]jsonChanges)
		for _, result := range region.Types {
			if result.FirstRun || result.Changes.Empty() {
				continue
			}
			regionData[result.Type] = jsonChanges{
				Added:   nonNilEntries(result.Changes.Added),
				Changed: nonNilChanges(result.Changes.Changed),
				Removed: nonNilStrings(result.Changes.Removed),
			}
			hasChanges = true
		}
		if len(regionData) > 0 {
			out.Regions[region.Region] = regionData
		}
	}

	if !hasChanges {
		return "", nil
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// The slice normalizers keep empty lists encoding as [] rather than null.

func nonNilEntries(entries []diff.Entry) []diff.Entry {
	if entries == nil {
		return []diff.Entry{}
	}
	return entries
}

func nonNilChanges(changes []diff.StatusChange) []diff.StatusChange {
	if changes == nil {
		return []diff.StatusChange{}
	}
	return changes
}

func nonNilStrings(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
