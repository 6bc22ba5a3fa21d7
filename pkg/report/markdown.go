package report

import (
	"fmt"
	"sort"
	"strings"
)

// typeOrder fixes the display order of resource types within a region.
var typeOrder = []string{"product", "api"}

// renderMarkdown builds the human-readable report. Returns the empty string
// when no section survives suppression.
func renderMarkdown(d Data) string {
	var lines []string
	add := func(l string) { lines = append(lines, l) }

	add("# AWS Region Watch Report")
	add("")

	if d.GlobalRegions != nil && !d.GlobalFirstRun && !d.GlobalRegions.Empty() {
		add("## New AWS Regions")
		add("")

		if len(d.GlobalRegions.Added) > 0 {
			for _, entry := range d.GlobalRegions.Added {
				// For the global list the status field carries the region's
				// long name.
				add(fmt.Sprintf("- **%s** - %s", entry.Name, entry.Status))
			}
			add("")
		}

		if len(d.GlobalRegions.Removed) > 0 {
			add("Removed:")
			add("")
			for _, name := range d.GlobalRegions.Removed {
				add("- " + name)
			}
			add("")
		}

		add("---")
		add("")
	}

	for _, region := range d.Regions {
		regionLong, ok := d.RegionNames[region.Region]
		if !ok {
			regionLong = region.Region
		}

		descriptions := map[string]struct {
			label       string
			description string
		}{
			"product": {
				label:       "Products/Features",
				description: fmt.Sprintf("AWS services and features available in %s.", regionLong),
			},
			"api": {
				label:       "APIs",
				description: fmt.Sprintf("Individual SDK API operations available in %s. Grouped by service.", regionLong),
			},
		}

		regionHasContent := false

		for _, resourceType := range typeOrder {
			result, ok := findType(region.Types, resourceType)
			if !ok {
				continue
			}
			if result.FirstRun || result.Changes.Empty() {
				continue
			}

			if !regionHasContent {
				add("## " + displayName(region.Region, d.RegionNames))
				add("")
				regionHasContent = true
			}

			config, ok := descriptions[resourceType]
			if !ok {
				config.label = resourceType
			}
			add("### " + config.label)
			add("")
			if config.description != "" {
				add(config.description)
				add("")
			}

			changes := result.Changes
			grouped := resourceType == "api"

			if len(changes.Added) > 0 {
				add(fmt.Sprintf("#### New (%d)", len(changes.Added)))
				add("")
				if grouped {
					names := make([]string, len(changes.Added))
					for i, entry := range changes.Added {
						names[i] = entry.Name
					}
					lines = appendGroupedList(lines, names)
				} else {
					for _, entry := range changes.Added {
						add(fmt.Sprintf("- **%s** - %s", entry.Name, friendlyStatus(entry.Status)))
					}
					add("")
				}
			}

			if len(changes.Changed) > 0 {
				add(fmt.Sprintf("#### Status Changes (%d)", len(changes.Changed)))
				add("")
				if grouped {
					names := make([]string, len(changes.Changed))
					for i, change := range changes.Changed {
						names[i] = change.Name
					}
					lines = appendGroupedList(lines, names)
				} else {
					for _, change := range changes.Changed {
						add(fmt.Sprintf("- **%s**: %s → %s",
							change.Name, friendlyStatus(change.OldStatus), friendlyStatus(change.NewStatus)))
					}
					add("")
				}
			}

			if len(changes.Removed) > 0 {
				add(fmt.Sprintf("#### Removed (%d)", len(changes.Removed)))
				add("")
				if grouped {
					lines = appendGroupedList(lines, changes.Removed)
				} else {
					for _, name := range changes.Removed {
						add("- " + name)
					}
					add("")
				}
			}
		}

		if regionHasContent {
			add("---")
			add("")
		}
	}

	// Only the header so far means nothing survived suppression.
	if len(lines) <= 2 {
		return ""
	}

	add(fmt.Sprintf("*Generated %s by [AWS Region Watch](https://github.com/rodos/aws-region-watch)*",
		d.GeneratedAt.Format("2006-01-02 15:04:05")))
	add("")
	add(fmt.Sprintf("*Data source: [%s](%s)*", d.Source, d.Source))

	return strings.Join(lines, "\n")
}

// findType locates a type result by name, preserving the caller's ordering
// contract.
func findType(types []TypeResult, resourceType string) (TypeResult, bool) {
	for _, t := range types {
		if t.Type == resourceType {
			return t, true
		}
	}
	return TypeResult{}, false
}

// appendGroupedList renders composite names grouped by service, each group a
// bolded service heading with its operations as sorted bullets.
func appendGroupedList(lines []string, names []string) []string {
	groups := groupByService(names)
	for _, service := range sortedServices(groups) {
		operations := groups[service]
		sort.Strings(operations)
		lines = append(lines, fmt.Sprintf("**%s** (%d)", service, len(operations)))
		for _, operation := range operations {
			lines = append(lines, "- "+operation)
		}
		lines = append(lines, "")
	}
	return lines
}
