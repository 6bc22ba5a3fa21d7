// Package watch orchestrates one run of the region watcher: fetch current
// availability, diff against the stored baseline, persist the new snapshot,
// and render the report.
//
// Execution is sequential and deterministic, in the order the caller
// supplied regions and types. Each entity's state is saved as soon as its
// fetches complete, so an aborted run leaves finished entities durably
// updated and untouched entities on their old baseline; re-running is safe.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rodos/aws-region-watch/pkg/diff"
	"github.com/rodos/aws-region-watch/pkg/knowledge"
	"github.com/rodos/aws-region-watch/pkg/report"
	"github.com/rodos/aws-region-watch/pkg/state"
	"github.com/rodos/aws-region-watch/pkg/telemetry"
)

// typeLabels maps resource types to their plural progress-log labels.
var typeLabels = map[string]string{
	"region":  "regions",
	"product": "products",
	"api":     "APIs",
}

// Options selects what one run covers.
type Options struct {
	// Regions are the region identifiers to monitor, processed in order.
	Regions []string

	// Types are the tracked resource types; "region" means the global
	// region list, everything else is fetched per region.
	Types []string

	// Format selects the report encoding.
	Format report.Format
}

// Outcome is the result of a completed run.
type Outcome struct {
	// Report is the rendered document, empty when nothing changed (or
	// every entity was on its first run).
	Report string

	// Changed reports whether any tracked entity changed since the
	// previous run. It drives the process exit status.
	Changed bool
}

// Runner wires the client, store and logger for runs.
type Runner struct {
	client *knowledge.Client
	store  *state.Store
	log    *telemetry.Logger
}

// NewRunner creates a runner.
func NewRunner(client *knowledge.Client, store *state.Store, logger *telemetry.Logger) *Runner {
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}
	return &Runner{client: client, store: store, log: logger}
}

// Run executes one watch cycle and returns the rendered report plus the
// change signal. Any escalated error aborts the run; entities already
// processed keep their freshly saved snapshots.
func (r *Runner) Run(ctx context.Context, opts Options) (*Outcome, error) {
	log := r.log.WithRunID(uuid.New().String())

	data := report.Data{
		Source:      r.client.Endpoint(),
		GeneratedAt: time.Now(),
		RegionNames: map[string]string{},
	}
	anyChanges := false

	if tracksRegions(opts.Types) {
		changes, firstRun, err := r.trackGlobalRegions(ctx, log)
		if err != nil {
			return nil, err
		}
		data.GlobalRegions = changes
		data.GlobalFirstRun = firstRun
		if !firstRun && !changes.Empty() {
			anyChanges = true
		}
	}

	perRegionTypes := perRegion(opts.Types)
	if len(perRegionTypes) > 0 {
		for _, region := range opts.Regions {
			result, changed, err := r.trackRegion(ctx, log, region, perRegionTypes)
			if err != nil {
				return nil, err
			}
			data.Regions = append(data.Regions, *result)
			if changed {
				anyChanges = true
			}
		}
	}

	// The markdown renderer labels region headings with display names; the
	// lookup is cached on the client, so this is free when regions were
	// already fetched this run.
	if opts.Format == report.FormatMarkdown && hasRegionContent(data.Regions) {
		names, err := r.client.ListRegions(ctx)
		if err != nil {
			return nil, err
		}
		data.RegionNames = names
	}

	rendered, err := report.Render(data, opts.Format)
	if err != nil {
		return nil, err
	}

	return &Outcome{Report: rendered, Changed: anyChanges}, nil
}

// trackGlobalRegions fetches the region list, diffs it against the global
// baseline and persists the new snapshot.
func (r *Runner) trackGlobalRegions(ctx context.Context, log *telemetry.Logger) (*diff.ChangeSet, bool, error) {
	log.Info("fetching global regions")
	current, err := r.client.ListRegions(ctx)
	if err != nil {
		return nil, false, err
	}
	log.Infof("found %d regions", len(current))

	snapshot, err := r.store.LoadGlobal()
	if err != nil {
		return nil, false, err
	}

	var changes diff.ChangeSet
	firstRun := false
	previous := snapshot.Get("region")
	if len(previous) > 0 {
		changes = diff.Compare(previous, current)
	} else {
		log.Info("first run - establishing region baseline")
		firstRun = true
	}

	snapshot.Set("region", current)
	if err := r.store.SaveGlobal(snapshot); err != nil {
		return nil, false, err
	}
	log.Debugf("global state saved to %s", r.store.GlobalFilePath())

	return &changes, firstRun, nil
}

// trackRegion fetches every per-region resource type for one region, diffs
// each against the stored baseline, and saves the region's snapshot once all
// of its types completed.
func (r *Runner) trackRegion(ctx context.Context, log *telemetry.Logger, region string, types []string) (*report.RegionResult, bool, error) {
	rlog := log.WithRegion(region)
	rlog.Info("fetching region data")

	snapshot, err := r.store.Load(region)
	if err != nil {
		return nil, false, err
	}

	result := &report.RegionResult{Region: region}
	changed := false

	for _, resourceType := range types {
		label := typeLabels[resourceType]
		if label == "" {
			label = resourceType
		}
		rlog.Infof("fetching %s", label)

		current, err := r.client.ListRegionalResources(ctx, region, resourceType)
		if err != nil {
			return nil, false, err
		}

		available, planned := tally(current)
		rlog.Infof("found %d %s (available: %d, planned: %d)", len(current), label, available, planned)

		typeResult := report.TypeResult{Type: resourceType}
		previous := snapshot.Get(resourceType)
		if len(previous) > 0 {
			typeResult.Changes = diff.Compare(previous, current)
			if !typeResult.Changes.Empty() {
				changed = true
			}
		} else {
			rlog.Infof("first run - establishing %s baseline", resourceType)
			typeResult.FirstRun = true
		}

		snapshot.Set(resourceType, current)
		result.Types = append(result.Types, typeResult)
	}

	if err := r.store.Save(region, snapshot); err != nil {
		return nil, false, err
	}
	if path, err := r.store.FilePath(region); err == nil {
		rlog.Debugf("state saved to %s", path)
	}

	return result, changed, nil
}

// tally counts resources that are available and planned, for progress logs.
func tally(resources map[string]string) (available, planned int) {
	for _, status := range resources {
		switch status {
		case "isAvailableIn":
			available++
		case "isPlannedIn", "isBeingPlannedIn":
			planned++
		}
	}
	return available, planned
}

func tracksRegions(types []string) bool {
	for _, t := range types {
		if t == "region" {
			return true
		}
	}
	return false
}

func perRegion(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t != "region" {
			out = append(out, t)
		}
	}
	return out
}

// hasRegionContent reports whether any region section will survive report
// suppression.
func hasRegionContent(regions []report.RegionResult) bool {
	for _, region := range regions {
		for _, t := range region.Types {
			if !t.FirstRun && !t.Changes.Empty() {
				return true
			}
		}
	}
	return false
}

// Describe returns a short human summary of the options, used in debug logs.
func (o Options) Describe() string {
	return fmt.Sprintf("regions=%v types=%v format=%s", o.Regions, o.Types, o.Format)
}
