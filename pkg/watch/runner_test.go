package watch_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/h2non/gock"

	"github.com/rodos/aws-region-watch/pkg/knowledge"
	"github.com/rodos/aws-region-watch/pkg/report"
	"github.com/rodos/aws-region-watch/pkg/state"
	"github.com/rodos/aws-region-watch/pkg/watch"
)

const testEndpoint = "http://knowledge.test/"

type fixture struct {
	runner *watch.Runner
	store  *state.Store
}

// newFixture wires a runner against a mocked endpoint and a temp state
// directory.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	httpClient := &http.Client{Timeout: 5 * time.Second}
	gock.InterceptClient(httpClient)
	t.Cleanup(gock.Off)

	client := knowledge.New(knowledge.ClientConfig{
		Endpoint:   testEndpoint,
		HTTPClient: httpClient,
	})
	store := state.NewStore(t.TempDir(), nil)
	return &fixture{
		runner: watch.NewRunner(client, store, nil),
		store:  store,
	}
}

// toolReply wraps a payload the way the service does: JSON-encoded as a
// string inside result.content.
func toolReply(t *testing.T, payload interface{}) map[string]interface{} {
	t.Helper()

	text, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return map[string]interface{}{
		"result": map[string]interface{}{
			"content": []map[string]string{{"text": string(text)}},
		},
	}
}

// mockRegions registers a reply to the region list tool.
func mockRegions(t *testing.T) {
	t.Helper()
	gock.New(testEndpoint).Post("/").BodyString("aws___list_regions").
		Reply(200).JSON(toolReply(t, map[string]interface{}{
		"content": map[string]interface{}{
			"result": []map[string]string{
				{"region_id": "ap-southeast-2", "region_long_name": "Asia Pacific (Sydney)"},
			},
		},
	}))
}

// mockProducts registers a reply to the regional availability tool with the
// given product map.
func mockProducts(t *testing.T, products map[string]string) {
	t.Helper()
	gock.New(testEndpoint).Post("/").BodyString("aws___get_regional_availability").
		Reply(200).JSON(toolReply(t, map[string]interface{}{
		"content": map[string]interface{}{
			"result": map[string]interface{}{"products": products},
		},
	}))
}

// seedProducts stores a previous product snapshot for a region so the next
// run has a baseline to diff against.
func seedProducts(t *testing.T, store *state.Store, region string, products map[string]string) {
	t.Helper()
	snapshot := state.NewSnapshot()
	snapshot.Set("product", products)
	if err := store.Save(region, snapshot); err != nil {
		t.Fatalf("seed state: %v", err)
	}
}

// TestRunFirstRunEstablishesBaseline verifies a first run saves snapshots but
// reports nothing and signals no changes.
func TestRunFirstRunEstablishesBaseline(t *testing.T) {
	f := newFixture(t)
	mockRegions(t)
	mockProducts(t, map[string]string{"Amazon S3": "isAvailableIn"})

	outcome, err := f.runner.Run(context.Background(), watch.Options{
		Regions: []string{"ap-southeast-2"},
		Types:   []string{"region", "product"},
		Format:  report.FormatJSON,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if outcome.Changed {
		t.Error("first run must not signal changes")
	}
	if outcome.Report != "" {
		t.Errorf("first run must not produce a report, got %q", outcome.Report)
	}

	// The baseline must be durable for the next run.
	snapshot, err := f.store.Load("ap-southeast-2")
	if err != nil {
		t.Fatalf("load saved state: %v", err)
	}
	if snapshot.Get("product")["Amazon S3"] != "isAvailableIn" {
		t.Errorf("baseline not saved: %+v", snapshot.Resources)
	}
	global, err := f.store.LoadGlobal()
	if err != nil {
		t.Fatalf("load global state: %v", err)
	}
	if global.Get("region")["ap-southeast-2"] == "" {
		t.Errorf("global baseline not saved: %+v", global.Resources)
	}
}

// TestRunNoChanges verifies a run over an unchanged baseline reports nothing.
func TestRunNoChanges(t *testing.T) {
	f := newFixture(t)
	seedProducts(t, f.store, "ap-southeast-2", map[string]string{"Amazon S3": "isAvailableIn"})
	mockProducts(t, map[string]string{"Amazon S3": "isAvailableIn"})

	outcome, err := f.runner.Run(context.Background(), watch.Options{
		Regions: []string{"ap-southeast-2"},
		Types:   []string{"product"},
		Format:  report.FormatJSON,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome.Changed {
		t.Error("unchanged baseline must not signal changes")
	}
	if outcome.Report != "" {
		t.Errorf("unchanged baseline must not produce a report, got %q", outcome.Report)
	}
}

// TestRunDetectsChanges verifies a changed snapshot produces a report, the
// change signal, and an updated baseline.
func TestRunDetectsChanges(t *testing.T) {
	f := newFixture(t)
	seedProducts(t, f.store, "ap-southeast-2", map[string]string{
		"Amazon S3":  "isAvailableIn",
		"AWS Lambda": "isPlannedIn",
	})
	mockProducts(t, map[string]string{
		"Amazon S3":  "isAvailableIn",
		"AWS Lambda": "isAvailableIn",
		"Amazon New": "isPlannedIn",
	})

	outcome, err := f.runner.Run(context.Background(), watch.Options{
		Regions: []string{"ap-southeast-2"},
		Types:   []string{"product"},
		Format:  report.FormatJSON,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !outcome.Changed {
		t.Error("expected change signal")
	}
	for _, want := range []string{"AWS Lambda", "Amazon New", "isAvailableIn"} {
		if !strings.Contains(outcome.Report, want) {
			t.Errorf("report missing %q:\n%s", want, outcome.Report)
		}
	}

	// The new state becomes the next baseline.
	snapshot, err := f.store.Load("ap-southeast-2")
	if err != nil {
		t.Fatalf("load saved state: %v", err)
	}
	if snapshot.Get("product")["AWS Lambda"] != "isAvailableIn" {
		t.Errorf("baseline not advanced: %+v", snapshot.Resources)
	}
}

// TestRunMarkdownFetchesRegionNames verifies the markdown report labels
// region headings with display names from the region list.
func TestRunMarkdownFetchesRegionNames(t *testing.T) {
	f := newFixture(t)
	seedProducts(t, f.store, "ap-southeast-2", map[string]string{"Amazon S3": "isPlannedIn"})
	mockProducts(t, map[string]string{"Amazon S3": "isAvailableIn"})
	mockRegions(t)

	outcome, err := f.runner.Run(context.Background(), watch.Options{
		Regions: []string{"ap-southeast-2"},
		Types:   []string{"product"},
		Format:  report.FormatMarkdown,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.Contains(outcome.Report, "## ap-southeast-2 - Asia Pacific (Sydney)") {
		t.Errorf("report missing display-name heading:\n%s", outcome.Report)
	}
	if !strings.Contains(outcome.Report, "**Amazon S3**: Planned → Available") {
		t.Errorf("report missing status change:\n%s", outcome.Report)
	}
}

// TestRunGlobalRegionChanges verifies a new region in the global list flows
// into the report and the change signal.
func TestRunGlobalRegionChanges(t *testing.T) {
	f := newFixture(t)

	global := state.NewSnapshot()
	global.Set("region", map[string]string{"us-east-1": "US East (N. Virginia)"})
	if err := f.store.SaveGlobal(global); err != nil {
		t.Fatalf("seed global state: %v", err)
	}

	gock.New(testEndpoint).Post("/").BodyString("aws___list_regions").
		Reply(200).JSON(toolReply(t, map[string]interface{}{
		"content": map[string]interface{}{
			"result": []map[string]string{
				{"region_id": "us-east-1", "region_long_name": "US East (N. Virginia)"},
				{"region_id": "eu-south-3", "region_long_name": "Europe (Naples)"},
			},
		},
	}))

	outcome, err := f.runner.Run(context.Background(), watch.Options{
		Types:  []string{"region"},
		Format: report.FormatJSON,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !outcome.Changed {
		t.Error("expected change signal for new region")
	}
	for _, want := range []string{"eu-south-3", "Europe (Naples)"} {
		if !strings.Contains(outcome.Report, want) {
			t.Errorf("report missing %q:\n%s", want, outcome.Report)
		}
	}
}

// TestRunPropagatesClientErrors verifies a failed fetch aborts the run and
// leaves the stored baseline untouched.
func TestRunPropagatesClientErrors(t *testing.T) {
	f := newFixture(t)
	seedProducts(t, f.store, "ap-southeast-2", map[string]string{"Amazon S3": "isAvailableIn"})
	gock.New(testEndpoint).Post("/").Reply(404)

	_, err := f.runner.Run(context.Background(), watch.Options{
		Regions: []string{"ap-southeast-2"},
		Types:   []string{"product"},
		Format:  report.FormatJSON,
	})
	if !knowledge.IsClient(err) {
		t.Fatalf("expected client error, got %v", err)
	}

	snapshot, loadErr := f.store.Load("ap-southeast-2")
	if loadErr != nil {
		t.Fatalf("load state: %v", loadErr)
	}
	if snapshot.Get("product")["Amazon S3"] != "isAvailableIn" {
		t.Errorf("baseline must survive an aborted run: %+v", snapshot.Resources)
	}
}
