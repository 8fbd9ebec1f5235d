package output

import (
	"bytes"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sofmeright/dockwright/src/build"
	"github.com/sofmeright/dockwright/src/manifest"
	"github.com/sofmeright/dockwright/src/pipeline"
)

func mustPlatform(t *testing.T, id string) build.Platform {
	t.Helper()
	p, err := build.ParsePlatform(id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func failedReport(t *testing.T) *pipeline.Report {
	return &pipeline.Report{
		Build: &pipeline.CoordinatorResult{
			Outcome: build.Failure,
			Results: []build.PlatformResult{
				{Platform: mustPlatform(t, "linux/amd64"), Outcome: build.Success, Digest: "sha256:0123456789abcdef0123", Duration: 2 * time.Second},
				{
					Platform: mustPlatform(t, "linux/arm64"),
					Outcome:  build.Failure,
					Output:   "step 1\nstep 2\nerror: exit status 1\n",
					Err:      &build.Error{Kind: build.KindBuildToolError, Platform: "linux/arm64", Err: errors.New("exit status 1")},
				},
			},
			Abandoned: []string{"linux/arm/v7"},
		},
		Duration: 3 * time.Second,
	}
}

func TestSectionFrame(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSection(&buf, "Build", 1500*time.Millisecond, false)
	sec.Row("hello %s", "world")
	sec.Separator()
	sec.Close()

	out := buf.String()
	if !strings.Contains(out, "── Build ") || !strings.Contains(out, " 1.5s ──") {
		t.Errorf("header missing name or elapsed:\n%s", out)
	}
	if !strings.Contains(out, "    │ hello world\n") {
		t.Errorf("row not framed:\n%s", out)
	}
	if !strings.Contains(out, "    └") {
		t.Errorf("footer missing:\n%s", out)
	}
}

func TestStatusIcon(t *testing.T) {
	cases := map[string]string{"success": "✓", "failed": "✗", "abandoned": "⊘"}
	for status, want := range cases {
		if got := StatusIcon(status, false); got != want {
			t.Errorf("StatusIcon(%q) = %q, want %q", status, got, want)
		}
		if got := StatusIcon(status, true); !strings.Contains(got, want) || !strings.HasPrefix(got, "\033[") {
			t.Errorf("StatusIcon(%q, color) = %q", status, got)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := map[time.Duration]string{
		500 * time.Microsecond:  "<1ms",
		42 * time.Millisecond:   "42ms",
		2500 * time.Millisecond: "2.5s",
		90 * time.Second:        "1m30.0s",
	}
	for d, want := range cases {
		if got := FormatElapsed(d); got != want {
			t.Errorf("FormatElapsed(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestSummaryFailure(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, failedReport(t), false)
	out := buf.String()

	for _, want := range []string{"amd64", "sha256:0123456789ab", "arm64", "BuildToolError", "error: exit status 1", "linux/arm/v7", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryManifests(t *testing.T) {
	rep := &pipeline.Report{
		Build: &pipeline.CoordinatorResult{Outcome: build.Success},
		Lists: []manifest.List{
			{Tag: "harbor.local/iot/app:1.0", Digest: "sha256:aa", Members: map[string]string{"linux/amd64": "harbor.local/iot/app:1.0-amd64"}},
			{Tag: "harbor.local/iot/app:latest", Err: &build.Error{Kind: build.KindDanglingReference, Ref: "harbor.local/iot/app:latest-arm64"}},
		},
	}
	var buf bytes.Buffer
	Summary(&buf, rep, false)
	out := buf.String()
	if !strings.Contains(out, "✓ harbor.local/iot/app:1.0") || !strings.Contains(out, "✗ harbor.local/iot/app:latest") {
		t.Errorf("manifest rows wrong:\n%s", out)
	}
	if !strings.Contains(out, "DanglingReference") {
		t.Errorf("dangling reference not reported:\n%s", out)
	}
}

func TestStages(t *testing.T) {
	var buf bytes.Buffer
	Stages(&buf, []build.Stage{
		{BaseImage: "golang:1.22", Name: "builder", Line: 1},
		{BaseImage: "alpine:3.19", Line: 7},
	}, false)
	out := buf.String()
	for _, want := range []string{"line 1 golang:1.22 AS builder", "line 7 alpine:3.19\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("stages missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	Stages(&buf, nil, false)
	if buf.Len() != 0 {
		t.Errorf("no stages should print nothing, got %q", buf.String())
	}
}

func TestWriteBuildJUnit(t *testing.T) {
	dir := t.TempDir()
	if err := WriteBuildJUnit(dir, failedReport(t)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "dockwright.xml"))
	if err != nil {
		t.Fatal(err)
	}

	var suites JUnitTestSuites
	if err := xml.Unmarshal(data, &suites); err != nil {
		t.Fatal(err)
	}
	if suites.Tests != 3 || suites.Failures != 1 {
		t.Errorf("tests=%d failures=%d, want 3 and 1", suites.Tests, suites.Failures)
	}
	if len(suites.Suites) != 1 || suites.Suites[0].Skipped != 1 {
		t.Fatalf("unexpected suites: %+v", suites.Suites)
	}
	if f := suites.Suites[0].Cases[1].Failure; f == nil || f.Type != "BuildToolError" {
		t.Errorf("arm64 case failure = %+v", f)
	}
}

func TestCIContext(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	if kv := CIContext(); kv != nil {
		t.Errorf("expected no context outside CI, got %v", kv)
	}

	t.Setenv("CI", "true")
	t.Setenv("CI_PIPELINE_ID", "4242")
	found := false
	for _, kv := range CIContext() {
		if kv.Key == "pipeline" && kv.Value == "4242" {
			found = true
		}
	}
	if !found {
		t.Error("pipeline id missing from CI context")
	}
}
