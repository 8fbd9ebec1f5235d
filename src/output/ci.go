package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sofmeright/dockwright/src/build"
	"github.com/sofmeright/dockwright/src/pipeline"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// GitLab collapsible section helpers. No-ops outside GitLab.

func SectionStart(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s\r\033[0K%s\n", time.Now().Unix(), id, name)
}

// SectionStartCollapsed starts a section that is collapsed by default.
func SectionStartCollapsed(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s[collapsed=true]\r\033[0K%s\n", time.Now().Unix(), id, name)
}

func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", time.Now().Unix(), id)
}

// CIContext returns the pipeline identity of the surrounding CI job, if any.
func CIContext() []KV {
	if !IsCI() {
		return nil
	}
	var kv []KV
	add := func(key string, envs ...string) {
		for _, e := range envs {
			if v := os.Getenv(e); v != "" {
				kv = append(kv, KV{Key: key, Value: v})
				return
			}
		}
	}
	add("ci tag", "CI_COMMIT_TAG", "GITHUB_REF_NAME")
	add("ci sha", "CI_COMMIT_SHORT_SHA", "GITHUB_SHA")
	add("pipeline", "CI_PIPELINE_ID", "GITHUB_RUN_ID")
	add("runner", "CI_RUNNER_DESCRIPTION", "RUNNER_NAME")
	return kv
}

// JUnit XML types for CI test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

// BuildJUnit converts a report into JUnit suites: one case per platform and
// one per manifest list.
func BuildJUnit(rep *pipeline.Report) JUnitTestSuites {
	root := JUnitTestSuites{
		Name: "dockwright",
		Time: fmt.Sprintf("%.3f", rep.Duration.Seconds()),
	}

	platforms := JUnitTestSuite{Name: "dockwright/platforms"}
	if rep.Build != nil {
		var total time.Duration
		for _, r := range rep.Build.Results {
			tc := JUnitTestCase{
				Name:      r.Platform.ID,
				Classname: "dockwright.platform",
				Time:      fmt.Sprintf("%.3f", r.Duration.Seconds()),
			}
			if !r.OK() {
				tc.Failure = &JUnitFailure{
					Message: r.Err.Error(),
					Type:    string(r.Err.Kind),
					Body:    r.Output,
				}
				platforms.Failures++
			}
			total += r.Duration
			platforms.Cases = append(platforms.Cases, tc)
		}
		for _, id := range rep.Build.Abandoned {
			platforms.Cases = append(platforms.Cases, JUnitTestCase{
				Name:      id,
				Classname: "dockwright.platform",
				Time:      "0.000",
				Skipped:   &JUnitSkipped{Message: "abandoned after the first failure"},
			})
			platforms.Skipped++
		}
		platforms.Time = fmt.Sprintf("%.3f", total.Seconds())
	}
	platforms.Tests = len(platforms.Cases)

	lists := JUnitTestSuite{Name: "dockwright/manifests", Time: "0.000"}
	for _, l := range rep.Lists {
		tc := JUnitTestCase{Name: l.Tag, Classname: "dockwright.manifest", Time: "0.000"}
		if !l.Published() {
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("%s not published", l.Tag),
				Type:    string(kindOrUnknown(l.Err)),
				Body:    errString(l.Err),
			}
			lists.Failures++
		}
		lists.Cases = append(lists.Cases, tc)
	}
	lists.Tests = len(lists.Cases)

	for _, s := range []JUnitTestSuite{platforms, lists} {
		if s.Tests == 0 {
			continue
		}
		root.Suites = append(root.Suites, s)
		root.Tests += s.Tests
		root.Failures += s.Failures
	}
	return root
}

// WriteBuildJUnit writes the report as dir/dockwright.xml.
func WriteBuildJUnit(dir string, rep *pipeline.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	path := filepath.Join(dir, "dockwright.xml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(BuildJUnit(rep)); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	_, err = io.WriteString(f, "\n")
	return err
}

func kindOrUnknown(err error) build.Kind {
	if k := build.KindOf(err); k != "" {
		return k
	}
	return "Error"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
