package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sofmeright/dockwright/src/build"
	"github.com/sofmeright/dockwright/src/pipeline"
)

// Header prints the tool identity line.
func Header(w io.Writer, ident string, color bool) {
	if color {
		ident = colorBold + ident + colorReset
	}
	fmt.Fprintf(w, "\n    %s\n", ident)
}

// RequestBlock prints the resolved request as a context block.
func RequestBlock(w io.Writer, rep *pipeline.Report) {
	req := rep.Request
	if req == nil {
		return
	}
	var plats []string
	for _, p := range req.Platforms() {
		plats = append(plats, p.ID)
	}
	kv := []KV{
		{"app", req.AppName()},
		{"version", req.AppVersion()},
		{"tag", req.Tag()},
		{"strategy", string(req.TagStrategy())},
		{"image", req.Image()},
		{"unique id", req.UniqueID()},
		{"platforms", strings.Join(plats, ", ")},
	}
	if rev := req.Revision(); rev != "" {
		kv = append(kv, KV{"revision", shortRev(rev)})
	}
	if rep.Origin != "" {
		kv = append(kv, KV{"source", rep.Origin})
	}
	ContextBlock(w, append(kv, CIContext()...))
}

// Warnings renders soft issues collected while building the request.
func Warnings(w io.Writer, warnings []string, color bool) {
	if len(warnings) == 0 {
		return
	}
	sec := NewSection(w, "Warnings", 0, color)
	for _, msg := range warnings {
		sec.Row("%s %s", StatusIcon("warning", color), msg)
	}
	sec.Close()
}

// Plan renders a dry run: the command each platform would run.
func Plan(w io.Writer, plan []build.Invocation, exec build.Executor, color bool) {
	sec := NewSection(w, "Plan", 0, color)
	liner, _ := exec.(build.CommandLiner)
	for i, inv := range plan {
		if i > 0 {
			sec.Separator()
		}
		sec.Row("%s", inv.Platform.ID)
		for _, d := range inv.Destinations {
			sec.Row("  → %s", d)
		}
		if liner != nil {
			sec.Row("  %s", Dimmed(strings.Join(liner.CommandLine(inv), " "), color))
		}
	}
	sec.Close()
}

// Stages lists the FROM stages of the Dockerfile being built.
func Stages(w io.Writer, stages []build.Stage, color bool) {
	if len(stages) == 0 {
		return
	}
	sec := NewSection(w, "Dockerfile", 0, color)
	for _, st := range stages {
		row := fmt.Sprintf("%s %s", Dimmed(fmt.Sprintf("line %d", st.Line), color), st.BaseImage)
		if st.Name != "" {
			row += " AS " + st.Name
		}
		sec.Row("%s", row)
	}
	sec.Close()
}

// Summary renders per-platform results, manifest lists and the total.
func Summary(w io.Writer, rep *pipeline.Report, color bool) {
	if rep.Build != nil {
		sec := NewSection(w, "Platforms", 0, color)
		for _, r := range rep.Build.Results {
			SummaryRow(w, r.Platform.Arch(), string(r.Outcome), platformDetail(r), color)
			if r.Err != nil && r.Err.Kind != build.KindCancelled {
				for _, line := range tail(r.Output, 5) {
					sec.Row("    %s", Dimmed(line, color))
				}
			}
		}
		abandoned := append([]string(nil), rep.Build.Abandoned...)
		sort.Strings(abandoned)
		for _, id := range abandoned {
			SummaryRow(w, id, "abandoned", "still running when the run gave up", color)
		}
		sec.Close()
	}

	if len(rep.Lists) > 0 {
		sec := NewSection(w, "Manifests", 0, color)
		for _, l := range rep.Lists {
			status, detail := "success", l.Digest
			if !l.Published() {
				status, detail = "failed", errString(l.Err)
			}
			sec.Row("%s %s", StatusIcon(status, color), l.Tag)
			sec.Row("    %s", Dimmed(detail, color))
			for _, id := range sortedKeys(l.Members) {
				sec.Row("    %-14s %s", id, l.Members[id])
			}
		}
		sec.Close()
	}

	sec := NewSection(w, "Summary", 0, color)
	SummaryTotal(w, rep.Duration, string(rep.Outcome()), color)
	sec.Close()
}

func platformDetail(r build.PlatformResult) string {
	if r.OK() {
		detail := FormatElapsed(r.Duration)
		if r.Digest != "" {
			detail += "  " + shortDigest(r.Digest)
		}
		return detail
	}
	return fmt.Sprintf("%s  %s", FormatElapsed(r.Duration), r.Err.Error())
}

func tail(out string, n int) []string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func shortDigest(d string) string {
	if _, hex, ok := strings.Cut(d, ":"); ok && len(hex) > 12 {
		return d[:len(d)-len(hex)] + hex[:12]
	}
	return d
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
