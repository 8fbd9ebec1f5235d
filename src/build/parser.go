package build

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// StepEvent is a Dockerfile instruction observed in build-tool output.
type StepEvent struct {
	Instruction string // "FROM", "RUN", "COPY", ...
	Detail      string // instruction arguments (truncated)
	Cached      bool   // true if the tool reused a cached layer
}

var (
	// INFO[0003] RUN apk add --no-cache curl
	kanikoStepRe = regexp.MustCompile(`^(?:INFO|DEBU)\[\d+\]\s+(FROM|RUN|COPY|ADD|WORKDIR|ENV|ARG|EXPOSE|USER|CMD|ENTRYPOINT|LABEL|VOLUME)\s*(.*)$`)
	// INFO[0002] Using caching version of cmd: RUN apk add --no-cache curl
	kanikoCachedRe = regexp.MustCompile(`Using caching version of cmd:\s+(\w+)\s*(.*)$`)
	// INFO[0007] Pushed harbor.example.com/proj/app@sha256:abcd...
	kanikoPushedRe = regexp.MustCompile(`Pushed\s+\S+@(sha256:[a-f0-9]{64})`)
	// #7 [2/4] RUN apk add --no-cache curl
	buildxStepRe = regexp.MustCompile(`^#\d+ \[[^\]]*?\d+/\d+\] (\w+)\s*(.*)`)
	// #7 CACHED
	buildxCachedRe = regexp.MustCompile(`^#\d+ CACHED`)
)

// ParseKanikoOutput extracts instruction steps and the pushed digest from
// Kaniko executor logs.
func ParseKanikoOutput(output string) ([]StepEvent, string) {
	var (
		steps  []StepEvent
		digest string
	)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := kanikoCachedRe.FindStringSubmatch(line); m != nil {
			steps = append(steps, StepEvent{Instruction: m[1], Detail: truncateDetail(m[2]), Cached: true})
			continue
		}
		if m := kanikoStepRe.FindStringSubmatch(line); m != nil {
			// Kaniko logs a cache hit and then the command; fold the pair.
			if n := len(steps); n > 0 && steps[n-1].Cached && steps[n-1].Instruction == m[1] && steps[n-1].Detail == truncateDetail(m[2]) {
				continue
			}
			steps = append(steps, StepEvent{Instruction: m[1], Detail: truncateDetail(m[2])})
			continue
		}
		if m := kanikoPushedRe.FindStringSubmatch(line); m != nil && digest == "" {
			digest = m[1]
		}
	}
	return steps, digest
}

// ParseBuildxOutput extracts instruction steps from buildx --progress=plain output.
func ParseBuildxOutput(output string) []StepEvent {
	var steps []StepEvent
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if m := buildxStepRe.FindStringSubmatch(line); m != nil {
			steps = append(steps, StepEvent{Instruction: m[1], Detail: truncateDetail(m[2])})
			continue
		}
		if buildxCachedRe.MatchString(line) && len(steps) > 0 {
			steps[len(steps)-1].Cached = true
		}
	}
	return steps
}

// truncateDetail caps s at 60 runes.
func truncateDetail(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > 60 {
		return string([]rune(s)[:57]) + "..."
	}
	return s
}

// FormatStep formats a step for display.
func FormatStep(e StepEvent) string {
	if e.Detail != "" {
		return e.Instruction + " " + e.Detail
	}
	return e.Instruction
}
