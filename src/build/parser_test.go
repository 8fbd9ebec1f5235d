package build

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const kanikoLog = `INFO[0000] Retrieving image manifest alpine:3.19
INFO[0001] Built cross stage deps: map[]
INFO[0001] Executing 0 build triggers
INFO[0002] Using caching version of cmd: RUN apk add --no-cache curl
INFO[0002] RUN apk add --no-cache curl
INFO[0003] COPY . /app
INFO[0004] Taking snapshot of files...
INFO[0005] Pushing image to harbor.local/iot/iot-driver:1.2.0-amd64
INFO[0007] Pushed harbor.local/iot/iot-driver@sha256:1111111111111111111111111111111111111111111111111111111111111111
INFO[0008] Pushed harbor.local/iot/iot-driver@sha256:2222222222222222222222222222222222222222222222222222222222222222
`

func TestParseKanikoOutput(t *testing.T) {
	steps, digest := ParseKanikoOutput(kanikoLog)

	if digest != "sha256:1111111111111111111111111111111111111111111111111111111111111111" {
		t.Errorf("digest = %q", digest)
	}
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2: %+v", len(steps), steps)
	}
	if !steps[0].Cached || steps[0].Instruction != "RUN" || steps[0].Detail != "apk add --no-cache curl" {
		t.Errorf("step 0 = %+v", steps[0])
	}
	if steps[1].Cached || steps[1].Instruction != "COPY" {
		t.Errorf("step 1 = %+v", steps[1])
	}
}

func TestParseBuildxOutput(t *testing.T) {
	out := `#5 [1/3] FROM docker.io/library/alpine:3.19
#6 [2/3] RUN apk add --no-cache curl
#6 CACHED
#7 [3/3] COPY . /app
#7 DONE 0.1s`

	steps := ParseBuildxOutput(out)
	if len(steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(steps))
	}
	if !steps[1].Cached || steps[2].Cached {
		t.Errorf("cache flags wrong: %+v", steps)
	}
	if got := FormatStep(steps[2]); got != "COPY . /app" {
		t.Errorf("FormatStep = %q", got)
	}
}

func TestTruncateDetail(t *testing.T) {
	long := "apk add --no-cache curl wget git openssh-client ca-certificates tzdata"
	got := truncateDetail(long)
	if len(got) != 60 {
		t.Errorf("len = %d, want 60", len(got))
	}
}

func TestTruncateDetailKeepsRunes(t *testing.T) {
	long := "echo x" + strings.Repeat("é", 70)
	got := truncateDetail(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated detail is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 60 {
		t.Errorf("runes = %d, want 60", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis: %q", got)
	}

	short := "echo héllo"
	if got := truncateDetail(short); got != short {
		t.Errorf("short detail changed: %q", got)
	}
}
