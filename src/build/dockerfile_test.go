package build

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDockerfileStages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Dockerfile")
	content := `# syntax=docker/dockerfile:1
FROM --platform=$BUILDPLATFORM golang:1.22 AS builder
ARG VERSION
RUN go build ./...

from alpine:3.19
ARG COMMIT=unknown
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := ParseDockerfile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []Stage{
		{Name: "builder", BaseImage: "golang:1.22", Line: 2},
		{BaseImage: "alpine:3.19", Line: 6},
	}
	if len(info.Stages) != len(want) {
		t.Fatalf("stages = %+v", info.Stages)
	}
	for i := range want {
		if info.Stages[i] != want[i] {
			t.Errorf("stage %d = %+v, want %+v", i, info.Stages[i], want[i])
		}
	}
	if len(info.Args) != 2 || info.Args[0] != "VERSION" || info.Args[1] != "COMMIT" {
		t.Errorf("args = %v", info.Args)
	}
}
