package build

import (
	"bufio"
	"os"
	"regexp"
	"strings"
	"time"
)

// DockerfileInfo is what the planner needs to know about a Dockerfile.
type DockerfileInfo struct {
	Stages []Stage
	Args   []string
}

// Stage describes a single FROM stage in a Dockerfile.
type Stage struct {
	Name      string // alias from "AS name", empty if unnamed
	BaseImage string // the FROM image reference
	Line      int    // line number of the FROM instruction
}

var (
	// FROM [--platform=...] <image> [AS <name>]
	fromRe = regexp.MustCompile(`(?i)^FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)
	// ARG <name>[=<default>]
	argRe = regexp.MustCompile(`(?i)^ARG\s+(\S+?)(?:=.*)?$`)
)

// ParseDockerfile extracts stage and arg info from a Dockerfile.
// Regex based, not a full AST.
func ParseDockerfile(path string) (*DockerfileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &DockerfileInfo{}
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := fromRe.FindStringSubmatch(line); m != nil {
			info.Stages = append(info.Stages, Stage{
				BaseImage: m[1],
				Name:      m[2],
				Line:      lineNum,
			})
			continue
		}

		if m := argRe.FindStringSubmatch(line); m != nil {
			info.Args = append(info.Args, m[1])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return info, nil
}

// injectBuildArgs adds VERSION, COMMIT and BUILD_DATE when the Dockerfile
// declares a matching ARG and the caller did not set it. Returns the names
// that were added. A Dockerfile that cannot be parsed injects nothing.
func injectBuildArgs(args map[string]string, dockerfilePath, version, revision string, now time.Time) []string {
	info, err := ParseDockerfile(dockerfilePath)
	if err != nil || len(info.Args) == 0 {
		return nil
	}

	declared := make(map[string]bool, len(info.Args))
	for _, a := range info.Args {
		declared[a] = true
	}

	candidates := []struct{ key, value string }{
		{"VERSION", version},
		{"COMMIT", revision},
		{"BUILD_DATE", now.UTC().Format(time.RFC3339)},
	}

	var added []string
	for _, c := range candidates {
		if !declared[c.key] || c.value == "" {
			continue
		}
		if _, ok := args[c.key]; ok {
			continue
		}
		args[c.key] = c.value
		added = append(added, c.key)
	}
	return added
}
