package build

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

var (
	detectorOnce sync.Once
	detector     *detect.Detector
	detectorErr  error
)

// ScanBuildArgs reports build arguments whose values look like credentials.
// Build args end up in image history, so these are warnings for the operator.
func ScanBuildArgs(args map[string]string) ([]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	detectorOnce.Do(func() {
		detector, detectorErr = detect.NewDetectorDefaultConfig()
	})
	if detectorErr != nil {
		return nil, fmt.Errorf("initializing secret detector: %w", detectorErr)
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var warnings []string
	for _, k := range keys {
		// Scan the assignment so key-name heuristics (API_TOKEN=...) apply too.
		for _, hit := range detector.DetectString(fmt.Sprintf("%s=%q", k, args[k])) {
			warnings = append(warnings, fmt.Sprintf("build arg %s looks like a secret: %s (%s)", k, hit.Description, hit.RuleID))
		}
	}
	return warnings, nil
}
