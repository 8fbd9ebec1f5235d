// Package manifest composes per-platform images into multi-architecture
// manifest lists once every platform build has succeeded.
package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/dockwright/src/build"
	"github.com/sofmeright/dockwright/src/registry"
)

// List is one unified reference and the per-platform images behind it.
type List struct {
	Tag     string            // full reference, e.g. harbor.local/iot/app:1.0
	Members map[string]string // platform id → per-arch reference
	Digest  string            // set after a successful publish
	Err     error             // set when this list was not published
}

// Published reports whether the list reached the registry.
func (l List) Published() bool { return l.Err == nil && l.Digest != "" }

// Composer checks member references and publishes manifest lists.
type Composer struct {
	Registry registry.Registry
	Log      logrus.FieldLogger
}

// Compose publishes req's tag and the latest tag from the given results.
// Every result must be a success. Each list is published independently: a
// dangling member blocks only the list that needs it, and all failures are
// returned together.
func (c *Composer) Compose(ctx context.Context, req *build.Request, results []build.PlatformResult) ([]List, error) {
	if len(results) == 0 {
		return nil, build.Errorf(build.KindInvalidRequest, "no platform results to compose")
	}
	for _, r := range results {
		if !r.OK() {
			return nil, &build.Error{
				Kind:     build.KindInvalidRequest,
				Platform: r.Platform.ID,
				Err:      errors.New("cannot compose manifest: platform build did not succeed"),
			}
		}
	}

	var lists []List
	var errs []error
	for _, tag := range req.UnifiedTags() {
		list := List{Tag: req.Ref(tag), Members: make(map[string]string, len(results))}

		members, err := c.members(ctx, req, tag, results, list.Members)
		if err == nil {
			list.Digest, err = c.Registry.PublishIndex(ctx, list.Tag, members)
			if err != nil {
				err = fmt.Errorf("publishing %s: %w", list.Tag, err)
			}
		}
		if err != nil {
			list.Err = err
			errs = append(errs, err)
			c.logger().WithField("tag", list.Tag).WithError(err).Warn("manifest list not published")
		} else {
			c.logger().WithFields(logrus.Fields{"tag": list.Tag, "digest": list.Digest}).Info("manifest list published")
		}
		lists = append(lists, list)
	}
	return lists, errors.Join(errs...)
}

// members resolves and verifies the per-arch references behind one unified tag.
func (c *Composer) members(ctx context.Context, req *build.Request, tag string, results []build.PlatformResult, byPlatform map[string]string) ([]registry.Member, error) {
	var out []registry.Member
	for _, r := range results {
		ref := req.Ref(build.ArchTag(tag, r.Platform))
		byPlatform[r.Platform.ID] = ref

		ok, err := c.Registry.Exists(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", ref, err)
		}
		if !ok {
			return nil, &build.Error{
				Kind:     build.KindDanglingReference,
				Platform: r.Platform.ID,
				Ref:      ref,
				Err:      errors.New("per-platform image not found in registry"),
			}
		}

		out = append(out, registry.Member{
			Ref:          ref,
			OS:           r.Platform.Spec.OS,
			Architecture: r.Platform.Spec.Architecture,
			Variant:      r.Platform.Spec.Variant,
		})
	}
	return out, nil
}

func (c *Composer) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}
