package registry

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Harbor publishes through the OCI API and, unless manifestLookup is set,
// answers existence checks from the Harbor v2.0 artifact API
// (/api/v2.0/projects/:project/repositories/:repo/artifacts/:reference).
// The lookup account only needs read access to the project.
type Harbor struct {
	*OCI
	client         httpClient
	baseURL        string
	manifestLookup bool
}

// NewHarbor wraps oci with Harbor's REST lookup. registryURL may omit the scheme.
func NewHarbor(registryURL, user, pass string, oci *OCI) *Harbor {
	base := normalizeURL(registryURL, oci.insecure)

	headers := map[string]string{}
	if user != "" && pass != "" {
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
	}

	return &Harbor{
		OCI:     oci,
		client:  newHTTPClient(base, headers, oci.insecure),
		baseURL: base,
	}
}

func (h *Harbor) Provider() string { return "harbor" }

// Exists looks the reference up as a Harbor artifact.
func (h *Harbor) Exists(ctx context.Context, ref string) (bool, error) {
	if h.manifestLookup {
		return h.OCI.Exists(ctx, ref)
	}

	r, err := h.parse(ref)
	if err != nil {
		return false, err
	}
	project, repoName := splitHarborRepo(r.Context().RepositoryStr())

	reference := r.Identifier()

	// Harbor expects nested repository names double-encoded (a/b → a%252Fb).
	apiURL := fmt.Sprintf("%s/api/v2.0/projects/%s/repositories/%s/artifacts/%s",
		h.baseURL, url.PathEscape(project), url.PathEscape(url.PathEscape(repoName)), url.PathEscape(reference))

	resp, err := h.client.doJSON(ctx, http.MethodGet, apiURL, nil, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("harbor: looking up %s: %w", ref, err)
	}
	return true, nil
}

// splitHarborRepo splits "project/repo" into project and repository name.
// Handles nested repos like "project/sub/repo" → project="project", repo="sub/repo".
func splitHarborRepo(repo string) (project, repoName string) {
	idx := strings.IndexByte(repo, '/')
	if idx < 0 {
		return "library", repo
	}
	return repo[:idx], repo[idx+1:]
}

func normalizeURL(u string, insecure bool) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return strings.TrimRight(u, "/")
	}
	scheme := "https://"
	if insecure {
		scheme = "http://"
	}
	return scheme + strings.TrimRight(u, "/")
}
