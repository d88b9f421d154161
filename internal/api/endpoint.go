package api

import (
	"net/url"
	"regexp"
	"strings"
)

// dashboardPath matches "/<org-subpath>/d/..." and captures the sub path.
var dashboardPath = regexp.MustCompile(`^(.*?)/d/`)

// DeriveEndpoint turns a dashboard link into the API base it is served from.
//
//	https://host/org1/d/abc -> https://host/org1
//	https://host/d/abc      -> https://host
//
// Anything else, including unparsable input, is returned unchanged.
func DeriveEndpoint(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	m := dashboardPath.FindStringSubmatch(u.Path)
	if m == nil {
		return raw
	}
	return u.Scheme + "://" + u.Host + m[1]
}

func resolveURL(endpoint, path string) string {
	return strings.TrimRight(endpoint, "/") + "/" + strings.TrimLeft(path, "/")
}
