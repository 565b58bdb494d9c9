package repository

import (
	"regexp"
	"strings"
)

// The SSH and HTTP(S) spellings of the same repository must map to one
// identifier, so clone URLs are reduced to "domain/owner/repo" before
// hashing. Userinfo and a trailing ".git" are not part of the identity.
var gitURLPatterns = []*regexp.Regexp{
	// git@github.com:owner/repo(.git)
	regexp.MustCompile(`^git@([^:/]+):([^/]+)/([^/]+?)(?:\.git)?$`),
	// http(s)://github.com/owner/repo(.git), optionally with userinfo
	regexp.MustCompile(`^https?://(?:[^@/]+@)?([^/:]+)(?::\d+)?/([^/]+)/([^/]+?)(?:\.git)?$`),
}

// NormalizeRepoURL reduces a clone URL to its "domain/owner/repo" form.
// The second return value is false for URLs that do not look like a
// hosted git remote (local paths, bare names).
func NormalizeRepoURL(rawURL string) (string, bool) {
	url := strings.TrimSuffix(strings.TrimSpace(rawURL), "/")
	for _, pattern := range gitURLPatterns {
		if m := pattern.FindStringSubmatch(url); m != nil {
			return strings.ToLower(m[1]) + "/" + m[2] + "/" + m[3], true
		}
	}
	return "", false
}
