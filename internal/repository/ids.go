package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// IDs are deterministic UUIDv5 values so re-indexing the same content
// produces the same keys and upserts replace instead of duplicating.

// RepoID derives the repository identifier from its clone URL. The URL
// is normalized first, so the SSH and HTTPS forms of one repository
// share an identifier; unparseable input hashes as given.
func RepoID(repoURL string) string {
	name := repoURL
	if normalized, ok := NormalizeRepoURL(repoURL); ok {
		name = normalized
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// FileID derives the file identifier from its repository, path and
// content hash. A changed file gets a new FileID, which is how stale
// chunks are detected.
func FileID(repoID, relativePath string, content []byte) string {
	sum := sha256.Sum256(content)
	name := fmt.Sprintf("%s:%s:%s", repoID, relativePath, hex.EncodeToString(sum[:]))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// ChunkID derives a document identifier for one chunk of a file.
func ChunkID(fileID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%d", fileID, index))).String()
}
