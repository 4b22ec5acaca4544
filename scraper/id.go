package scraper

import (
	"crypto/sha1"

	"github.com/gofrs/uuid"
)

// LogNoToID derives the work id for a blog post. The id is the SHA-1 of
// "naver-blog-<blogID>-<logNo>" with UUID version 5 and RFC 4122 variant
// bits set, so re-running an import updates the same works.
func LogNoToID(blogID, logNo string) string {
	sum := sha1.Sum([]byte("naver-blog-" + blogID + "-" + logNo))
	var u uuid.UUID
	copy(u[:], sum[:16])
	u.SetVersion(uuid.V5)
	u.SetVariant(uuid.VariantRFC4122)
	return u.String()
}
