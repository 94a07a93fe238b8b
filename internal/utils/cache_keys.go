package utils

const taxonomyVersion = "v1"

// Taxonomy cache keys. TaxonomyKeys lists every key a tag mutation must invalidate.
var (
	TagsAllKey     = "tags:" + taxonomyVersion + ":all"
	TagsParentsKey = "tags:" + taxonomyVersion + ":parents"
	TagsTreeKey    = "tags:" + taxonomyVersion + ":tree"
)

func TaxonomyKeys() []string {
	return []string{TagsAllKey, TagsParentsKey, TagsTreeKey}
}
