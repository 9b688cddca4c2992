package anthropic

// BuildCachedSystemBlocks splits a system prompt into a static part marked
// for prompt caching and an uncached per-request part.
func BuildCachedSystemBlocks(static, dynamic string) []SystemBlock {
	blocks := []SystemBlock{{Text: static, CacheControl: &CacheControl{TTL: "5m"}}}
	if dynamic != "" {
		blocks = append(blocks, SystemBlock{Text: dynamic})
	}
	return blocks
}
