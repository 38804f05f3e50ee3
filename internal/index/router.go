package index

// ShardOf maps a document id onto one of n shards. The policy is the sum of
// the id's codepoints mod n: deterministic, and dependent only on id and n,
// so writes and the update-miss point query always land on the same shard.
func ShardOf(id string, n int) int {
	sum := 0
	for _, r := range id {
		sum += int(r)
	}
	return sum % n
}
