// ABOUTME: Per-run deduplication of normalized identity records
// ABOUTME: First occurrence wins, so input order decides which record survives
package identity

// Dedupe keeps the first record for each Key and drops the rest, preserving
// order. Callers feed records newest-first so the most recent deal per person
// survives. Records without a key are dropped.
func Dedupe(records []NormalizedRecord) (kept []NormalizedRecord, dropped int) {
	seen := make(map[string]struct{}, len(records))
	kept = make([]NormalizedRecord, 0, len(records))

	for _, r := range records {
		key := r.Key()
		if key == "" {
			dropped++
			continue
		}
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, r)
	}

	return kept, dropped
}
