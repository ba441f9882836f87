// Package grouping partitions a flat artifact listing into per-claim bundles.
package grouping

import (
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"claimflow/internal/domain"
)

// Delimiter separates the claim token from the side token in artifact names.
const Delimiter = "_"

// SkipReason explains why an artifact was left out of every bundle.
type SkipReason string

const (
	SkipUnsupportedExtension SkipReason = "unsupported_extension"
	SkipTooFewTokens         SkipReason = "too_few_tokens"
	SkipUnknownSide          SkipReason = "unknown_side"
)

// Skipped is an artifact that grouping ignored.
type Skipped struct {
	Key    string     `json:"key"`
	Reason SkipReason `json:"reason"`
}

// Result is the outcome of one grouping pass. Complete and Incomplete are
// sorted by claim ID; only Complete bundles may be sent to extraction.
type Result struct {
	Complete   []domain.ClaimBundle `json:"complete"`
	Incomplete []domain.ClaimBundle `json:"incomplete"`
	Skipped    []Skipped            `json:"skipped"`
}

// Group builds claim bundles from artifact keys named
// <claim>_<side>.<jpg|jpeg>. Keys may carry a path prefix.
//
// Keys are processed in lexical order so the result never depends on the
// order of the listing. When a claim has two artifacts for the same side the
// later key in that order wins.
func Group(keys []string) Result {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	bundles := map[string]*domain.ClaimBundle{}
	var res Result

	for _, key := range sorted {
		claimID, side, reason, ok := parseKey(key)
		if !ok {
			zap.L().Info("grouping.Group: skipping artifact",
				zap.String("key", key), zap.String("reason", string(reason)))
			res.Skipped = append(res.Skipped, Skipped{Key: key, Reason: reason})
			continue
		}

		b, exists := bundles[claimID]
		if !exists {
			b = &domain.ClaimBundle{ClaimID: claimID, Sides: map[domain.ImageSide]string{}}
			bundles[claimID] = b
		}
		if prev, dup := b.Sides[side]; dup {
			zap.L().Info("grouping.Group: duplicate side, keeping later artifact",
				zap.String("claim_id", claimID), zap.String("side", string(side)),
				zap.String("replaced", prev), zap.String("kept", key))
		}
		b.Sides[side] = key
	}

	ids := make([]string, 0, len(bundles))
	for id := range bundles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b := *bundles[id]
		if b.Complete() {
			res.Complete = append(res.Complete, b)
		} else {
			zap.L().Info("grouping.Group: incomplete bundle dropped",
				zap.String("claim_id", id), zap.Int("sides", len(b.Sides)))
			res.Incomplete = append(res.Incomplete, b)
		}
	}
	return res
}

// parseKey extracts the claim ID and side from an artifact key.
func parseKey(key string) (string, domain.ImageSide, SkipReason, bool) {
	base := path.Base(key)
	ext := path.Ext(base)
	if _, ok := domain.AllowedExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]; !ok || ext == "" {
		return "", "", SkipUnsupportedExtension, false
	}

	tokens := strings.Split(strings.TrimSuffix(base, ext), Delimiter)
	if len(tokens) < 2 || tokens[0] == "" {
		return "", "", SkipTooFewTokens, false
	}

	side, ok := domain.ParseImageSide(tokens[1])
	if !ok {
		return "", "", SkipUnknownSide, false
	}
	return tokens[0], side, "", true
}

// ClaimID returns the claim token of an artifact key that follows the naming
// contract, or the file name without its extension otherwise.
func ClaimID(key string) string {
	if id, _, _, ok := parseKey(key); ok {
		return id
	}
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Sibling returns the key of the other side of the same claim, keeping the
// key's directory, any extra name tokens and its extension. It reports false
// when key does not follow the naming contract.
func Sibling(key string) (string, bool) {
	_, side, _, ok := parseKey(key)
	if !ok {
		return "", false
	}
	other := domain.SideBack
	if side == domain.SideBack {
		other = domain.SideFront
	}
	dir, base := path.Split(key)
	ext := path.Ext(base)
	tokens := strings.Split(strings.TrimSuffix(base, ext), Delimiter)
	tokens[1] = string(other)
	return dir + strings.Join(tokens, Delimiter) + ext, true
}
