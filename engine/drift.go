package engine

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// DriftThreshold is the Hamming distance above which a rendered page is
// considered structurally different from its static version.
const DriftThreshold = 10

// StructureFingerprint computes a 64-bit SimHash over 3-tag shingles of the
// document's start tags. Text and attributes are ignored, so it compares
// markup structure only.
func StructureFingerprint(htmlStr string) uint64 {
	tags := startTags(htmlStr)
	if len(tags) == 0 {
		return 0
	}
	tokens := shingles(tags, 3)
	if len(tokens) == 0 {
		tokens = tags
	}
	return simhash(tokens)
}

// Drift returns the Hamming distance between the structure fingerprints of
// two documents.
func Drift(a, b string) int {
	return bits.OnesCount64(StructureFingerprint(a) ^ StructureFingerprint(b))
}

func simhash(tokens []string) uint64 {
	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}
	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

func startTags(htmlStr string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	var tags []string
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			tags = append(tags, string(tn))
		}
	}
}

func shingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		out = append(out, strings.Join(tokens[i:i+n], "_"))
	}
	return out
}
