package badger

import (
	"fmt"
	"strconv"
	"strings"
)

// Key prefixes for different data types
const (
	contentItemPrefix   = "conitm"
	sessionRecordPrefix = "sesrec"
	transcriptPrefix    = "sestrn"
)

// sessionGenerationKey holds the generation that session keys are read from.
const sessionGenerationKey = "sesgen"

// makeContentKey generates a key for a content item by ID.
func makeContentKey(id string) []byte {
	return []byte(contentItemPrefix + ":" + id)
}

// generationPrefix returns the iteration prefix for one generation of a
// session key family: family:<16 hex digits>:
func generationPrefix(family string, gen uint64) []byte {
	return fmt.Appendf(nil, "%s:%016x:", family, gen)
}

func makeSessionRecordKey(gen uint64, id string) []byte {
	return append(generationPrefix(sessionRecordPrefix, gen), id...)
}

func makeTranscriptKey(gen uint64, id string) []byte {
	return append(generationPrefix(transcriptPrefix, gen), id...)
}

// keyGeneration parses the generation out of a session key. Keys without a
// readable generation report false.
func keyGeneration(family string, key []byte) (uint64, bool) {
	rest, ok := strings.CutPrefix(string(key), family+":")
	if !ok {
		return 0, false
	}
	hex, _, ok := strings.Cut(rest, ":")
	if !ok || len(hex) != 16 {
		return 0, false
	}
	gen, err := strconv.ParseUint(hex, 16, 64)
	return gen, err == nil
}

func encodeGeneration(gen uint64) []byte {
	return fmt.Appendf(nil, "%016x", gen)
}

func decodeGeneration(val []byte) (uint64, error) {
	return strconv.ParseUint(string(val), 16, 64)
}

// prefixOf returns the iteration prefix for a key family.
func prefixOf(family string) []byte {
	return []byte(family + ":")
}

// idFromKey strips prefix from key.
func idFromKey(prefix, key []byte) string {
	return string(key[len(prefix):])
}
