package cache

import (
	"crypto/md5" // #nosec G501 - short non-security fingerprints for cache key components
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/text-mesh/text-mesh/pkg/cache/monitoring"
)

// KeyPrefix is the namespace shared by every key this cache writes
const KeyPrefix = "ai_cache:"

// keyComponentSanitizer strips the separator characters out of raw text so a
// text component can never be confused with a key delimiter.
var keyComponentSanitizer = strings.NewReplacer("|", "_", ":", "_")

// KeyGenerator builds deterministic cache keys from the request tuple
// (text, operation, options, question). Short texts are embedded directly;
// long texts are replaced with a truncated SHA-256 content hash so keys stay
// compact regardless of input size.
//
// Keys are order-independent over options: the options map is sorted by key
// before hashing, so two maps with the same contents always produce the same
// cache key.
type KeyGenerator struct {
	textHashThreshold int
	monitor           *monitoring.PerformanceMonitor
}

// NewKeyGenerator creates a key generator. The monitor is optional; when
// present, every generation records its duration against it.
func NewKeyGenerator(textHashThreshold int, monitor *monitoring.PerformanceMonitor) *KeyGenerator {
	if textHashThreshold <= 0 {
		textHashThreshold = DefaultConfig().TextHashThreshold
	}
	return &KeyGenerator{
		textHashThreshold: textHashThreshold,
		monitor:           monitor,
	}
}

// GenerateCacheKey returns the cache key for one request tuple. The key has
// the form:
//
//	ai_cache:op:<operation>|txt:<text-or-hash>[|opts:<hash>][|q:<hash>]
//
// Identical inputs always produce identical keys.
func (g *KeyGenerator) GenerateCacheKey(text, operation string, options map[string]interface{}, question string) string {
	start := time.Now()

	textComponent, hashed := g.textComponent(text)

	components := make([]string, 0, 4)
	components = append(components, "op:"+operation)
	components = append(components, "txt:"+textComponent)

	if len(options) > 0 {
		components = append(components, "opts:"+shortHash(canonicalOptions(options)))
	}
	if question != "" {
		components = append(components, "q:"+shortHash(question))
	}

	key := KeyPrefix + strings.Join(components, "|")

	if g.monitor != nil {
		tier := "small"
		if hashed {
			tier = "large"
		}
		g.monitor.RecordKeyGenerationTime(time.Since(start), len(text), operation, map[string]interface{}{
			"text_tier":    tier,
			"has_options":  len(options) > 0,
			"has_question": question != "",
		})
	}

	return key
}

// textComponent returns the txt component and whether the text was hashed
func (g *KeyGenerator) textComponent(text string) (string, bool) {
	if len(text) <= g.textHashThreshold {
		return keyComponentSanitizer.Replace(text), false
	}

	// Length and word count are mixed into the hash for uniqueness and to
	// make collisions between near-identical long texts less likely.
	h := sha256.New()
	h.Write([]byte(text))
	fmt.Fprintf(h, "len:%d", len(text))
	fmt.Fprintf(h, "words:%d", len(strings.Fields(text)))

	return "hash:" + hex.EncodeToString(h.Sum(nil))[:16], true
}

// canonicalOptions renders an options map as "k=v&k=v..." sorted by key so
// insertion order never affects the generated key.
func canonicalOptions(options map[string]interface{}) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, options[k]))
	}
	return strings.Join(pairs, "&")
}

// shortHash returns the first 8 hex characters of the MD5 of s. 32 bits is
// plenty for distinguishing option sets and questions within one text's keys.
func shortHash(s string) string {
	sum := md5.Sum([]byte(s)) // #nosec G401 - fingerprint, not authentication
	return hex.EncodeToString(sum[:])[:8]
}
