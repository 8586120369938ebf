package cache

import (
	"strings"
	"time"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

// Namespaces are the fixed leading segment of every key the registry builds.
const (
	NamespaceStorefront   = "storefront"
	NamespaceProducts     = "products"
	NamespaceProduct      = "product"
	NamespaceAnalytics    = "analytics"
	NamespaceUserStore    = "user-store"
	NamespaceStoreProfile = "store-profile"
)

// instantLayout keeps full precision; trailing zero nanoseconds are dropped.
const instantLayout = "20060102T150405.999999999Z"

// segmentEscaper percent-encodes the separator and every glob metacharacter so
// an identifier can neither add segments nor widen a SCAN pattern.
var segmentEscaper = strings.NewReplacer(
	"%", "%25",
	":", "%3A",
	"*", "%2A",
	"?", "%3F",
	"[", "%5B",
	"]", "%5D",
	`\`, "%5C",
	"/", "%2F",
)

// EscapeSegment returns s with reserved characters percent-encoded.
func EscapeSegment(s string) string {
	return segmentEscaper.Replace(s)
}

func buildKey(namespace string, segments ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, seg := range segments {
		b.WriteString(KeySeparator)
		b.WriteString(EscapeSegment(seg))
	}
	return b.String()
}

// StorefrontKey is the key of the public storefront payload for slug.
func StorefrontKey(slug string) string {
	return buildKey(NamespaceStorefront, slug)
}

// StoreProductsKey is the key of the product list of a store.
func StoreProductsKey(storeID string) string {
	return buildKey(NamespaceProducts, storeID)
}

// ProductKey is the key of a single product.
func ProductKey(productID string) string {
	return buildKey(NamespaceProduct, productID)
}

// UserStoreKey is the key of the user to store mapping.
func UserStoreKey(userID string) string {
	return buildKey(NamespaceUserStore, userID)
}

// StoreProfileKey is the key of the store profile.
func StoreProfileKey(storeID string) string {
	return buildKey(NamespaceStoreProfile, storeID)
}

// AnalyticsKey is the key of an analytics result for storeID over [start, end].
// Both bounds are encoded as exact UTC instants. Qualifiers (metric name, limit, a
// second window) become additional segments.
func AnalyticsKey(storeID string, start, end time.Time, qualifiers ...string) string {
	segments := make([]string, 0, 2+len(qualifiers))
	segments = append(segments, storeID, RangeSegment(start, end))
	for _, q := range qualifiers {
		if q != "" {
			segments = append(segments, q)
		}
	}
	return buildKey(NamespaceAnalytics, segments...)
}

// AnalyticsPattern is the SCAN pattern matching analytics keys of storeID.
// Without a suffix it matches every analytics key of the store; a suffix is
// appended verbatim and may contain glob characters.
func AnalyticsPattern(storeID string, suffix ...string) string {
	tail := "*"
	if len(suffix) > 0 && suffix[0] != "" {
		tail = suffix[0]
	}
	return buildKey(NamespaceAnalytics, storeID) + KeySeparator + tail
}

// RangeSegment formats a date range as two compact UTC instants, for example
// 20240101T000000Z-20240131T235959.999999999Z.
func RangeSegment(start, end time.Time) string {
	return start.UTC().Format(instantLayout) + "-" + end.UTC().Format(instantLayout)
}
