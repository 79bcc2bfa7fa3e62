package pubgapi

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"slices"
	"strings"
)

// MaxBatchSize is the most players the API accepts in one filter
const MaxBatchSize = 10

// chunks splits items into consecutive groups of at most MaxBatchSize, keeping their order
func chunks(items []string) [][]string {
	result := [][]string{}
	for chunk := range slices.Chunk(items, MaxBatchSize) {
		result = append(result, chunk)
	}
	return result
}

func contentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// joinFilter joins the values of a filter[...] query parameter
func joinFilter(values []string) string {
	escaped := make([]string, 0, len(values))
	for _, value := range values {
		escaped = append(escaped, url.QueryEscape(value))
	}
	return strings.Join(escaped, ",")
}
