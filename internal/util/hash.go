package util

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// ContentHash computes the xxh3 digest of a string.
func ContentHash(content string) uint64 {
	return xxh3.HashString(content)
}

// ContentKey renders ContentHash as 16 lowercase hex digits.
func ContentKey(content string) string {
	key := strconv.FormatUint(ContentHash(content), 16)
	for len(key) < 16 {
		key = "0" + key
	}
	return key
}
