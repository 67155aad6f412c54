package syncdb

import "github.com/dmitrijs2005/userdb/internal/provider"

// IsUpToDate reports whether the cached copy may be used as is. It requires
// the cache to exist and both timestamps to be known and identical.
func IsUpToDate(cacheExists bool, remembered, current provider.Timestamp) bool {
	if !cacheExists {
		return false
	}
	return remembered.Equal(current)
}
