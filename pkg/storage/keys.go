package storage

import "fmt"

// Key schema for Pebble storage. Each user's data is a handful of whole
// JSON documents keyed by email:
//
//   usr:<email> → account record (credentials, created-at)
//   ord:<email> → UserOrders document (buyOrders, sellOrders, trash)
//   wl:<email>  → watchlist (list of symbols)
//
// Emails are unique per user, so no further qualification is needed.
const (
	prefixUser      = "usr:"
	prefixOrders    = "ord:"
	prefixWatchlist = "wl:"
)

func userKey(email string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixUser, email))
}

func ordersKey(email string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixOrders, email))
}

func watchlistKey(email string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixWatchlist, email))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
