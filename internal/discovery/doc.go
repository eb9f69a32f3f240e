// Package discovery caches filtered device lists fetched from the device
// registry.
//
// Listing every device in the registry is a full round trip, so a Cache
// remembers the filtered result for a validity window and only rediscovers
// once the window has elapsed. The window is measured with the monotonic
// clock carried by time.Now, so wall clock adjustments do not shorten or
// extend it.
//
// A Cache holds one filtered list. Use one Cache per predicate (for example
// one for dimmers and one for ping targets).
package discovery
