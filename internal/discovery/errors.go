package discovery

import "errors"

// ErrDiscoveryFailed is returned when the device registry cannot be listed.
var ErrDiscoveryFailed = errors.New("discovery: listing devices failed")
