// Package zwave contains the Z-Wave JS configuration-parameter codec used to
// talk to HomeSeer dimmers through a device registry.
//
// Configuration parameters are addressed by strings of the form
//
//	{nodeId}-112-0-{property}[-{propertyKey}]
//
// where 112 is the Configuration command class and 0 the endpoint. The
// status LED parameters of the HS-WD200+ and HS-WX300 are:
//
//	13      custom status mode (0 = normal, 1 = status mode)
//	21..27  LED colour, bottom LED first
//	30      blink frequency
//	31      blink bitmask, one propertyKey bit per LED (1<<index)
//
// Values come back as a tagged Parameter. DecodeEnumerated and DecodeInt
// check the tag and fail explicitly rather than guessing a default.
//
// The Registry interface is the contract the reconciliation and ping engines
// use to reach devices; internal/homeassistant provides the implementation.
package zwave
