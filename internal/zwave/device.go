package zwave

import (
	"context"
	"strconv"
	"strings"
)

// VendorNamespace is the identifier namespace Z-Wave JS uses in the device registry.
const VendorNamespace = "zwave_js"

// Device is a device registry entry as of the last discovery.
//
// Identifiers are (namespace, vendor id) pairs; for Z-Wave JS devices the
// vendor id is "{homeId}-{nodeId}" with optional suffixes.
type Device struct {
	ID           string     `json:"id"`
	AreaID       string     `json:"area_id"`
	Name         string     `json:"name"`
	NameByUser   string     `json:"name_by_user"`
	Manufacturer string     `json:"manufacturer"`
	Model        string     `json:"model"`
	Identifiers  [][]string `json:"identifiers"`
}

// DisplayName returns the user-assigned name when present.
func (d Device) DisplayName() string {
	if d.NameByUser != "" {
		return d.NameByUser
	}
	return d.Name
}

// Clone returns a deep copy of the device.
func (d Device) Clone() Device {
	c := d
	if d.Identifiers != nil {
		c.Identifiers = make([][]string, len(d.Identifiers))
		for i, pair := range d.Identifiers {
			c.Identifiers[i] = append([]string(nil), pair...)
		}
	}
	return c
}

// NodeID derives the Z-Wave node id from the device's first identifier.
//
// Returns a *NodeIDError (matching ErrNoNodeID) when the first identifier is
// missing, is not in the zwave_js namespace, or has no numeric second
// dash-separated component.
func NodeID(d Device) (int, error) {
	if len(d.Identifiers) == 0 {
		return 0, &NodeIDError{DeviceID: d.ID, Reason: "no identifiers"}
	}
	pair := d.Identifiers[0]
	if len(pair) < 2 {
		return 0, &NodeIDError{DeviceID: d.ID, Reason: "malformed identifier"}
	}
	if pair[0] != VendorNamespace {
		return 0, &NodeIDError{DeviceID: d.ID, Reason: "namespace " + strconv.Quote(pair[0])}
	}
	parts := strings.Split(pair[1], "-")
	if len(parts) < 2 {
		return 0, &NodeIDError{DeviceID: d.ID, Reason: "vendor id " + strconv.Quote(pair[1]) + " has no node component"}
	}
	node, err := strconv.Atoi(parts[1])
	if err != nil || node <= 0 {
		return 0, &NodeIDError{DeviceID: d.ID, Reason: "vendor id " + strconv.Quote(pair[1]) + " has a non-numeric node component"}
	}
	return node, nil
}

// Registry is the device registry round-trip contract.
//
// All methods are network calls and honour ctx cancellation.
type Registry interface {
	// ListDevices returns every device known to the registry.
	ListDevices(ctx context.Context) ([]Device, error)

	// GetConfigurationParameters returns the device's parameters keyed by address.
	GetConfigurationParameters(ctx context.Context, device Device) (map[string]Parameter, error)

	// SetConfigurationParameter writes one parameter and returns the
	// registry's status string ("accepted" on success).
	SetConfigurationParameter(ctx context.Context, device Device, property int, propertyKey *int, value string) (string, error)

	// RefreshValues asks the device to report all of its values.
	RefreshValues(ctx context.Context, device Device) error

	// RefreshCommandClassValues asks the device to report one command class.
	RefreshCommandClassValues(ctx context.Context, device Device, commandClass CommandClassID) error
}
