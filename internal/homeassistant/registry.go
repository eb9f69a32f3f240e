package homeassistant

import (
	"context"

	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// Client implements zwave.Registry over the Z-Wave JS websocket commands.
var _ zwave.Registry = (*Client)(nil)

// ListDevices returns the Home Assistant device registry.
func (c *Client) ListDevices(ctx context.Context) ([]zwave.Device, error) {
	var devices []zwave.Device
	if err := c.call(ctx, cmdDeviceRegistryList, nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetConfigurationParameters returns a device's configuration parameters
// keyed by "<node>-<class>-<endpoint>-<property>[-<key>]".
func (c *Client) GetConfigurationParameters(ctx context.Context, device zwave.Device) (map[string]zwave.Parameter, error) {
	params := make(map[string]zwave.Parameter)
	err := c.call(ctx, cmdGetConfigParameters, map[string]any{"device_id": device.ID}, &params)
	if err != nil {
		return nil, err
	}
	return params, nil
}

// SetConfigurationParameter writes one configuration parameter and returns
// the status Home Assistant reports ("accepted" on success).
func (c *Client) SetConfigurationParameter(ctx context.Context, device zwave.Device, property int, propertyKey *int, value string) (string, error) {
	fields := map[string]any{
		"device_id": device.ID,
		"property":  property,
		"value":     value,
	}
	if propertyKey != nil {
		fields["property_key"] = *propertyKey
	}

	var result setParameterResult
	if err := c.call(ctx, cmdSetConfigParameter, fields, &result); err != nil {
		return "", err
	}
	return result.Status, nil
}

// RefreshValues asks the node to report all of its values.
func (c *Client) RefreshValues(ctx context.Context, device zwave.Device) error {
	return c.call(ctx, cmdRefreshNodeValues, map[string]any{"device_id": device.ID}, nil)
}

// RefreshCommandClassValues asks the node to report one command class.
func (c *Client) RefreshCommandClassValues(ctx context.Context, device zwave.Device, commandClass zwave.CommandClassID) error {
	return c.call(ctx, cmdRefreshNodeCCValues, map[string]any{
		"device_id":        device.ID,
		"command_class_id": int(commandClass),
	}, nil)
}
