package homeassistant

import "encoding/json"

// Message types.
const (
	typeAuthRequired = "auth_required"
	typeAuth         = "auth"
	typeAuthOK       = "auth_ok"
	typeAuthInvalid  = "auth_invalid"
	typeResult       = "result"
	typeEvent        = "event"
	typePong         = "pong"

	// typeDisconnected is delivered to pending requests when the socket drops.
	// It never appears on the wire.
	typeDisconnected = "_disconnected"
)

// Commands.
const (
	cmdPing                = "ping"
	cmdSubscribeEvents     = "subscribe_events"
	cmdGetStates           = "get_states"
	cmdDeviceRegistryList  = "config/device_registry/list"
	cmdGetConfigParameters = "zwave_js/get_config_parameters"
	cmdSetConfigParameter  = "zwave_js/set_config_parameter"
	cmdRefreshNodeValues   = "zwave_js/refresh_node_values"
	cmdRefreshNodeCCValues = "zwave_js/refresh_node_cc_values"

	eventStateChanged = "state_changed"
)

// message is any frame received from Home Assistant.
type message struct {
	ID        int64           `json:"id,omitempty"`
	Type      string          `json:"type"`
	Success   *bool           `json:"success,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *resultError    `json:"error,omitempty"`
	Event     *event          `json:"event,omitempty"`
	HAVersion string          `json:"ha_version,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type resultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type stateChangedData struct {
	EntityID string       `json:"entity_id"`
	NewState *entityState `json:"new_state"`
}

type entityState struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// setParameterResult is the flat set_config_parameter result.
type setParameterResult struct {
	Status string `json:"status"`
}
