// Package config loads config.yaml for the dimmer sync service.
//
// Load reads the file, applies defaults for anything left out, lets
// DIMMERSYNC_* environment variables override it and then validates the
// result. Every validation problem is reported in one error, so a bad file
// can be fixed in a single pass.
//
// Keep credentials out of the file where possible:
//
//	DIMMERSYNC_HA_TOKEN       home_assistant.token
//	DIMMERSYNC_JWT_SECRET     security.jwt.secret
//	DIMMERSYNC_MQTT_PASSWORD  mqtt.auth.password
//	DIMMERSYNC_INFLUXDB_TOKEN influxdb.token
//
//	cfg, err := config.Load(getConfigPath())
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
package config
