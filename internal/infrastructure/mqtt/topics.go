package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the service uses.
const TopicPrefix = "dimmersync"

// Command names accepted on the command topics.
const (
	CommandSync = "sync"
	CommandPing = "ping"
)

// Topics provides builders for the service's MQTT topics.
//
//	dimmersync/status             retained online/offline status (LWT)
//	dimmersync/command/{name}     sync and ping requests
//	dimmersync/leds               retained current LED table
//	dimmersync/runs/{kind}        result of each reconcile or ping run
type Topics struct{}

// SystemStatus returns the status topic used for the LWT.
//
// Example: dimmersync/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/status"
}

// Command returns the topic for a named command.
//
// Example: dimmersync/command/sync
func (Topics) Command(name string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, name)
}

// LEDs returns the retained LED table topic.
//
// Example: dimmersync/leds
func (Topics) LEDs() string {
	return TopicPrefix + "/leds"
}

// Runs returns the run result topic for a run kind.
//
// Example: dimmersync/runs/reconcile
func (Topics) Runs(kind string) string {
	return fmt.Sprintf("%s/runs/%s", TopicPrefix, kind)
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: dimmersync/command/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// AllRuns returns a pattern matching every run result topic.
//
// Pattern: dimmersync/runs/+
func (Topics) AllRuns() string {
	return TopicPrefix + "/runs/+"
}

// CommandName extracts the command name from a command topic.
// It returns false for topics outside dimmersync/command/.
func (Topics) CommandName(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, TopicPrefix+"/command/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
