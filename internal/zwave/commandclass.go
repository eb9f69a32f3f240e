package zwave

import (
	"fmt"
	"strconv"
)

// CommandClassID identifies a Z-Wave command class.
type CommandClassID int

// Command classes the service refers to.
const (
	CommandClassNoOperation      CommandClassID = 0
	CommandClassBasic            CommandClassID = 32
	CommandClassSwitchBinary     CommandClassID = 37
	CommandClassSwitchMultilevel CommandClassID = 38
	CommandClassSensorBinary     CommandClassID = 48
	CommandClassDoorLock         CommandClassID = 98
	CommandClassConfiguration    CommandClassID = 112
)

var commandClassNames = map[CommandClassID]string{
	CommandClassNoOperation:      "NoOperation",
	CommandClassBasic:            "Basic",
	CommandClassSwitchBinary:     "SwitchBinary",
	CommandClassSwitchMultilevel: "SwitchMultilevel",
	CommandClassSensorBinary:     "SensorBinary",
	CommandClassDoorLock:         "DoorLock",
	CommandClassConfiguration:    "Configuration",
}

// Valid reports whether id is one of the known command classes.
func (id CommandClassID) Valid() bool {
	_, ok := commandClassNames[id]
	return ok
}

func (id CommandClassID) String() string {
	if name, ok := commandClassNames[id]; ok {
		return name
	}
	return fmt.Sprintf("CommandClass(%d)", int(id))
}

// ParseCommandClass accepts a command class name ("SwitchMultilevel") or its
// decimal id ("38") and returns the id. Names are case-sensitive.
func ParseCommandClass(name string) (CommandClassID, error) {
	if n, err := strconv.Atoi(name); err == nil {
		if id := CommandClassID(n); id.Valid() {
			return id, nil
		}
	}
	for id, n := range commandClassNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("zwave: unknown command class %q", name)
}
