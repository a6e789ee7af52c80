// Package command parses inbound control messages and dispatches them to the
// agent in arrival order.
package command

import (
	"encoding/json"
	"strings"
)

// Message keys, in precedence order.
const (
	KeyCamera = "camera"
	KeyIndex  = "index"
)

// CameraAction is the value of a camera command.
type CameraAction int

const (
	CameraUnknown CameraAction = iota
	CameraEnable
	CameraDisable
	CameraUse
)

func (a CameraAction) String() string {
	switch a {
	case CameraEnable:
		return "enable"
	case CameraDisable:
		return "disable"
	case CameraUse:
		return "use"
	default:
		return "unknown"
	}
}

// Command is one of CameraCommand, IndexCommand or UnknownCommand.
type Command interface {
	command()
}

// CameraCommand changes the monitoring state or forces a capture. Value holds
// the raw value when Action is CameraUnknown.
type CameraCommand struct {
	Action CameraAction
	Value  string
}

// IndexCommand enrolls the current view under Name.
type IndexCommand struct {
	Name string
}

// UnknownCommand is any payload that is not a camera or index command,
// including payloads that are not JSON objects.
type UnknownCommand struct {
	Raw    string
	Reason string
}

func (CameraCommand) command()  {}
func (IndexCommand) command()   {}
func (UnknownCommand) command() {}

// Parse decodes a message body. It never fails: unrecognized input is
// returned as an UnknownCommand.
func Parse(payload []byte) Command {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return UnknownCommand{Raw: string(payload), Reason: "invalid JSON: " + err.Error()}
	}

	if raw, ok := fields[KeyCamera]; ok {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return CameraCommand{Action: CameraUnknown, Value: strings.TrimSpace(string(raw))}
		}
		switch v {
		case "enable":
			return CameraCommand{Action: CameraEnable, Value: v}
		case "disable":
			return CameraCommand{Action: CameraDisable, Value: v}
		case "use":
			return CameraCommand{Action: CameraUse, Value: v}
		default:
			return CameraCommand{Action: CameraUnknown, Value: v}
		}
	}

	if raw, ok := fields[KeyIndex]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return UnknownCommand{Raw: string(payload), Reason: "index name is not a string"}
		}
		return IndexCommand{Name: name}
	}

	return UnknownCommand{Raw: string(payload), Reason: "no camera or index key"}
}
