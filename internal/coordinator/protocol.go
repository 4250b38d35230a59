package coordinator

import (
	"fmt"
	"strings"
)

// Command names a request sent to the coordinator server.
type Command string

const (
	CommandOpen           Command = "open"
	CommandUpdateFromHost Command = "update_from_host"
	CommandUpdateHost     Command = "update_host"
	CommandExecuteScript  Command = "execute_script"
)

const (
	payloadTool   = "tool"
	payloadScript = "script"
)

// Message is one framed request. Payload keys depend on the command.
type Message struct {
	Command   Command           `cbor:"command"`
	Payload   map[string]string `cbor:"payload,omitempty"`
	RequestID string            `cbor:"request_id,omitempty"`
}

// OpenTool asks the server to open tool.
func OpenTool(tool string) Message {
	return Message{Command: CommandOpen, Payload: map[string]string{payloadTool: tool}}
}

// UpdateFromHost tells open tools that host state changed.
func UpdateFromHost() Message {
	return Message{Command: CommandUpdateFromHost}
}

// UpdateHost asks the server to push tool state into the host.
func UpdateHost() Message {
	return Message{Command: CommandUpdateHost}
}

// ExecuteScript asks the server to run script text in the host.
func ExecuteScript(script string) Message {
	return Message{Command: CommandExecuteScript, Payload: map[string]string{payloadScript: script}}
}

// Tool returns the tool named by an open message.
func (m Message) Tool() string {
	return strings.ToLower(strings.TrimSpace(m.Payload[payloadTool]))
}

// Script returns the script carried by an execute message.
func (m Message) Script() string {
	return m.Payload[payloadScript]
}

// Validate checks that the command is known and carries its payload.
func (m Message) Validate() error {
	switch m.Command {
	case CommandOpen:
		if m.Tool() == "" {
			return fmt.Errorf("%s: tool name required", m.Command)
		}
	case CommandExecuteScript:
		if strings.TrimSpace(m.Script()) == "" {
			return fmt.Errorf("%s: script required", m.Command)
		}
	case CommandUpdateFromHost, CommandUpdateHost:
	default:
		return fmt.Errorf("unknown command %q", m.Command)
	}
	return nil
}
