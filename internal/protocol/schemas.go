// internal/protocol/schemas.go
//
// Inbound messages are schema-validated before they touch the governor;
// a malformed observer can cost itself the connection but never the run.

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const helloSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "protocol_version", "observer_name"],
  "properties": {
    "type": {"const": "HELLO"},
    "protocol_version": {"type": "string", "minLength": 1},
    "observer_name": {"type": "string", "minLength": 1, "maxLength": 64},
    "topic": {"type": "string", "pattern": "^(all|region:[a-z0-9_-]+|citizen:[a-z0-9_-]+)$"}
  },
  "additionalProperties": false
}`

const commandSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "action"],
  "properties": {
    "type": {"const": "COMMAND"},
    "action": {"enum": ["pause", "resume", "stop", "set_speed", "speed_up", "slow_down"]},
    "speed": {"type": "number", "exclusiveMinimum": 0}
  },
  "additionalProperties": false,
  "if": {"properties": {"action": {"const": "set_speed"}}},
  "then": {"required": ["type", "action", "speed"]}
}`

// Validator checks inbound observer messages against their schemas.
type Validator struct {
	hello   *jsonschema.Schema
	command *jsonschema.Schema
}

// NewValidator compiles the inbound message schemas.
func NewValidator() (*Validator, error) {
	hello, err := jsonschema.CompileString("hello.schema.json", helloSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("protocol: compile hello schema: %w", err)
	}
	command, err := jsonschema.CompileString("command.schema.json", commandSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("protocol: compile command schema: %w", err)
	}
	return &Validator{hello: hello, command: command}, nil
}

// ValidateHello decodes and validates a HELLO payload.
func (v *Validator) ValidateHello(raw []byte) (HelloMsg, error) {
	if err := validate(v.hello, raw); err != nil {
		return HelloMsg{}, fmt.Errorf("protocol: invalid HELLO: %w", err)
	}
	var msg HelloMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return HelloMsg{}, fmt.Errorf("protocol: decode HELLO: %w", err)
	}
	return msg, nil
}

// ValidateCommand decodes and validates a COMMAND payload.
func (v *Validator) ValidateCommand(raw []byte) (CommandMsg, error) {
	if err := validate(v.command, raw); err != nil {
		return CommandMsg{}, fmt.Errorf("protocol: invalid COMMAND: %w", err)
	}
	var msg CommandMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return CommandMsg{}, fmt.Errorf("protocol: decode COMMAND: %w", err)
	}
	return msg, nil
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return err
	}
	return schema.Validate(value)
}
