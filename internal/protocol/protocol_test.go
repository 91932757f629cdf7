package protocol

import (
	"testing"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("compile schemas: %v", err)
	}
	return v
}

func TestValidateHello(t *testing.T) {
	v := newValidator(t)
	msg, err := v.ValidateHello([]byte(`{
	  "type": "HELLO",
	  "protocol_version": "1.0",
	  "observer_name": "townwatch",
	  "topic": "region:plaza"
	}`))
	if err != nil {
		t.Fatalf("valid hello rejected: %v", err)
	}
	if msg.ObserverName != "townwatch" || msg.Topic != "region:plaza" {
		t.Fatalf("decoded hello: %+v", msg)
	}
}

func TestValidateHelloRejections(t *testing.T) {
	v := newValidator(t)
	cases := map[string]string{
		"missing name":   `{"type":"HELLO","protocol_version":"1.0"}`,
		"wrong type":     `{"type":"COMMAND","protocol_version":"1.0","observer_name":"x"}`,
		"bad topic":      `{"type":"HELLO","protocol_version":"1.0","observer_name":"x","topic":"everything"}`,
		"extra field":    `{"type":"HELLO","protocol_version":"1.0","observer_name":"x","debug":true}`,
		"not an object":  `"HELLO"`,
		"malformed json": `{"type":`,
	}
	for name, raw := range cases {
		if _, err := v.ValidateHello([]byte(raw)); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	v := newValidator(t)
	msg, err := v.ValidateCommand([]byte(`{"type":"COMMAND","action":"set_speed","speed":2.5}`))
	if err != nil {
		t.Fatalf("valid command rejected: %v", err)
	}
	if msg.Action != ActionSetSpeed || msg.Speed != 2.5 {
		t.Fatalf("decoded command: %+v", msg)
	}
	for _, action := range []string{ActionPause, ActionResume, ActionStop, ActionSpeedUp, ActionSlowDown} {
		raw := `{"type":"COMMAND","action":"` + action + `"}`
		if _, err := v.ValidateCommand([]byte(raw)); err != nil {
			t.Fatalf("action %s rejected: %v", action, err)
		}
	}
}

func TestValidateCommandRejections(t *testing.T) {
	v := newValidator(t)
	cases := map[string]string{
		"unknown action":          `{"type":"COMMAND","action":"explode"}`,
		"set_speed without speed": `{"type":"COMMAND","action":"set_speed"}`,
		"zero speed":              `{"type":"COMMAND","action":"set_speed","speed":0}`,
		"extra field":             `{"type":"COMMAND","action":"pause","force":true}`,
	}
	for name, raw := range cases {
		if _, err := v.ValidateCommand([]byte(raw)); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestDecodeBase(t *testing.T) {
	base, err := DecodeBase([]byte(`{"type":"HELLO","protocol_version":"1.0","observer_name":"x"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if base.Type != TypeHello || base.ProtocolVersion != "1.0" {
		t.Fatalf("base envelope: %+v", base)
	}
}
