package core

import (
	"gopdac/protocol"
	"testing"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var value uint32
	id := registry.Register("dac_write", "oid=%c value=%c", func(data *[]byte) error {
		oid, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		v, err := protocol.DecodeVLQUint(data)
		value = oid<<8 | v
		return err
	})
	if id != 0 {
		t.Errorf("Expected first id 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok || cmd.Name != "dac_write" {
		t.Fatalf("GetCommand(%d) = %v, %v", id, cmd, ok)
	}
	if sig := cmd.Signature(); sig != "dac_write oid=%c value=%c" {
		t.Errorf("Signature = %q", sig)
	}

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 3)
	protocol.EncodeVLQUint(out, 200)
	data := out.Result()
	if err := registry.Dispatch(id, &data); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if value != 3<<8|200 {
		t.Errorf("Handler decoded %#x", value)
	}

	if err := registry.Dispatch(42, &data); err == nil {
		t.Error("Expected error for unknown command id")
	}
}

func TestCommandRegistryOrder(t *testing.T) {
	registry := NewCommandRegistry()

	ids := []uint16{
		registry.Register("identify_response", "offset=%u data=%*s", nil),
		registry.Register("identify", "offset=%u count=%c", func(*[]byte) error { return nil }),
		registry.Register("dac_status", "oid=%c code=%c", nil),
	}
	for i, id := range ids {
		if id != uint16(i) {
			t.Errorf("Entry %d got id %d", i, id)
		}
	}

	if again := registry.Register("identify", "ignored", nil); again != 1 {
		t.Errorf("Re-registering returned id %d", again)
	}
	if registry.Count() != 3 {
		t.Errorf("Count = %d", registry.Count())
	}
	if cmd, _ := registry.GetCommandByName("identify"); cmd.IsResponse() {
		t.Error("First registration was replaced")
	}
}

func TestDispatchResponseID(t *testing.T) {
	registry := NewCommandRegistry()
	id := registry.Register("dac_transfer_done", "oid=%c status=%c", nil)

	var data []byte
	if err := registry.Dispatch(id, &data); err != ErrNotACommand {
		t.Errorf("Dispatch to a response returned %v", err)
	}
}

func TestCommandsAndResponses(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register("get_clock", "", func(*[]byte) error { return nil })
	registry.Register("clock", "clock=%u", nil)

	commands, responses := registry.GetCommandsAndResponses()
	if id, ok := commands["get_clock"]; !ok || id != 0 {
		t.Errorf("commands = %v", commands)
	}
	if id, ok := responses["clock clock=%u"]; !ok || id != 1 {
		t.Errorf("responses = %v", responses)
	}
}
