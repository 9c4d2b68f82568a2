package core

import (
	"gopdac/protocol"
	"sync/atomic"
)

// firmwareState is what a host session negotiates with the firmware. DAC
// objects live outside it and survive a reconnect.
type firmwareState struct {
	configCRC    uint32 // atomic
	shutdown     uint32 // atomic bool
	resetPending uint32 // atomic bool
}

var session firmwareState

var (
	globalTransport    *protocol.Transport
	globalResetHandler func()
)

// InitCoreCommands registers the session commands. identify_response and
// identify must take ids 0 and 1: the host decodes them before it has a
// dictionary.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("config_reset", "", handleConfigReset)
	RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
	RegisterCommand("allocate_oids", "count=%c", handleAllocateOids)
	RegisterCommand("emergency_stop", "", handleEmergencyStop)
	RegisterCommand("reset", "", handleReset)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c")
	RegisterResponse("shutdown", "clock=%u static_string_id=%hu")
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// handleIdentify sends one chunk of the dictionary
// Format: identify offset=%u count=%c
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetUptime(*[]byte) error {
	uptime := GetUptime()
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

// handleGetClock reports the clock queue_dac_write deadlines are set against
func handleGetClock(*[]byte) error {
	now := GetTime()
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, now)
	})
	return nil
}

func handleGetConfig(*[]byte) error {
	crc := atomic.LoadUint32(&session.configCRC)
	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolArg(crc != 0))
		protocol.EncodeVLQUint(output, crc)
		protocol.EncodeVLQUint(output, boolArg(IsShutdown()))
	})
	return nil
}

func handleConfigReset(*[]byte) error {
	atomic.StoreUint32(&session.configCRC, 0)
	return nil
}

func handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&session.configCRC, crc)
	return nil
}

// handleAllocateOids accepts the count for host compatibility. DAC objects
// are stored sparsely, so nothing is reserved.
func handleAllocateOids(data *[]byte) error {
	_, err := protocol.DecodeVLQUint(data)
	return err
}

func handleEmergencyStop(*[]byte) error {
	TryShutdown("emergency_stop")
	return nil
}

// TryShutdown silences every DAC output and reports the shutdown once.
// Targets call it on fatal hardware faults.
func TryShutdown(reason string) {
	if !atomic.CompareAndSwapUint32(&session.shutdown, 0, 1) {
		return
	}
	ShutdownAllDAC()
	DebugPrintln("[SHUTDOWN] " + reason)
	DumpTimingRing()
	SendResponse("shutdown", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, GetTime())
		protocol.EncodeVLQUint(output, 0)
	})
}

// IsShutdown reports whether TryShutdown has run since the last reset
func IsShutdown() bool {
	return atomic.LoadUint32(&session.shutdown) != 0
}

// ResetFirmwareState clears the session state when a host reconnects.
// Configured DAC objects and their buffers are kept.
func ResetFirmwareState() {
	atomic.StoreUint32(&session.configCRC, 0)
	atomic.StoreUint32(&session.shutdown, 0)
}

// SendResponse encodes a registered response onto the global transport.
// It is a no-op until SetGlobalTransport has been called.
func SendResponse(name string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(name)
	if !ok {
		panic("response not registered: " + name)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

// SetGlobalTransport sets the transport responses are sent on
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// SetResetHandler sets the platform reset, usually the watchdog
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// handleReset only flags the request; the ACK has to leave first
func handleReset(*[]byte) error {
	atomic.StoreUint32(&session.resetPending, 1)
	return nil
}

// CheckPendingReset resets the MCU if the host asked for it. The main loop
// calls it once the transmit buffer has drained.
func CheckPendingReset() {
	if atomic.LoadUint32(&session.resetPending) != 0 && globalResetHandler != nil {
		globalResetHandler()
	}
}
