package core

import (
	"gopdac/protocol"
)

// DACBufferMax is the largest sample buffer a DAC object may allocate.
const DACBufferMax = 2048

// DACObject is a DAC channel configured by the host under an oid
type DACObject struct {
	OID     uint8
	Channel *Channel

	// Timer for queued writes
	Timer        Timer
	queuedValue  uint8
	timerErr     error
	timerPending bool

	// MCU-owned sample storage, filled by dac_buffer_load
	buf  []byte
	xfer *Transfer
	freq uint32
}

// Global registry of DAC objects
var dacObjects = make(map[uint8]*DACObject)

// InitDACCommands registers DAC-related commands with the command registry
func InitDACCommands() {
	RegisterCommand("config_dac", "oid=%c channel=%c", handleConfigDAC)
	RegisterCommand("dac_write", "oid=%c value=%c", handleDACWrite)
	RegisterCommand("queue_dac_write", "oid=%c clock=%u value=%c", handleQueueDACWrite)
	RegisterCommand("dac_noise", "oid=%c freq=%u", handleDACNoise)
	RegisterCommand("dac_triangle", "oid=%c freq=%u", handleDACTriangle)
	RegisterCommand("config_dac_buffer", "oid=%c size=%hu", handleConfigDACBuffer)
	RegisterCommand("dac_buffer_load", "oid=%c offset=%hu data=%*s", handleDACBufferLoad)
	RegisterCommand("dac_write_timed", "oid=%c count=%hu freq=%u mode=%c", handleDACWriteTimed)
	RegisterCommand("dac_query", "oid=%c", handleDACQuery)

	// Responses (MCU -> host)
	RegisterResponse("dac_status", "oid=%c code=%c")
	RegisterResponse("dac_state", "oid=%c mode=%c freq=%u active=%c")
	RegisterResponse("dac_transfer_done", "oid=%c status=%c")

	RegisterConstant("DAC_CHANNELS", DACChannels)
	RegisterConstant("DAC_BUFFER_MAX", DACBufferMax)
	RegisterEnumeration("dac_transfer_mode", TransferModeNames)
	RegisterEnumeration("dac_transfer_status", TransferStatusNames)
	RegisterEnumeration("dac_mode", ModeNames)
	RegisterEnumeration("dac_status", StatusNames)
}

// decodeArgs decodes n VLQ arguments in order
func decodeArgs(data *[]byte, n int) ([4]uint32, error) {
	var args [4]uint32
	for i := 0; i < n; i++ {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return args, err
		}
		args[i] = v
	}
	return args, nil
}

// sendDACStatus answers a DAC command with its result code
func sendDACStatus(oid uint8, err error) {
	if err != nil {
		DebugPrintln("[DAC] oid=" + itoa(int(oid)) + " " + err.Error())
	}
	code := StatusCode(err)
	SendResponse("dac_status", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, uint32(code))
	})
}

// lookupDAC finds a configured DAC object
func lookupDAC(oid uint32) (*DACObject, error) {
	obj, ok := dacObjects[uint8(oid)]
	if !ok {
		return nil, ErrUnknownOID
	}
	return obj, nil
}

// handleConfigDAC binds an oid to a DAC channel
// Format: config_dac oid=%c channel=%c
func handleConfigDAC(data *[]byte) error {
	args, err := decodeArgs(data, 2)
	if err != nil {
		return err
	}
	oid := uint8(args[0])
	id := int(args[1])
	p := MustDAC()
	m := p.Map()
	if _, err := m.Lookup(id); err != nil {
		sendDACStatus(oid, err)
		return nil
	}

	// Replaced objects stay registered until their streams have been
	// stopped, so dac_transfer_done still reaches the host.
	if old, ok := dacObjects[oid]; ok {
		RemoveTimer(&old.Timer)
		if old.Channel.ID() != id {
			_ = old.Channel.Close()
		}
	}
	ch, err := p.Channel(id)

	// Drop the oid and any other oid left holding the superseded channel
	for o, other := range dacObjects {
		if o == oid || other.Channel.Closed() {
			RemoveTimer(&other.Timer)
			delete(dacObjects, o)
		}
	}
	if err != nil {
		sendDACStatus(oid, err)
		return nil
	}

	obj := &DACObject{OID: oid, Channel: ch}
	obj.Timer.Handler = func(t *Timer) uint8 {
		return obj.queuedWriteEvent()
	}
	dacObjects[oid] = obj
	sendDACStatus(oid, nil)
	return nil
}

// handleDACWrite outputs a value immediately
// Format: dac_write oid=%c value=%c
func handleDACWrite(data *[]byte) error {
	args, err := decodeArgs(data, 2)
	if err != nil {
		return err
	}
	obj, err := lookupDAC(args[0])
	if err == nil {
		// values wider than the 8-bit register are truncated
		err = obj.Channel.Write(uint8(args[1]))
	}
	sendDACStatus(uint8(args[0]), err)
	return nil
}

// handleQueueDACWrite schedules a direct write at a clock time
// Format: queue_dac_write oid=%c clock=%u value=%c
func handleQueueDACWrite(data *[]byte) error {
	args, err := decodeArgs(data, 3)
	if err != nil {
		return err
	}
	obj, err := lookupDAC(args[0])
	if err != nil {
		sendDACStatus(uint8(args[0]), err)
		return nil
	}

	clock := args[1]
	if int32(clock-GetTime()) < 0 {
		RecordTiming(EvtTimerPast, obj.OID, GetTime(), clock, 0)
	}

	// Replace any write still waiting
	RemoveTimer(&obj.Timer)
	obj.queuedValue = uint8(args[2])
	obj.Timer.WakeTime = clock
	obj.Timer.Next = nil
	RecordTiming(EvtTimerSchedule, obj.OID, GetTime(), clock, args[2])
	ScheduleTimer(&obj.Timer)

	sendDACStatus(obj.OID, nil)
	return nil
}

// queuedWriteEvent runs from ProcessTimers in the main loop. A write error
// is kept for DACTask, which reports it as a late dac_status. A stream
// stopped by the write reports dac_transfer_done immediately.
func (obj *DACObject) queuedWriteEvent() uint8 {
	RecordTiming(EvtTimerFire, obj.OID, GetTime(), uint32(obj.queuedValue), 0)
	if err := obj.Channel.Write(obj.queuedValue); err != nil {
		obj.timerErr = err
		obj.timerPending = true
	}
	return SF_DONE
}

// handleDACNoise starts the noise generator
// Format: dac_noise oid=%c freq=%u
func handleDACNoise(data *[]byte) error {
	return handleDACGenerator(data, OpNoise)
}

// handleDACTriangle starts the triangle generator
// Format: dac_triangle oid=%c freq=%u
func handleDACTriangle(data *[]byte) error {
	return handleDACGenerator(data, OpTriangle)
}

func handleDACGenerator(data *[]byte, op Operation) error {
	args, err := decodeArgs(data, 2)
	if err != nil {
		return err
	}
	obj, err := lookupDAC(args[0])
	if err == nil {
		freq := int(int32(args[1]))
		if op == OpNoise {
			err = obj.Channel.GenerateNoise(freq)
		} else {
			err = obj.Channel.GenerateTriangle(freq)
		}
		if err == nil {
			obj.freq = args[1]
		}
	}
	sendDACStatus(uint8(args[0]), err)
	return nil
}

// handleConfigDACBuffer allocates sample storage for an oid
// Format: config_dac_buffer oid=%c size=%hu
func handleConfigDACBuffer(data *[]byte) error {
	args, err := decodeArgs(data, 2)
	if err != nil {
		return err
	}
	obj, err := lookupDAC(args[0])
	if err == nil {
		err = obj.allocBuffer(int(args[1]))
	}
	sendDACStatus(uint8(args[0]), err)
	return nil
}

func (obj *DACObject) allocBuffer(size int) error {
	if size <= 0 || size > DACBufferMax {
		return ErrBufferAccess
	}
	if obj.busy() {
		return ErrBufferBusy
	}
	obj.buf = make([]byte, size)
	return nil
}

// busy reports whether an armed transfer still borrows the buffer
func (obj *DACObject) busy() bool {
	return obj.xfer != nil && obj.xfer.Active()
}

// handleDACBufferLoad copies samples into the buffer at offset
// Format: dac_buffer_load oid=%c offset=%hu data=%*s
func handleDACBufferLoad(data *[]byte) error {
	args, err := decodeArgs(data, 2)
	if err != nil {
		return err
	}
	chunk, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}
	obj, err := lookupDAC(args[0])
	if err == nil {
		err = obj.load(int(args[1]), chunk)
	}
	sendDACStatus(uint8(args[0]), err)
	return nil
}

func (obj *DACObject) load(offset int, chunk []byte) error {
	if obj.busy() {
		return ErrBufferBusy
	}
	if offset < 0 || offset+len(chunk) > len(obj.buf) {
		return ErrBufferAccess
	}
	copy(obj.buf[offset:], chunk)
	return nil
}

// handleDACWriteTimed streams the first count samples of the buffer
// Format: dac_write_timed oid=%c count=%hu freq=%u mode=%c
func handleDACWriteTimed(data *[]byte) error {
	args, err := decodeArgs(data, 4)
	if err != nil {
		return err
	}
	obj, err := lookupDAC(args[0])
	if err == nil {
		if args[3] > uint32(TransferCircular) {
			err = &DACError{Op: "write_timed", ID: obj.Channel.ID(), Err: ErrInvalidMode}
		} else {
			err = obj.writeTimed(int(args[1]), int(int32(args[2])), TransferMode(args[3]))
		}
	}
	sendDACStatus(uint8(args[0]), err)
	return nil
}

func (obj *DACObject) writeTimed(count, freq int, mode TransferMode) error {
	if count > len(obj.buf) {
		return &DACError{Op: "write_timed", ID: obj.Channel.ID(), Err: ErrBufferAccess}
	}
	t, err := obj.Channel.WriteTimed(obj.buf[:count], freq, mode)
	if err != nil {
		return err
	}
	obj.xfer = t
	obj.freq = uint32(freq)
	return nil
}

// handleDACQuery reports the channel mode and trigger rate
// Format: dac_query oid=%c
func handleDACQuery(data *[]byte) error {
	args, err := decodeArgs(data, 1)
	if err != nil {
		return err
	}
	obj, err := lookupDAC(args[0])
	if err != nil {
		sendDACStatus(uint8(args[0]), err)
		return nil
	}
	var active uint32
	if obj.busy() {
		active = 1
	}
	SendResponse("dac_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(obj.OID))
		protocol.EncodeVLQUint(output, uint32(obj.Channel.Mode()))
		protocol.EncodeVLQUint(output, obj.freq)
		protocol.EncodeVLQUint(output, active)
	})
	return nil
}

// dacTransferDone reports a released buffer to the host
func dacTransferDone(t *Transfer) {
	for _, obj := range dacObjects {
		if obj == nil || obj.xfer != t {
			continue
		}
		obj.xfer = nil
		status := t.Status()
		SendResponse("dac_transfer_done", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(obj.OID))
			protocol.EncodeVLQUint(output, uint32(status))
		})
		return
	}
}

// DACTask finishes completed transfers and reports queued-write errors.
// Call it from the main loop.
func DACTask() {
	if dacPeripheral == nil {
		return
	}
	dacPeripheral.Poll()

	for _, obj := range dacObjects {
		if obj == nil || !obj.timerPending {
			continue
		}
		state := disableInterrupts()
		err := obj.timerErr
		obj.timerErr = nil
		obj.timerPending = false
		restoreInterrupts(state)
		sendDACStatus(obj.OID, err)
	}
}

// ShutdownAllDAC stops every DAC output and cancels queued writes
func ShutdownAllDAC() {
	for _, obj := range dacObjects {
		if obj != nil {
			RemoveTimer(&obj.Timer)
		}
	}
	if dacPeripheral != nil {
		dacPeripheral.Shutdown()
	}
}
