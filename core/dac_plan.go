package core

// ChannelMode is the last configuration programmed into a channel.
type ChannelMode uint8

const (
	ModeUninitialized ChannelMode = iota
	ModeDirectWrite
	ModeGenerator
	ModeBufferedStream
)

// ModeNames is registered as the dac_mode enumeration, indexed by mode.
var ModeNames = []string{"uninitialized", "direct_write", "generator", "buffered_stream"}

func (m ChannelMode) String() string {
	if int(m) < len(ModeNames) {
		return ModeNames[m]
	}
	return "mode(" + itoa(int(m)) + ")"
}

// Config returns the channel register settings a mode requires.
func (m ChannelMode) Config() ChannelConfig {
	switch m {
	case ModeGenerator, ModeBufferedStream:
		return ChannelConfig{Trigger: TriggerUpdate, OutputBuffer: true}
	}
	return ChannelConfig{Trigger: TriggerNone, OutputBuffer: false}
}

// Operation is a caller request on a channel.
type Operation uint8

const (
	OpWrite Operation = iota + 1
	OpNoise
	OpTriangle
	OpWriteTimed
)

// Mode returns the channel mode the operation runs in.
func (op Operation) Mode() ChannelMode {
	switch op {
	case OpWrite:
		return ModeDirectWrite
	case OpNoise, OpTriangle:
		return ModeGenerator
	case OpWriteTimed:
		return ModeBufferedStream
	}
	return ModeUninitialized
}

// Request carries an operation and its scalar arguments. The streamed
// buffer itself never enters the plan; the executor supplies it.
type Request struct {
	Op       Operation
	Value    uint8
	FreqHz   int
	Transfer TransferMode
}

// ActionKind enumerates the hardware steps a plan can contain.
type ActionKind uint8

const (
	ActConfigureTrigger ActionKind = iota + 1
	ActStopDMA
	ActDeinitDMA
	ActInitDMA
	ActLinkDMA
	ActConfigureChannel
	ActNoiseWave
	ActTriangleWave
	ActSetValue
	ActStart
	ActStartDMA
)

var actionNames = [...]string{
	ActConfigureTrigger: "configure_trigger",
	ActStopDMA:          "stop_dma",
	ActDeinitDMA:        "deinit_dma",
	ActInitDMA:          "init_dma",
	ActLinkDMA:          "link_dma",
	ActConfigureChannel: "configure_channel",
	ActNoiseWave:        "noise_wave",
	ActTriangleWave:     "triangle_wave",
	ActSetValue:         "set_value",
	ActStart:            "start",
	ActStartDMA:         "start_dma",
}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) && actionNames[k] != "" {
		return actionNames[k]
	}
	return "action(" + itoa(int(k)) + ")"
}

// Action is one hardware step. Only the fields relevant to Kind are set.
type Action struct {
	Kind      ActionKind
	FreqHz    int
	Config    ChannelConfig
	Amplitude WaveAmplitude
	Align     DACAlign
	Value     uint32
	DMA       DMAConfig
}

// Plan is the result of a transition: the next mode and the ordered
// hardware steps that get the channel there.
type Plan struct {
	Next        ChannelMode
	Reconfigure bool
	Actions     []Action
}

// StreamDMAConfig is the stream setup used for buffered output: byte
// units from incrementing memory into the fixed holding register.
func StreamDMAConfig(mode TransferMode) DMAConfig {
	cfg := DMAConfig{
		Request:     DACRequestChannel,
		Direction:   DMAMemoryToPeriph,
		MemInc:      true,
		PeriphInc:   false,
		PeriphWidth: DMAWidthByte,
		MemWidth:    DMAWidthByte,
		Mode:        DMANormal,
		Priority:    DMAPriorityHigh,
		FIFO:        false,
	}
	if mode == TransferCircular {
		cfg.Mode = DMACircular
	}
	return cfg
}

// PlanTransition is the channel state machine. It has no side effects:
// it returns the next mode and the actions that realize req from cur.
// The channel register is configured only when the mode changes, and a
// stream is torn down only when the channel leaves BufferedStream.
func PlanTransition(cur ChannelMode, req Request) Plan {
	next := req.Op.Mode()
	p := Plan{Next: next, Reconfigure: next != cur}
	add := func(a Action) { p.Actions = append(p.Actions, a) }

	if next == ModeGenerator || next == ModeBufferedStream {
		add(Action{Kind: ActConfigureTrigger, FreqHz: req.FreqHz})
	}
	if cur == ModeBufferedStream && next != ModeBufferedStream {
		add(Action{Kind: ActStopDMA})
	}
	if next == ModeBufferedStream {
		add(Action{Kind: ActDeinitDMA})
		add(Action{Kind: ActInitDMA, DMA: StreamDMAConfig(req.Transfer)})
		add(Action{Kind: ActLinkDMA})
	}
	if p.Reconfigure {
		add(Action{Kind: ActConfigureChannel, Config: next.Config()})
	}

	switch req.Op {
	case OpWrite:
		add(Action{Kind: ActSetValue, Align: Align8R, Value: uint32(req.Value)})
		add(Action{Kind: ActStart})
	case OpNoise:
		add(Action{Kind: ActNoiseWave, Amplitude: LFSRUnmaskBits10_0})
		add(Action{Kind: ActSetValue, Align: Align12L, Value: NoiseSeed})
		add(Action{Kind: ActStart})
	case OpTriangle:
		add(Action{Kind: ActTriangleWave, Amplitude: TriangleAmplitude1023})
		add(Action{Kind: ActSetValue, Align: Align12R, Value: TriangleBase})
		add(Action{Kind: ActStart})
	case OpWriteTimed:
		add(Action{Kind: ActStartDMA, Align: Align8R})
	}
	return p
}
