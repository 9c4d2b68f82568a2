//go:build rp2040

package main

import (
	"gopdac/core"
	"gopdac/drivers/mcp4725"
)

// noStream marks a channel that has no DMA stream behind it
const noStream core.DMAStream = 0xFF

// rp2040ChannelMap binds channel 1 to the PIO ladder (GP8-GP15, DMA channel
// 0) and channel 2 to an MCP4725 on I2C0 (SDA=GP4).
var rp2040ChannelMap = core.ChannelMap{
	{ID: 1, HW: core.DACChannel1, Pin: core.DACPin(ladderBasePin), Stream: core.DMAStream(ladderDataChannel)},
	{ID: 2, HW: core.DACChannel2, Pin: 4, Stream: noStream},
}

// RPDACDriver implements core.DACDriver for the RP2040, which has no
// on-chip DAC. Channel 1 is the R-2R ladder, channel 2 the external
// converter, which only supports direct writes.
type RPDACDriver struct {
	ladder *Ladder

	bus     *RPI2CBus
	ext     *mcp4725.Device
	extOn   bool
	extLast uint16
}

// NewRPDACDriver constructs the driver for ladder and I2C bus
func NewRPDACDriver(ladder *Ladder, bus *RPI2CBus) *RPDACDriver {
	return &RPDACDriver{
		ladder: ladder,
		bus:    bus,
		ext:    mcp4725.New(bus),
	}
}

// Hardware returns the capability bundle for core.NewPeripheral
func (d *RPDACDriver) Hardware() core.Hardware {
	return core.Hardware{DAC: d, Timer: ladderTimer{d.ladder}, DMA: rpDMA{d}}
}

// Init prepares the ladder. The external converter is probed on first use.
func (d *RPDACDriver) Init() error {
	return d.ladder.Init()
}

// Supports limits the external converter to direct writes, so a generator
// request on it is refused before the shared ladder clock is touched.
func (d *RPDACDriver) Supports(ch core.DACChannel, op core.Operation) bool {
	return ch == core.DACChannel1 || op == core.OpWrite
}

func (d *RPDACDriver) ConfigurePin(pin core.DACPin) error {
	if pin == core.DACPin(ladderBasePin) {
		// ladder pins are handed to the PIO in Init
		return nil
	}
	if err := d.bus.Configure(mcp4725I2CFrequency); err != nil {
		return err
	}
	return d.ext.Configure(mcp4725.Config{})
}

func (d *RPDACDriver) ConfigureChannel(ch core.DACChannel, cfg core.ChannelConfig) error {
	if ch == core.DACChannel1 {
		return d.ladder.ConfigureChannel(cfg)
	}
	if cfg.Trigger != core.TriggerNone {
		return core.ErrUnsupported
	}
	return nil
}

func (d *RPDACDriver) Start(ch core.DACChannel) error {
	if ch == core.DACChannel1 {
		return d.ladder.Start()
	}
	if d.extOn {
		return nil
	}
	d.extOn = true
	return d.ext.SetValue(d.extLast)
}

func (d *RPDACDriver) Stop(ch core.DACChannel) error {
	if ch == core.DACChannel1 {
		return d.ladder.Stop()
	}
	d.extOn = false
	return d.ext.PowerDown(mcp4725.PD500K)
}

func (d *RPDACDriver) SetValue(ch core.DACChannel, align core.DACAlign, value uint32) error {
	if ch == core.DACChannel1 {
		return d.ladder.SetValue(align, value)
	}
	d.extLast = uint16(to12(align, value))
	if !d.extOn {
		return nil
	}
	return d.ext.SetValue(d.extLast)
}

func (d *RPDACDriver) NoiseWave(ch core.DACChannel, unmask core.WaveAmplitude) error {
	if ch != core.DACChannel1 {
		return core.ErrUnsupported
	}
	return d.ladder.Wave(waveNoise, unmask)
}

func (d *RPDACDriver) TriangleWave(ch core.DACChannel, amplitude core.WaveAmplitude) error {
	if ch != core.DACChannel1 {
		return core.ErrUnsupported
	}
	return d.ladder.Wave(waveTriangle, amplitude)
}

func (d *RPDACDriver) StartDMA(ch core.DACChannel, buf []byte, align core.DACAlign) error {
	if ch != core.DACChannel1 {
		return core.ErrUnsupported
	}
	return d.ladder.StartDMA(buf)
}

func (d *RPDACDriver) StopDMA(ch core.DACChannel) error {
	if ch != core.DACChannel1 {
		// nothing streams to the external converter
		return nil
	}
	return d.ladder.StopDMA()
}

// rpDMA is the DMADriver view of the ladder's DMA channels
type rpDMA struct{ d *RPDACDriver }

func (r rpDMA) Deinit(stream core.DMAStream) error {
	if stream != core.DMAStream(ladderDataChannel) {
		return core.ErrUnsupported
	}
	r.d.ladder.DeinitDMA()
	return nil
}

func (r rpDMA) Init(stream core.DMAStream, cfg core.DMAConfig) error {
	if stream != core.DMAStream(ladderDataChannel) {
		return core.ErrUnsupported
	}
	return r.d.ladder.InitDMA(stream, cfg)
}

func (r rpDMA) Link(stream core.DMAStream, ch core.DACChannel) error {
	if stream != core.DMAStream(ladderDataChannel) || ch != core.DACChannel1 {
		return core.ErrUnsupported
	}
	r.d.ladder.Link()
	return nil
}
