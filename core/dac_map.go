package core

// ChannelInfo is the fixed hardware binding of a logical channel id.
type ChannelInfo struct {
	ID     int
	HW     DACChannel
	Pin    DACPin
	Stream DMAStream
}

// DACChannels is the number of logical channels, ids 1..DACChannels.
const DACChannels = 2

// ChannelMap is the static id -> (pin, DMA stream) table.
type ChannelMap [DACChannels]ChannelInfo

// DefaultChannelMap is the STM32F4 wiring: DAC1 on PA4 fed by DMA1
// stream 5, DAC2 on PA5 fed by DMA1 stream 6.
var DefaultChannelMap = ChannelMap{
	{ID: 1, HW: DACChannel1, Pin: PinPA4, Stream: DMA1Stream5},
	{ID: 2, HW: DACChannel2, Pin: PinPA5, Stream: DMA1Stream6},
}

// Lookup returns the binding for id. Only ids 1 and 2 exist.
func (m *ChannelMap) Lookup(id int) (ChannelInfo, error) {
	if id < 1 || id > len(m) {
		return ChannelInfo{}, &DACError{Op: "create", ID: id, Err: ErrInvalidChannel}
	}
	return m[id-1], nil
}
