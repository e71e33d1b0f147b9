package c67

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	opcodeSetVolume = 0x20
	opcodeDelay     = 0x40
	opcodeEnd       = 0x60
)

// the FM channel selectors follow the PCM ones
const fmChannelBase = PCMChannelCount

func (channel Channel) selector() uint8 {
	if channel.Kind == ChannelFM {
		return fmChannelBase + channel.Index
	}

	return channel.Index
}

func (command PlayNote) AppendBytes(data []byte) []byte {
	var pitch = ((command.Instrument>>5)&1)<<7 |
		(command.Octave&7)<<4 |
		command.Semitone&0xF

	var instrumentVolume = (command.Instrument&0xF)<<4 | command.Volume&0xF

	return append(data, command.Channel.selector(), pitch, instrumentVolume)
}

func (command SetVolume) AppendBytes(data []byte) []byte {
	return append(data, opcodeSetVolume+command.Channel.selector(), command.Volume&0xF)
}

func (command Delay) AppendBytes(data []byte) []byte {
	return append(data, opcodeDelay, command.Rows)
}

func (command End) AppendBytes(data []byte) []byte {
	return append(data, opcodeEnd)
}

func SerializePattern(commands Pattern) []byte {
	var result []byte = nil

	for _, command := range commands {
		result = command.AppendBytes(result)
	}

	return result
}

// HeaderSize is the size of the fixed header, every table included.
var HeaderSize = binary.Size(Header{})

// Serialize writes the header tables in file order followed by the pattern
// and sample blobs.
func (module *Module) Serialize(target io.Writer) error {
	err := binary.Write(target, binary.LittleEndian, &module.Header)

	if err != nil {
		return err
	}

	_, err = target.Write(module.PatternData)

	if err != nil {
		return err
	}

	_, err = target.Write(module.SampleData)
	return err
}

func (module *Module) Bytes() []byte {
	var result bytes.Buffer
	result.Grow(HeaderSize + len(module.PatternData) + len(module.SampleData))

	// writes to a bytes.Buffer cannot fail
	module.Serialize(&result)

	return result.Bytes()
}
