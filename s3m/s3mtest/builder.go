// Package s3mtest lays out small S3M files in memory for tests.
package s3mtest

import (
	"bytes"
	"encoding/binary"

	"github.com/polyzium/s3m-c67-converter/s3m"
)

const (
	TypeEmpty  = 0
	TypeSample = 1
	TypeAdlib  = 2
)

type Instrument struct {
	// Missing writes a zero pointer instead of an instrument header
	Missing   bool
	Type      uint8
	FileName  string
	Volume    uint8
	Flags     uint8
	Packing   uint8
	LoopBegin uint32
	LoopEnd   uint32
	C4Speed   uint32
	// Data is stored as is; for 16 bit samples it holds two bytes per frame
	Data      []byte
	Registers [12]uint8
}

type Builder struct {
	SongName        string
	InitialSpeed    uint8
	InitialTempo    uint8
	SampleFormat    uint16
	DefaultPanning  uint8
	ChannelSettings [s3m.ChannelCount]uint8
	ChannelPanning  [s3m.ChannelCount]uint8
	Orders          []uint8
	Instruments     []Instrument
	// a nil pattern is written as a zero pointer
	Patterns []*s3m.Pattern
}

func NewBuilder() *Builder {
	var result = &Builder{
		SongName:     "test",
		InitialSpeed: 6,
		InitialTempo: 125,
		SampleFormat: s3m.SampleFormatUnsigned,
	}

	for i := range result.ChannelSettings {
		result.ChannelSettings[i] = 0xFF
	}

	return result
}

// Sample returns an 8 bit sample instrument holding data.
func Sample(name string, volume uint8, data []byte) Instrument {
	return Instrument{
		Type:     TypeSample,
		FileName: name,
		Volume:   volume,
		C4Speed:  s3m.DefaultC4Speed,
		Data:     data,
	}
}

func Adlib(name string, volume uint8, registers [12]uint8) Instrument {
	return Instrument{
		Type:      TypeAdlib,
		FileName:  name,
		Volume:    volume,
		C4Speed:   s3m.DefaultC4Speed,
		Registers: registers,
	}
}

func pad(buffer *bytes.Buffer) {
	for buffer.Len()%16 != 0 {
		buffer.WriteByte(0)
	}
}

func putName(target []byte, name string) {
	copy(target, name)
}

func writeLE(buffer *bytes.Buffer, value interface{}) {
	binary.Write(buffer, binary.LittleEndian, value)
}

// PackPattern encodes pattern in the row packing used on disk, without the
// leading length word.
func PackPattern(pattern *s3m.Pattern) []byte {
	var result bytes.Buffer

	for _, row := range pattern {
		for channel, cell := range row {
			var control = uint8(channel)

			if cell.Note != s3m.NoteEmpty || cell.Instrument != 0 {
				control |= 0x20
			}

			if cell.Volume != s3m.VolumeEmpty {
				control |= 0x40
			}

			if cell.Effect != 0 || cell.EffectValue != 0 {
				control |= 0x80
			}

			if control&0xE0 == 0 {
				continue
			}

			result.WriteByte(control)

			if control&0x20 != 0 {
				result.WriteByte(cell.Note)
				result.WriteByte(cell.Instrument)
			}

			if control&0x40 != 0 {
				result.WriteByte(cell.Volume)
			}

			if control&0x80 != 0 {
				result.WriteByte(cell.Effect)
				result.WriteByte(cell.EffectValue)
			}
		}

		result.WriteByte(0)
	}

	return result.Bytes()
}

func (builder *Builder) instrumentHeader(instrument *Instrument, dataOffset int) []byte {
	var header = make([]byte, 0x50)
	header[0] = instrument.Type
	putName(header[1:13], instrument.FileName)

	if instrument.Type == TypeSample {
		var paragraph = dataOffset >> 4
		header[13] = uint8(paragraph >> 16)
		binary.LittleEndian.PutUint16(header[14:], uint16(paragraph))

		var length = len(instrument.Data)

		if instrument.Flags&s3m.SampleFlag16Bit != 0 {
			length = length / 2
		}

		binary.LittleEndian.PutUint32(header[16:], uint32(length))
		binary.LittleEndian.PutUint32(header[20:], instrument.LoopBegin)
		binary.LittleEndian.PutUint32(header[24:], instrument.LoopEnd)
		header[28] = instrument.Volume
		header[30] = instrument.Packing
		header[31] = instrument.Flags
		binary.LittleEndian.PutUint32(header[32:], instrument.C4Speed)
		copy(header[76:], "SCRS")
	} else if instrument.Type != TypeEmpty {
		copy(header[16:28], instrument.Registers[:])
		header[28] = instrument.Volume
		binary.LittleEndian.PutUint32(header[32:], instrument.C4Speed)
		copy(header[76:], "SCRI")
	}

	putName(header[48:76], instrument.FileName)

	return header
}

// Build lays out the file: header, tables, instrument headers, sample data
// and packed patterns, each block aligned to a 16 byte paragraph.
func (builder *Builder) Build() []byte {
	var header = make([]byte, 0x60)
	putName(header[0:28], builder.SongName)
	header[28] = 0x1A
	header[29] = 16
	binary.LittleEndian.PutUint16(header[32:], uint16(len(builder.Orders)))
	binary.LittleEndian.PutUint16(header[34:], uint16(len(builder.Instruments)))
	binary.LittleEndian.PutUint16(header[36:], uint16(len(builder.Patterns)))
	binary.LittleEndian.PutUint16(header[40:], 0x1320)
	binary.LittleEndian.PutUint16(header[42:], builder.SampleFormat)
	copy(header[44:], "SCRM")
	header[48] = 64
	header[49] = builder.InitialSpeed
	header[50] = builder.InitialTempo
	header[51] = 0xB0
	header[53] = builder.DefaultPanning
	copy(header[64:], builder.ChannelSettings[:])

	var tableSize = len(builder.Orders) + 2*len(builder.Instruments) + 2*len(builder.Patterns)

	if builder.DefaultPanning == 252 {
		tableSize += s3m.ChannelCount
	}

	var offset = (0x60 + tableSize + 15) &^ 15

	var instrumentPointers = make([]uint16, len(builder.Instruments))
	var instrumentOffsets = make([]int, len(builder.Instruments))

	for index, instrument := range builder.Instruments {
		if instrument.Missing {
			continue
		}

		instrumentOffsets[index] = offset
		instrumentPointers[index] = uint16(offset >> 4)
		offset += 0x50
	}

	var dataOffsets = make([]int, len(builder.Instruments))

	for index, instrument := range builder.Instruments {
		if instrument.Missing || instrument.Type != TypeSample {
			continue
		}

		dataOffsets[index] = offset
		offset = (offset + len(instrument.Data) + 15) &^ 15
	}

	var packedPatterns = make([][]byte, len(builder.Patterns))
	var patternPointers = make([]uint16, len(builder.Patterns))

	for index, pattern := range builder.Patterns {
		if pattern == nil {
			continue
		}

		packedPatterns[index] = PackPattern(pattern)
		patternPointers[index] = uint16(offset >> 4)
		offset = (offset + 2 + len(packedPatterns[index]) + 15) &^ 15
	}

	var result bytes.Buffer
	result.Write(header)
	result.Write(builder.Orders)
	writeLE(&result, instrumentPointers)
	writeLE(&result, patternPointers)

	if builder.DefaultPanning == 252 {
		result.Write(builder.ChannelPanning[:])
	}

	pad(&result)

	for index := range builder.Instruments {
		var instrument = &builder.Instruments[index]

		if instrument.Missing {
			continue
		}

		result.Write(builder.instrumentHeader(instrument, dataOffsets[index]))
	}

	for _, instrument := range builder.Instruments {
		if instrument.Missing || instrument.Type != TypeSample {
			continue
		}

		result.Write(instrument.Data)
		pad(&result)
	}

	for _, packed := range packedPatterns {
		if packed == nil {
			continue
		}

		writeLE(&result, uint16(len(packed)+2))
		result.Write(packed)
		pad(&result)
	}

	return result.Bytes()
}
