package s3m

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const scrmMagic = "SCRM"

const headerSize = 0x60
const instrumentHeaderSize = 0x50

const magicOffset = 0x2C

const defaultPanningPresent = 252

// the format stores sample lengths in 32 bits but no tracker writes
// anything near this, so larger values are treated as corruption
const maxSampleLength = 1 << 24

type fileHeader struct {
	SongName          [28]byte
	Marker            uint8
	FileType          uint8
	_                 [2]byte
	OrderCount        uint16
	InstrumentCount   uint16
	PatternCount      uint16
	Flags             uint16
	TrackerVersion    uint16
	SampleFormat      uint16
	Magic             [4]byte
	GlobalVolume      uint8
	InitialSpeed      uint8
	InitialTempo      uint8
	MixingVolume      uint8
	UltraClickRemoval uint8
	DefaultPanning    uint8
	_                 [8]byte
	Special           uint16
	ChannelSettings   [ChannelCount]uint8
}

type sampleHeader struct {
	Type       uint8
	FileName   [FilenameLength]byte
	MemSeg     [3]byte
	Length     uint32
	LoopBegin  uint32
	LoopEnd    uint32
	Volume     uint8
	_          uint8
	Packing    uint8
	Flags      uint8
	C4Speed    uint32
	_          [12]byte
	SampleName [28]byte
	Magic      [4]byte
}

type adlibHeader struct {
	Type       uint8
	FileName   [FilenameLength]byte
	_          [3]byte
	Registers  [12]uint8
	Volume     uint8
	Disk       uint8
	_          [2]byte
	C4Speed    uint32
	_          [12]byte
	SampleName [28]byte
	Magic      [4]byte
}

const (
	instrumentTypeEmpty  = 0
	instrumentTypeSample = 1
)

func trimName(name []byte) string {
	return string(bytes.TrimRight(name, "\x00 "))
}

// dataOffset assembles the 20 bit sample data offset: MemSeg[0] holds the
// high byte of the paragraph number, MemSeg[1:3] the low word.
func (header *sampleHeader) dataOffset() int64 {
	return int64(header.MemSeg[1])<<4 |
		int64(header.MemSeg[2])<<12 |
		int64(header.MemSeg[0])<<20
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}

	return err
}

func readHeader(reader io.Reader) (*fileHeader, error) {
	var buffer = make([]byte, headerSize)
	read, err := io.ReadFull(reader, buffer)

	if err == io.EOF || err == io.ErrUnexpectedEOF {
		var formatError FormatError

		if read < magicOffset+4 {
			return nil, errors.WithStack(&formatError)
		}

		copy(formatError.Magic[:], buffer[magicOffset:])

		if string(formatError.Magic[:]) != scrmMagic {
			return nil, errors.WithStack(&formatError)
		}

		// a valid header cut short is truncation, not a foreign file
		return nil, errors.Wrap(io.ErrUnexpectedEOF, "reading module header")
	} else if err != nil {
		return nil, errors.Wrap(err, "reading module header")
	}

	var result fileHeader
	err = binary.Read(bytes.NewReader(buffer), binary.LittleEndian, &result)

	if err != nil {
		return nil, errors.Wrap(err, "decoding module header")
	}

	if string(result.Magic[:]) != scrmMagic {
		return nil, errors.WithStack(&FormatError{Magic: result.Magic})
	}

	return &result, nil
}

func convertSampleData(data []byte, is16Bit bool, signed bool) []int16 {
	if is16Bit {
		var result = make([]int16, len(data)/2)

		for i := range result {
			var value = binary.LittleEndian.Uint16(data[i*2:])

			if signed {
				result[i] = int16(value)
			} else {
				result[i] = int16(value ^ 0x8000)
			}
		}

		return result
	}

	var result = make([]int16, len(data))

	for i, value := range data {
		if signed {
			result[i] = int16(int8(value)) * 256
		} else {
			result[i] = (int16(value) - 128) * 256
		}
	}

	return result
}

func parseSample(reader io.ReadSeeker, header *sampleHeader, number int, signed bool) (*Sample, error) {
	if header.Packing != 0 {
		return nil, errors.WithStack(&UnsupportedFeatureError{Instrument: number, Feature: "packed"})
	}

	if header.Flags&SampleFlagStereo != 0 {
		return nil, errors.WithStack(&UnsupportedFeatureError{Instrument: number, Feature: "stereo"})
	}

	if header.Length > maxSampleLength {
		return nil, errors.Errorf("instrument %d: sample length %d is out of range", number, header.Length)
	}

	var result = &Sample{
		FileName:   header.FileName,
		Length:     header.Length,
		LoopBegin:  header.LoopBegin,
		LoopEnd:    header.LoopEnd,
		Volume:     header.Volume,
		Packing:    header.Packing,
		Flags:      header.Flags,
		C4Speed:    header.C4Speed,
		SampleName: trimName(header.SampleName[:]),
	}

	var is16Bit = header.Flags&SampleFlag16Bit != 0
	var byteLength = int(header.Length)

	if is16Bit {
		byteLength = byteLength * 2
	}

	_, err := reader.Seek(header.dataOffset(), io.SeekStart)

	if err != nil {
		return nil, errors.Wrapf(err, "seeking to data of instrument %d", number)
	}

	var data = make([]byte, byteLength)
	_, err = io.ReadFull(reader, data)

	if err != nil {
		return nil, errors.Wrapf(unexpectedEOF(err), "reading data of instrument %d", number)
	}

	result.Audio = convertSampleData(data, is16Bit, signed)

	return result, nil
}

func parseInstrument(reader io.ReadSeeker, pointer uint16, number int, signed bool) (Instrument, error) {
	if pointer == 0 {
		return &Sample{}, nil
	}

	_, err := reader.Seek(int64(pointer)<<4, io.SeekStart)

	if err != nil {
		return nil, errors.Wrapf(err, "seeking to instrument %d", number)
	}

	var buffer = make([]byte, instrumentHeaderSize)
	_, err = io.ReadFull(reader, buffer)

	if err != nil {
		return nil, errors.Wrapf(unexpectedEOF(err), "reading header of instrument %d", number)
	}

	switch buffer[0] {
	case instrumentTypeEmpty:
		return &Sample{}, nil
	case instrumentTypeSample:
		var header sampleHeader
		err = binary.Read(bytes.NewReader(buffer), binary.LittleEndian, &header)

		if err != nil {
			return nil, errors.Wrapf(err, "decoding header of instrument %d", number)
		}

		return parseSample(reader, &header, number, signed)
	default:
		var header adlibHeader
		err = binary.Read(bytes.NewReader(buffer), binary.LittleEndian, &header)

		if err != nil {
			return nil, errors.Wrapf(err, "decoding header of instrument %d", number)
		}

		return &AdlibInstrument{
			Type:       header.Type,
			FileName:   header.FileName,
			Registers:  header.Registers,
			Volume:     header.Volume,
			C4Speed:    header.C4Speed,
			SampleName: trimName(header.SampleName[:]),
		}, nil
	}
}

func parsePattern(reader io.ReadSeeker, pointer uint16, number int) (*Pattern, error) {
	var result = NewPattern()

	if pointer == 0 {
		return result, nil
	}

	// skip the packed length word
	_, err := reader.Seek(int64(pointer)<<4+2, io.SeekStart)

	if err != nil {
		return nil, errors.Wrapf(err, "seeking to pattern %d", number)
	}

	var packed = bufio.NewReader(reader)
	var fields [2]byte

	for row := 0; row < RowCount; {
		control, err := packed.ReadByte()

		if err != nil {
			return nil, errors.Wrapf(unexpectedEOF(err), "unpacking pattern %d row %d", number, row)
		}

		if control == 0 {
			row++
			continue
		}

		var cell = &result[row][control&31]

		if control&0x20 != 0 {
			_, err = io.ReadFull(packed, fields[:])

			if err != nil {
				return nil, errors.Wrapf(unexpectedEOF(err), "unpacking pattern %d row %d", number, row)
			}

			cell.Note, cell.Instrument = fields[0], fields[1]
		}

		if control&0x40 != 0 {
			cell.Volume, err = packed.ReadByte()

			if err != nil {
				return nil, errors.Wrapf(unexpectedEOF(err), "unpacking pattern %d row %d", number, row)
			}
		}

		if control&0x80 != 0 {
			_, err = io.ReadFull(packed, fields[:])

			if err != nil {
				return nil, errors.Wrapf(unexpectedEOF(err), "unpacking pattern %d row %d", number, row)
			}

			cell.Effect, cell.EffectValue = fields[0], fields[1]
		}
	}

	return result, nil
}

func readPointers(reader io.Reader, count uint16, what string) ([]uint16, error) {
	var result = make([]uint16, count)
	err := binary.Read(reader, binary.LittleEndian, result)

	if err != nil {
		return nil, errors.Wrapf(unexpectedEOF(err), "reading %s pointers", what)
	}

	return result, nil
}

// Parse decodes a complete module. Decoding is all or nothing: any
// truncated or malformed structure fails the whole module.
func Parse(reader io.ReadSeeker) (*Module, error) {
	_, err := reader.Seek(0, io.SeekStart)

	if err != nil {
		return nil, errors.WithStack(err)
	}

	header, err := readHeader(reader)

	if err != nil {
		return nil, err
	}

	var result = &Module{
		SongName:          trimName(header.SongName[:]),
		Flags:             header.Flags,
		TrackerVersion:    header.TrackerVersion,
		SampleFormat:      header.SampleFormat,
		GlobalVolume:      header.GlobalVolume,
		InitialSpeed:      header.InitialSpeed,
		InitialTempo:      header.InitialTempo,
		MixingVolume:      header.MixingVolume,
		UltraClickRemoval: header.UltraClickRemoval,
		DefaultPanning:    header.DefaultPanning,
		Special:           header.Special,
	}

	for index, setting := range header.ChannelSettings {
		result.ChannelSettings[index] = ChannelSetting(setting)
	}

	result.Orders = make([]uint8, header.OrderCount)
	_, err = io.ReadFull(reader, result.Orders)

	if err != nil {
		return nil, errors.Wrap(unexpectedEOF(err), "reading order list")
	}

	instrumentPointers, err := readPointers(reader, header.InstrumentCount, "instrument")

	if err != nil {
		return nil, err
	}

	patternPointers, err := readPointers(reader, header.PatternCount, "pattern")

	if err != nil {
		return nil, err
	}

	if header.DefaultPanning == defaultPanningPresent {
		_, err = io.ReadFull(reader, result.ChannelPanning[:])

		if err != nil {
			return nil, errors.Wrap(unexpectedEOF(err), "reading channel panning")
		}
	}

	var signed = result.SignedSamples()

	for index, pointer := range instrumentPointers {
		instrument, err := parseInstrument(reader, pointer, index+1, signed)

		if err != nil {
			return nil, err
		}

		result.Instruments = append(result.Instruments, instrument)
	}

	for index, pointer := range patternPointers {
		pattern, err := parsePattern(reader, pointer, index)

		if err != nil {
			return nil, err
		}

		result.Patterns = append(result.Patterns, pattern)
	}

	return result, nil
}
