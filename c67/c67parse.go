package c67

import (
	"encoding/binary"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
)

// a full 128 pattern song stays far below this
const maxPatternDataLength = 1 << 24

func channelFromSelector(selector uint8) Channel {
	if selector >= fmChannelBase {
		return FM(selector - fmChannelBase)
	}

	return PCM(selector)
}

// ParsePattern decodes one pattern's bytecode up to and including its End
// command.
func ParsePattern(data []byte) (Pattern, error) {
	var result Pattern = nil

	for offset := 0; offset < len(data); {
		var opcode = data[offset]

		var size = 2

		if opcode < opcodeSetVolume {
			size = 3
		} else if opcode == opcodeEnd {
			size = 1
		}

		if offset+size > len(data) {
			return nil, errors.Errorf("truncated command 0x%02X at offset %d", opcode, offset)
		}

		var args = data[offset+1 : offset+size]

		switch {
		case opcode < opcodeSetVolume:
			result = append(result, PlayNote{
				Channel:    channelFromSelector(opcode),
				Octave:     (args[0] >> 4) & 7,
				Semitone:   args[0] & 0xF,
				Instrument: (args[0]>>7)<<5 | args[1]>>4,
				Volume:     args[1] & 0xF,
			})
		case opcode < opcodeDelay:
			result = append(result, SetVolume{
				Channel: channelFromSelector(opcode - opcodeSetVolume),
				Volume:  args[0],
			})
		case opcode == opcodeDelay:
			result = append(result, Delay{Rows: args[0]})
		case opcode == opcodeEnd:
			return append(result, End{}), nil
		default:
			return nil, errors.Errorf("unknown command 0x%02X at offset %d", opcode, offset)
		}

		offset += size
	}

	return nil, errors.New("pattern has no end command")
}

// Pattern returns the bytecode of one pattern slot.
func (module *Module) Pattern(index int) ([]byte, error) {
	var start = module.Header.PatternOffsets[index]
	var end = start + module.Header.PatternLengths[index]

	if end < start || int(end) > len(module.PatternData) {
		return nil, errors.Errorf("pattern %d spans %d..%d outside of %d bytes of pattern data", index, start, end, len(module.PatternData))
	}

	return module.PatternData[start:end], nil
}

// Parse reads a module back. The pattern blob ends at the furthest byte any
// pattern slot references, everything after it is sample data.
func Parse(reader io.Reader) (*Module, error) {
	var result Module

	err := binary.Read(reader, binary.LittleEndian, &result.Header)

	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	var patternDataLength uint32 = 0

	for index, offset := range result.Header.PatternOffsets {
		var end = offset + result.Header.PatternLengths[index]

		if end > patternDataLength {
			patternDataLength = end
		}
	}

	if patternDataLength > maxPatternDataLength {
		return nil, errors.Errorf("pattern table references %d bytes of pattern data", patternDataLength)
	}

	result.PatternData = make([]byte, patternDataLength)
	_, err = io.ReadFull(reader, result.PatternData)

	if err != nil {
		return nil, errors.Wrap(err, "reading pattern data")
	}

	result.SampleData, err = ioutil.ReadAll(reader)

	if err != nil {
		return nil, errors.Wrap(err, "reading sample data")
	}

	return &result, nil
}
