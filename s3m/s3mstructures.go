package s3m

import "strconv"

const ChannelCount = 32
const RowCount = 64

const FilenameLength = 12

const (
	NoteOff   = 254
	NoteEmpty = 255
)

const VolumeEmpty = 255
const MaxVolume = 64

const (
	OrderSeparator = 254
	OrderEnd       = 255
)

// sample format field (ffi) values
const (
	SampleFormatSigned   uint16 = 1
	SampleFormatUnsigned uint16 = 2
)

const DefaultC4Speed = 8363

type ChannelKind uint8

const (
	ChannelPCM ChannelKind = iota
	ChannelFM
)

const (
	lastPCMClass        = 15
	firstFMClass        = 16
	lastMelodicFMClass  = 26
	channelDisabledFlag = 0x80
)

// ChannelSetting is one byte of the channel settings table. The top bit
// marks the channel as disabled, the low 7 bits hold the channel class.
type ChannelSetting uint8

func (setting ChannelSetting) Enabled() bool {
	return setting&channelDisabledFlag == 0
}

func (setting ChannelSetting) Class() uint8 {
	return uint8(setting) & 0x7F
}

func (setting ChannelSetting) Kind() ChannelKind {
	if setting.Class() <= lastPCMClass {
		return ChannelPCM
	}

	return ChannelFM
}

// IsPercussion reports FM classes above the melodic range.
func (setting ChannelSetting) IsPercussion() bool {
	return setting.Class() > lastMelodicFMClass
}

// FMSlot is the target FM voice addressed by this class. Only meaningful
// for FM channels.
func (setting ChannelSetting) FMSlot() uint8 {
	return setting.Class() - firstFMClass
}

// String formats the channel the way trackers display it: 1L-8L, 1R-8R for
// PCM channels, A1.. for FM channels.
func (setting ChannelSetting) String() string {
	var class = setting.Class()

	if class >= firstFMClass {
		return "A" + strconv.Itoa(int(class-firstFMClass)+1)
	} else if class >= 8 {
		return strconv.Itoa(int(class-8)+1) + "R"
	} else {
		return strconv.Itoa(int(class)+1) + "L"
	}
}

type Instrument interface {
	Filename() [FilenameLength]byte
	DefaultVolume() uint8
	isInstrument()
}

const (
	SampleFlagLoop   = 0x01
	SampleFlagStereo = 0x02
	SampleFlag16Bit  = 0x04
)

type Sample struct {
	FileName   [FilenameLength]byte
	Length     uint32
	LoopBegin  uint32
	LoopEnd    uint32
	Volume     uint8
	Packing    uint8
	Flags      uint8
	C4Speed    uint32
	SampleName string
	Audio      []int16
}

func (sample *Sample) Filename() [FilenameLength]byte {
	return sample.FileName
}

func (sample *Sample) DefaultVolume() uint8 {
	return sample.Volume
}

func (sample *Sample) Loops() bool {
	return sample.Flags&SampleFlagLoop != 0
}

func (sample *Sample) isInstrument() {}

// AdlibInstrument holds the OPL2 register block D00..D0B in file order.
type AdlibInstrument struct {
	Type       uint8
	FileName   [FilenameLength]byte
	Registers  [12]uint8
	Volume     uint8
	C4Speed    uint32
	SampleName string
}

func (instrument *AdlibInstrument) Filename() [FilenameLength]byte {
	return instrument.FileName
}

func (instrument *AdlibInstrument) DefaultVolume() uint8 {
	return instrument.Volume
}

func (instrument *AdlibInstrument) isInstrument() {}

type Cell struct {
	Note        uint8
	Instrument  uint8
	Volume      uint8
	Effect      uint8
	EffectValue uint8
}

var EmptyCell = Cell{
	Note:   NoteEmpty,
	Volume: VolumeEmpty,
}

type Row [ChannelCount]Cell

type Pattern [RowCount]Row

func NewPattern() *Pattern {
	var result Pattern

	for row := range result {
		for channel := range result[row] {
			result[row][channel] = EmptyCell
		}
	}

	return &result
}

type Module struct {
	SongName          string
	Flags             uint16
	TrackerVersion    uint16
	SampleFormat      uint16
	GlobalVolume      uint8
	InitialSpeed      uint8
	InitialTempo      uint8
	MixingVolume      uint8
	UltraClickRemoval uint8
	DefaultPanning    uint8
	Special           uint16
	ChannelSettings   [ChannelCount]ChannelSetting
	ChannelPanning    [ChannelCount]uint8
	Orders            []uint8
	Instruments       []Instrument
	Patterns          []*Pattern
}

func (module *Module) SignedSamples() bool {
	return module.SampleFormat == SampleFormatSigned
}

// Instrument resolves a 1-based instrument reference from pattern data.
func (module *Module) Instrument(number uint8) (Instrument, bool) {
	if number == 0 || int(number) > len(module.Instruments) {
		return nil, false
	}

	return module.Instruments[number-1], true
}
