package c67

const PCMChannelCount = 4

const InstrumentCount = 32

const FilenameLength = 12

// each filename slot is 12 characters plus a terminator
const FilenameStride = FilenameLength + 1

const PlaylistLength = 256
const PatternCount = 128

const PlaylistUnused = 0xFF

const DefaultLoopEnd = 0xFFFFF

type SampleMetadata struct {
	Unused    uint32
	Length    uint32
	LoopStart uint32
	LoopEnd   uint32
}

func DefaultSampleMetadata() SampleMetadata {
	return SampleMetadata{
		LoopEnd: DefaultLoopEnd,
	}
}

// FMRegisters is the 11 byte OPL2 voice layout the player writes to the
// chip registers.
type FMRegisters struct {
	FeedbackConnection        uint8
	ModulatorCharacteristics  uint8
	ModulatorScaleOutputLevel uint8
	ModulatorAttackDecay      uint8
	ModulatorSustainRelease   uint8
	ModulatorWaveSelect       uint8
	CarrierCharacteristics    uint8
	CarrierScaleOutputLevel   uint8
	CarrierAttackDecay        uint8
	CarrierSustainRelease     uint8
	CarrierWaveSelect         uint8
}

type Header struct {
	Speed           uint8
	LoopOrder       uint8
	SampleFilenames [InstrumentCount * FilenameStride]byte
	SampleMetadata  [InstrumentCount]SampleMetadata
	FMFilenames     [InstrumentCount * FilenameStride]byte
	FMMetadata      [InstrumentCount]FMRegisters
	Playlist        [PlaylistLength]uint8
	PatternOffsets  [PatternCount]uint32
	PatternLengths  [PatternCount]uint32
}

func NewHeader() *Header {
	var result Header

	for i := range result.SampleMetadata {
		result.SampleMetadata[i] = DefaultSampleMetadata()
	}

	for i := range result.Playlist {
		result.Playlist[i] = PlaylistUnused
	}

	return &result
}

func setFilename(table []byte, index int, name [FilenameLength]byte) {
	var slot = table[index*FilenameStride : (index+1)*FilenameStride]
	copy(slot, name[:])
	slot[FilenameLength] = 0
}

func getFilename(table []byte, index int) string {
	var slot = table[index*FilenameStride : index*FilenameStride+FilenameLength]

	for i, char := range slot {
		if char == 0 {
			return string(slot[:i])
		}
	}

	return string(slot)
}

func (header *Header) SetSampleFilename(index int, name [FilenameLength]byte) {
	setFilename(header.SampleFilenames[:], index, name)
}

func (header *Header) SetFMFilename(index int, name [FilenameLength]byte) {
	setFilename(header.FMFilenames[:], index, name)
}

func (header *Header) SampleFilename(index int) string {
	return getFilename(header.SampleFilenames[:], index)
}

func (header *Header) FMFilename(index int) string {
	return getFilename(header.FMFilenames[:], index)
}

type Module struct {
	Header      Header
	PatternData []byte
	SampleData  []byte
}

func NewModule() *Module {
	return &Module{
		Header: *NewHeader(),
	}
}

type ChannelKind uint8

const (
	ChannelPCM ChannelKind = iota
	ChannelFM
)

type Channel struct {
	Kind  ChannelKind
	Index uint8
}

func PCM(index uint8) Channel {
	return Channel{ChannelPCM, index}
}

func FM(index uint8) Channel {
	return Channel{ChannelFM, index}
}

// Command is one entry of the pattern bytecode: PlayNote, SetVolume, Delay
// or End.
type Command interface {
	// AppendBytes appends the encoded command to data
	AppendBytes(data []byte) []byte
}

type PlayNote struct {
	Channel    Channel
	Octave     uint8
	Semitone   uint8
	Instrument uint8
	Volume     uint8
}

type SetVolume struct {
	Channel Channel
	Volume  uint8
}

type Delay struct {
	Rows uint8
}

type End struct{}

type Pattern []Command

// SilentPattern fills pattern slots the source module does not use.
func SilentPattern() Pattern {
	return Pattern{
		Delay{Rows: 64},
		End{},
	}
}
