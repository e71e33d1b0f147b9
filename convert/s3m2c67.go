package convert

import (
	"github.com/polyzium/s3m-c67-converter/c67"
	"github.com/polyzium/s3m-c67-converter/s3m"
)

const maxEmittedVolume = 15

const lastRow = s3m.RowCount - 1

type Options struct {
	// Speed replaces the source's initial speed when non zero
	Speed     uint8
	LoopOrder uint8
	// OnWarning is called for every warning as soon as it is raised
	OnWarning func(Warning)
}

type Result struct {
	Module   *c67.Module
	Warnings []Warning

	ChannelRemap       *RemapTable
	PCMInstrumentRemap *RemapTable
	FMInstrumentRemap  *RemapTable
}

type conversionState struct {
	source             *s3m.Module
	options            Options
	channelRemap       *RemapTable
	pcmInstrumentRemap *RemapTable
	fmInstrumentRemap  *RemapTable
	warnings           []Warning
}

// patternCursor carries the per pattern state through the row and column
// scan. The last instrument persists across rows until the next pattern.
type patternCursor struct {
	pattern        int
	row            int
	lastInstrument uint8
	commands       c67.Pattern
}

func (state *conversionState) warn(warning Warning) {
	state.warnings = append(state.warnings, warning)

	if state.options.OnWarning != nil {
		state.options.OnWarning(warning)
	}
}

func (state *conversionState) warnAll(warnings []Warning) {
	for _, warning := range warnings {
		state.warn(warning)
	}
}

func (state *conversionState) unresolved(cursor *patternCursor, column int, reason UnresolvedReason) {
	state.warn(&UnresolvedReferenceWarning{
		Pattern:    cursor.pattern,
		Row:        cursor.row,
		Column:     column,
		Channel:    state.source.ChannelSettings[column],
		Instrument: cursor.lastInstrument,
		Reason:     reason,
	})
}

func scaleVolume(volume uint8) uint8 {
	volume = volume / 4

	if volume > maxEmittedVolume {
		return maxEmittedVolume
	}

	return volume
}

func convertSampleValue(value int16) uint8 {
	return uint8((value >> 8) + 128)
}

func ConvertSampleData(audio []int16) []byte {
	var result = make([]byte, len(audio))

	for i, value := range audio {
		result[i] = convertSampleValue(value)
	}

	return result
}

func fmChannel(setting s3m.ChannelSetting) (c67.Channel, UnresolvedReason, bool) {
	if setting.Kind() != s3m.ChannelFM {
		return c67.Channel{}, ChannelKindMismatch, false
	}

	if setting.IsPercussion() {
		return c67.Channel{}, PercussionChannel, false
	}

	// classes past the fourth FM voice are passed through unchecked
	return c67.FM(setting.FMSlot()), 0, true
}

func (state *conversionState) pcmChannel(column int) (c67.Channel, UnresolvedReason, bool) {
	index, ok := state.channelRemap.Lookup(column)

	if !ok {
		return c67.Channel{}, UnmappedChannel, false
	}

	return c67.PCM(index), 0, true
}

// channelForClass resolves events that carry no instrument from the
// channel's own class. Note-off and volume events on FM percussion columns
// are dropped the same way notes are.
func (state *conversionState) channelForClass(column int) (c67.Channel, UnresolvedReason, bool) {
	var setting = state.source.ChannelSettings[column]

	if setting.Kind() == s3m.ChannelPCM {
		return state.pcmChannel(column)
	}

	return fmChannel(setting)
}

func (state *conversionState) convertNote(cursor *patternCursor, column int, cell s3m.Cell) {
	instrument, ok := state.source.Instrument(cursor.lastInstrument)

	if !ok {
		state.unresolved(cursor, column, MissingInstrument)
		return
	}

	var channel c67.Channel
	var reason UnresolvedReason
	var instrumentTable *RemapTable

	switch instrument.(type) {
	case *s3m.AdlibInstrument:
		channel, reason, ok = fmChannel(state.source.ChannelSettings[column])
		instrumentTable = state.fmInstrumentRemap
	default:
		channel, reason, ok = state.pcmChannel(column)
		instrumentTable = state.pcmInstrumentRemap
	}

	if !ok {
		state.unresolved(cursor, column, reason)
		return
	}

	target, ok := instrumentTable.Lookup(int(cursor.lastInstrument) - 1)

	if !ok {
		state.unresolved(cursor, column, UnmappedInstrument)
		return
	}

	var volume = instrument.DefaultVolume()

	if cell.Volume <= s3m.MaxVolume {
		volume = cell.Volume
	}

	cursor.commands = append(cursor.commands, c67.PlayNote{
		Channel:    channel,
		Octave:     (cell.Note >> 4) & 7,
		Semitone:   cell.Note & 0xF,
		Instrument: target,
		Volume:     scaleVolume(volume),
	})
}

func (state *conversionState) convertVolume(cursor *patternCursor, column int, volume uint8) {
	channel, reason, ok := state.channelForClass(column)

	if !ok {
		state.unresolved(cursor, column, reason)
		return
	}

	cursor.commands = append(cursor.commands, c67.SetVolume{
		Channel: channel,
		Volume:  volume,
	})
}

func (state *conversionState) convertCell(cursor *patternCursor, column int, cell s3m.Cell) {
	if cell.Instrument != 0 {
		cursor.lastInstrument = cell.Instrument
	}

	if cell.Note < s3m.NoteOff {
		state.convertNote(cursor, column, cell)
	} else if cell.Note == s3m.NoteOff {
		state.convertVolume(cursor, column, 0)
	} else if cell.Volume <= s3m.MaxVolume {
		state.convertVolume(cursor, column, scaleVolume(cell.Volume))
	}
}

// convertPattern emits one Delay(1) per row. Row 63 ends the pattern early:
// it emits its delay and the end marker without looking at its own events.
func (state *conversionState) convertPattern(index int, pattern *s3m.Pattern) c67.Pattern {
	var cursor = patternCursor{pattern: index}

	for row := range pattern {
		cursor.row = row

		if row == lastRow {
			cursor.commands = append(cursor.commands, c67.Delay{Rows: 1}, c67.End{})
			break
		}

		for column, cell := range pattern[row] {
			state.convertCell(&cursor, column, cell)
		}

		cursor.commands = append(cursor.commands, c67.Delay{Rows: 1})
	}

	return cursor.commands
}

func (state *conversionState) writeInstruments(header *c67.Header) {
	for target, source := range state.pcmInstrumentRemap.Sources() {
		var sample = state.source.Instruments[source].(*s3m.Sample)
		header.SetSampleFilename(target, sample.Filename())

		var metadata = c67.DefaultSampleMetadata()

		if sample.Loops() {
			metadata.LoopStart = sample.LoopBegin
			metadata.LoopEnd = sample.LoopEnd
		}

		metadata.Length = uint32(len(sample.Audio))
		header.SampleMetadata[target] = metadata
	}

	for target, source := range state.fmInstrumentRemap.Sources() {
		var instrument = state.source.Instruments[source].(*s3m.AdlibInstrument)
		header.SetFMFilename(target, instrument.Filename())
		header.FMMetadata[target] = convertFMRegisters(instrument)
	}
}

func (state *conversionState) writePlaylist(header *c67.Header) {
	var position = 0

	for index, order := range state.source.Orders {
		if order == s3m.OrderSeparator {
			continue
		}

		if position >= c67.PlaylistLength {
			state.warn(&CapacityExceededWarning{
				Resource:    ResourceOrder,
				Limit:       c67.PlaylistLength,
				SourceIndex: index,
			})
			continue
		}

		header.Playlist[position] = order
		position++
	}
}

func (state *conversionState) writePatterns(module *c67.Module) {
	var patterns = state.source.Patterns

	for index := c67.PatternCount; index < len(patterns); index++ {
		state.warn(&CapacityExceededWarning{
			Resource:    ResourcePattern,
			Limit:       c67.PatternCount,
			SourceIndex: index,
		})
	}

	for index := 0; index < c67.PatternCount; index++ {
		var commands c67.Pattern

		if index < len(patterns) {
			commands = state.convertPattern(index, patterns[index])
		} else {
			commands = c67.SilentPattern()
		}

		var data = c67.SerializePattern(commands)
		module.Header.PatternOffsets[index] = uint32(len(module.PatternData))
		module.Header.PatternLengths[index] = uint32(len(data))
		module.PatternData = append(module.PatternData, data...)
	}
}

func (state *conversionState) writeSampleData(module *c67.Module) {
	for _, source := range state.pcmInstrumentRemap.Sources() {
		var sample = state.source.Instruments[source].(*s3m.Sample)
		module.SampleData = append(module.SampleData, ConvertSampleData(sample.Audio)...)
	}
}

// S3m2C67 converts a decoded module. Conversion always succeeds; everything
// that does not fit the target is dropped and reported in Result.Warnings.
func S3m2C67(source *s3m.Module, options Options) *Result {
	var state = conversionState{
		source:  source,
		options: options,
	}

	var channelWarnings, instrumentWarnings []Warning
	state.channelRemap, channelWarnings = BuildChannelRemap(source.ChannelSettings)
	state.pcmInstrumentRemap, state.fmInstrumentRemap, instrumentWarnings = BuildInstrumentRemap(source.Instruments)
	state.warnAll(channelWarnings)
	state.warnAll(instrumentWarnings)

	var module = c67.NewModule()

	module.Header.Speed = source.InitialSpeed

	if options.Speed != 0 {
		module.Header.Speed = options.Speed
	}

	module.Header.LoopOrder = options.LoopOrder

	state.writeInstruments(&module.Header)
	state.writePlaylist(&module.Header)
	state.writePatterns(module)
	state.writeSampleData(module)

	return &Result{
		Module:             module,
		Warnings:           state.warnings,
		ChannelRemap:       state.channelRemap,
		PCMInstrumentRemap: state.pcmInstrumentRemap,
		FMInstrumentRemap:  state.fmInstrumentRemap,
	}
}
