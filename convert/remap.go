package convert

import (
	"github.com/polyzium/s3m-c67-converter/c67"
	"github.com/polyzium/s3m-c67-converter/s3m"
)

// RemapTable assigns target indices to source indices in first seen order
// until the target capacity is used up.
type RemapTable struct {
	capacity int
	targets  map[int]uint8
	sources  []int
}

func newRemapTable(capacity int) *RemapTable {
	return &RemapTable{
		capacity: capacity,
		targets:  make(map[int]uint8),
	}
}

func (table *RemapTable) assign(source int) bool {
	if len(table.sources) >= table.capacity {
		return false
	}

	table.targets[source] = uint8(len(table.sources))
	table.sources = append(table.sources, source)

	return true
}

func (table *RemapTable) Lookup(source int) (uint8, bool) {
	target, ok := table.targets[source]
	return target, ok
}

func (table *RemapTable) Len() int {
	return len(table.sources)
}

// Sources lists the mapped source indices ordered by target index.
func (table *RemapTable) Sources() []int {
	return append([]int(nil), table.sources...)
}

// BuildChannelRemap maps enabled PCM channels, by column, to the target's
// PCM channels. FM channels are addressed directly and never appear here.
func BuildChannelRemap(settings [s3m.ChannelCount]s3m.ChannelSetting) (*RemapTable, []Warning) {
	var result = newRemapTable(c67.PCMChannelCount)
	var warnings []Warning = nil

	for column, setting := range settings {
		if !setting.Enabled() || setting.Kind() != s3m.ChannelPCM {
			continue
		}

		if !result.assign(column) {
			warnings = append(warnings, &CapacityExceededWarning{
				Resource:    ResourcePCMChannel,
				Limit:       c67.PCMChannelCount,
				SourceIndex: column,
			})
		}
	}

	return result, warnings
}

// BuildInstrumentRemap gives every instrument a slot in its class's table,
// keyed by the 0 based instrument index. A full class drops its remaining
// instruments without affecting the other class.
func BuildInstrumentRemap(instruments []s3m.Instrument) (pcm *RemapTable, fm *RemapTable, warnings []Warning) {
	pcm = newRemapTable(c67.InstrumentCount)
	fm = newRemapTable(c67.InstrumentCount)

	for index, instrument := range instruments {
		var table *RemapTable
		var resource Resource

		switch instrument.(type) {
		case *s3m.Sample:
			table, resource = pcm, ResourcePCMInstrument
		case *s3m.AdlibInstrument:
			table, resource = fm, ResourceFMInstrument
		default:
			continue
		}

		if !table.assign(index) {
			warnings = append(warnings, &CapacityExceededWarning{
				Resource:    resource,
				Limit:       c67.InstrumentCount,
				SourceIndex: index,
			})
		}
	}

	return pcm, fm, warnings
}
