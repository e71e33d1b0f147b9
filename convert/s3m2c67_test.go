package convert

import (
	"bytes"
	"fmt"
	"reflect"
	"testing"

	"github.com/polyzium/s3m-c67-converter/c67"
	"github.com/polyzium/s3m-c67-converter/s3m"
	"github.com/polyzium/s3m-c67-converter/s3m/s3mtest"
)

func newSourceModule() *s3m.Module {
	var module = &s3m.Module{InitialSpeed: 6}

	for i := range module.ChannelSettings {
		module.ChannelSettings[i] = 0xFF
	}

	return module
}

func convertedPattern(t *testing.T, result *Result, index int) c67.Pattern {
	t.Helper()

	data, err := result.Module.Pattern(index)

	if err != nil {
		t.Fatalf("Pattern(%d) failed: %v", index, err)
	}

	pattern, err := c67.ParsePattern(data)

	if err != nil {
		t.Fatalf("ParsePattern(%d) failed: %v", index, err)
	}

	return pattern
}

// notes drops the row delays and the end marker
func notes(pattern c67.Pattern) c67.Pattern {
	var result c67.Pattern = nil

	for _, command := range pattern {
		switch command.(type) {
		case c67.Delay, c67.End:
		default:
			result = append(result, command)
		}
	}

	return result
}

func countDelays(pattern c67.Pattern) int {
	var result = 0

	for _, command := range pattern {
		if delay, ok := command.(c67.Delay); ok {
			result += int(delay.Rows)
		}
	}

	return result
}

func TestScaleVolume(t *testing.T) {
	tests := []struct {
		input uint8
		want  uint8
	}{
		{0, 0},
		{3, 0},
		{4, 1},
		{32, 8},
		{59, 14},
		{60, 15},
		{64, 15},
	}

	for _, tc := range tests {
		if got := scaleVolume(tc.input); got != tc.want {
			t.Errorf("scaleVolume(%d) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestConvertSampleData(t *testing.T) {
	var got = ConvertSampleData([]int16{-32768, -256, -1, 0, 255, 256, 32767})
	var want = []byte{0, 127, 127, 128, 128, 129, 255}

	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEndToEnd(t *testing.T) {
	var builder = s3mtest.NewBuilder()
	builder.InitialSpeed = 5
	builder.ChannelSettings[0] = 0
	builder.Orders = []uint8{0, s3m.OrderSeparator, 0, s3m.OrderEnd}
	builder.Instruments = []s3mtest.Instrument{s3mtest.Sample("KICK.SMP", 64, []byte{0x80, 0x00, 0xFF})}

	var pattern = s3m.NewPattern()
	pattern[0][0] = s3m.Cell{Note: 0x34, Instrument: 1, Volume: 32}
	builder.Patterns = []*s3m.Pattern{pattern}

	source, err := s3m.Parse(bytes.NewReader(builder.Build()))

	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var result = S3m2C67(source, Options{})

	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", result.Warnings)
	}

	var header = &result.Module.Header

	if header.Speed != 5 || header.LoopOrder != 0 {
		t.Errorf("speed %d loop %d", header.Speed, header.LoopOrder)
	}

	if header.SampleFilename(0) != "KICK.SMP" {
		t.Errorf("SampleFilename(0) = %q", header.SampleFilename(0))
	}

	if header.SampleMetadata[0].Length != 3 || header.SampleMetadata[0].LoopEnd != c67.DefaultLoopEnd {
		t.Errorf("sample metadata = %+v", header.SampleMetadata[0])
	}

	if header.Playlist[0] != 0 || header.Playlist[1] != 0 || header.Playlist[2] != s3m.OrderEnd || header.Playlist[3] != c67.PlaylistUnused {
		t.Errorf("playlist = % X", header.Playlist[:4])
	}

	var want = []byte{0x00, 0x34, 0x08}

	for i := 0; i < s3m.RowCount; i++ {
		want = append(want, 0x40, 0x01)
	}

	want = append(want, 0x60)

	var first = result.Module.PatternData[header.PatternOffsets[0] : header.PatternOffsets[0]+header.PatternLengths[0]]

	if !bytes.Equal(first, want) {
		t.Errorf("pattern 0 = % X, want % X", first, want)
	}

	for i := 1; i < c67.PatternCount; i++ {
		data, _ := result.Module.Pattern(i)

		if !bytes.Equal(data, []byte{0x40, 0x40, 0x60}) {
			t.Fatalf("pattern %d = % X", i, data)
		}

		if header.PatternOffsets[i] != uint32(len(want)+(i-1)*3) {
			t.Fatalf("pattern %d offset = %d", i, header.PatternOffsets[i])
		}
	}

	if !bytes.Equal(result.Module.SampleData, []byte{0x80, 0x00, 0xFF}) {
		t.Errorf("sample data = % X", result.Module.SampleData)
	}

	var data = result.Module.Bytes()

	if len(data) != c67.HeaderSize+len(want)+127*3+3 {
		t.Errorf("file length = %d", len(data))
	}

	parsed, err := c67.Parse(bytes.NewReader(data))

	if err != nil {
		t.Fatalf("c67.Parse failed: %v", err)
	}

	if parsed.Header != *header {
		t.Errorf("header did not survive a round trip")
	}
}

func TestOptions(t *testing.T) {
	var source = newSourceModule()

	var result = S3m2C67(source, Options{Speed: 9, LoopOrder: 3})

	if result.Module.Header.Speed != 9 || result.Module.Header.LoopOrder != 3 {
		t.Errorf("speed %d loop %d", result.Module.Header.Speed, result.Module.Header.LoopOrder)
	}

	result = S3m2C67(source, Options{})

	if result.Module.Header.Speed != 6 {
		t.Errorf("speed %d, want source speed", result.Module.Header.Speed)
	}
}

func TestPlaylist(t *testing.T) {
	t.Run("separators", func(t *testing.T) {
		var source = newSourceModule()
		source.Orders = []uint8{3, s3m.OrderSeparator, 5, s3m.OrderSeparator}

		var playlist = S3m2C67(source, Options{}).Module.Header.Playlist

		if playlist[0] != 3 || playlist[1] != 5 {
			t.Errorf("playlist = % X", playlist[:4])
		}

		for i := 2; i < c67.PlaylistLength; i++ {
			if playlist[i] != c67.PlaylistUnused {
				t.Fatalf("playlist[%d] = %02X", i, playlist[i])
			}
		}
	})

	t.Run("overflow", func(t *testing.T) {
		var source = newSourceModule()

		for i := 0; i < 300; i++ {
			source.Orders = append(source.Orders, 1)
		}

		var result = S3m2C67(source, Options{})

		if len(result.Warnings) != 44 {
			t.Fatalf("got %d warnings, want 44", len(result.Warnings))
		}

		var warning = result.Warnings[0].(*CapacityExceededWarning)

		if warning.Resource != ResourceOrder || warning.SourceIndex != 256 {
			t.Errorf("warning = %+v", warning)
		}

		if result.Module.Header.Playlist[255] != 1 {
			t.Errorf("last playlist entry = %02X", result.Module.Header.Playlist[255])
		}
	})
}

func TestPatternOverflow(t *testing.T) {
	var source = newSourceModule()

	for i := 0; i < 130; i++ {
		source.Patterns = append(source.Patterns, s3m.NewPattern())
	}

	var result = S3m2C67(source, Options{})

	if len(result.Warnings) != 2 {
		t.Fatalf("got %d warnings, want 2", len(result.Warnings))
	}

	for i, warning := range result.Warnings {
		var capacity = warning.(*CapacityExceededWarning)

		if capacity.Resource != ResourcePattern || capacity.SourceIndex != 128+i {
			t.Errorf("warning %d = %+v", i, capacity)
		}
	}

	if countDelays(convertedPattern(t, result, 127)) != s3m.RowCount {
		t.Errorf("pattern 127 should be converted, not filled")
	}
}

func TestPatternTranscription(t *testing.T) {
	t.Run("empty pattern has 64 rows", func(t *testing.T) {
		var source = newSourceModule()
		source.Patterns = []*s3m.Pattern{s3m.NewPattern()}

		var pattern = convertedPattern(t, S3m2C67(source, Options{}), 0)

		if len(pattern) != s3m.RowCount+1 || countDelays(pattern) != s3m.RowCount {
			t.Errorf("pattern = %v", pattern)
		}

		if _, ok := pattern[len(pattern)-1].(c67.End); !ok {
			t.Errorf("pattern does not end with End")
		}
	})

	t.Run("last row events are discarded", func(t *testing.T) {
		var source = newSourceModule()
		source.ChannelSettings[0] = 0
		source.Instruments = []s3m.Instrument{&s3m.Sample{Volume: 64}}

		var pattern = s3m.NewPattern()
		pattern[63][0] = s3m.Cell{Note: 0x40, Instrument: 1, Volume: s3m.VolumeEmpty}
		source.Patterns = []*s3m.Pattern{pattern}

		var result = S3m2C67(source, Options{})

		if events := notes(convertedPattern(t, result, 0)); len(events) != 0 {
			t.Errorf("row 63 produced %v", events)
		}
	})

	t.Run("instrument carries across rows", func(t *testing.T) {
		var source = newSourceModule()
		source.ChannelSettings[0] = 0
		source.ChannelSettings[1] = 1
		source.Instruments = []s3m.Instrument{&s3m.Sample{Volume: 20}, &s3m.Sample{Volume: 64}}

		var pattern = s3m.NewPattern()
		pattern[0][0] = s3m.Cell{Note: 0x30, Instrument: 2, Volume: s3m.VolumeEmpty}
		pattern[1][1] = s3m.Cell{Note: 0x31, Instrument: 0, Volume: s3m.VolumeEmpty}
		source.Patterns = []*s3m.Pattern{pattern, s3m.NewPattern()}
		source.Patterns[1][0][0] = s3m.Cell{Note: 0x32, Instrument: 0, Volume: s3m.VolumeEmpty}

		var result = S3m2C67(source, Options{})

		var want = c67.Pattern{
			c67.PlayNote{Channel: c67.PCM(0), Octave: 3, Semitone: 0, Instrument: 1, Volume: 15},
			c67.PlayNote{Channel: c67.PCM(1), Octave: 3, Semitone: 1, Instrument: 1, Volume: 15},
		}

		if got := notes(convertedPattern(t, result, 0)); !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}

		// the carried instrument does not survive into the next pattern
		if got := notes(convertedPattern(t, result, 1)); len(got) != 0 {
			t.Errorf("pattern 1 = %v", got)
		}

		if len(result.Warnings) != 1 {
			t.Fatalf("warnings = %v", result.Warnings)
		}

		var warning = result.Warnings[0].(*UnresolvedReferenceWarning)

		if warning.Reason != MissingInstrument || warning.Pattern != 1 || warning.Row != 0 {
			t.Errorf("warning = %+v", warning)
		}
	})

	t.Run("column volume overrides default", func(t *testing.T) {
		var source = newSourceModule()
		source.ChannelSettings[0] = 0
		source.Instruments = []s3m.Instrument{&s3m.Sample{Volume: 64}}

		var pattern = s3m.NewPattern()
		pattern[0][0] = s3m.Cell{Note: 0x52, Instrument: 1, Volume: 0}
		pattern[1][0] = s3m.Cell{Note: s3m.NoteEmpty, Volume: 40}
		pattern[2][0] = s3m.Cell{Note: s3m.NoteOff, Volume: s3m.VolumeEmpty}
		source.Patterns = []*s3m.Pattern{pattern}

		var want = c67.Pattern{
			c67.PlayNote{Channel: c67.PCM(0), Octave: 5, Semitone: 2, Instrument: 0, Volume: 0},
			c67.SetVolume{Channel: c67.PCM(0), Volume: 10},
			c67.SetVolume{Channel: c67.PCM(0), Volume: 0},
		}

		if got := notes(convertedPattern(t, S3m2C67(source, Options{}), 0)); !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("fm channels", func(t *testing.T) {
		var source = newSourceModule()
		source.ChannelSettings[0] = 0
		source.ChannelSettings[1] = 17
		source.ChannelSettings[2] = 27
		source.Instruments = []s3m.Instrument{&s3m.Sample{Volume: 64}, &s3m.AdlibInstrument{Volume: 48}}

		var pattern = s3m.NewPattern()
		pattern[0][1] = s3m.Cell{Note: 0x47, Instrument: 2, Volume: s3m.VolumeEmpty}
		pattern[1][2] = s3m.Cell{Note: 0x47, Instrument: 2, Volume: s3m.VolumeEmpty}
		pattern[2][0] = s3m.Cell{Note: 0x47, Instrument: 2, Volume: s3m.VolumeEmpty}
		pattern[3][1] = s3m.Cell{Note: s3m.NoteOff, Volume: s3m.VolumeEmpty}
		source.Patterns = []*s3m.Pattern{pattern}

		var warnings []Warning
		var result = S3m2C67(source, Options{OnWarning: func(warning Warning) {
			warnings = append(warnings, warning)
		}})

		var want = c67.Pattern{
			c67.PlayNote{Channel: c67.FM(1), Octave: 4, Semitone: 7, Instrument: 0, Volume: 12},
			c67.SetVolume{Channel: c67.FM(1), Volume: 0},
		}

		if got := notes(convertedPattern(t, result, 0)); !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}

		if !reflect.DeepEqual(warnings, result.Warnings) {
			t.Errorf("OnWarning saw %v, result has %v", warnings, result.Warnings)
		}

		var reasons []UnresolvedReason

		for _, warning := range result.Warnings {
			reasons = append(reasons, warning.(*UnresolvedReferenceWarning).Reason)
		}

		if !reflect.DeepEqual(reasons, []UnresolvedReason{PercussionChannel, ChannelKindMismatch}) {
			t.Errorf("reasons = %v", reasons)
		}
	})

	t.Run("unmapped channel", func(t *testing.T) {
		var source = newSourceModule()

		for i := 0; i < 5; i++ {
			source.ChannelSettings[i] = s3m.ChannelSetting(i)
		}

		source.Instruments = []s3m.Instrument{&s3m.Sample{Volume: 64}}

		var pattern = s3m.NewPattern()
		pattern[0][4] = s3m.Cell{Note: s3m.NoteOff, Volume: s3m.VolumeEmpty}
		pattern[1][4] = s3m.Cell{Note: 0x40, Instrument: 1, Volume: s3m.VolumeEmpty}
		source.Patterns = []*s3m.Pattern{pattern}

		var result = S3m2C67(source, Options{})

		if got := notes(convertedPattern(t, result, 0)); len(got) != 0 {
			t.Errorf("got %v", got)
		}

		// one capacity warning for the fifth channel, then one per dropped event
		if len(result.Warnings) != 3 {
			t.Fatalf("warnings = %v", result.Warnings)
		}

		for _, warning := range result.Warnings[1:] {
			if warning.(*UnresolvedReferenceWarning).Reason != UnmappedChannel {
				t.Errorf("warning = %v", warning)
			}
		}
	})

	t.Run("instrument out of range", func(t *testing.T) {
		var source = newSourceModule()
		source.ChannelSettings[0] = 0

		var pattern = s3m.NewPattern()
		pattern[0][0] = s3m.Cell{Note: 0x40, Instrument: 9, Volume: s3m.VolumeEmpty}
		source.Patterns = []*s3m.Pattern{pattern}

		var result = S3m2C67(source, Options{})

		if len(result.Warnings) != 1 || result.Warnings[0].(*UnresolvedReferenceWarning).Instrument != 9 {
			t.Errorf("warnings = %v", result.Warnings)
		}
	})
}

func TestInstrumentMetadata(t *testing.T) {
	var source = newSourceModule()
	source.Instruments = []s3m.Instrument{
		&s3m.Sample{FileName: [12]byte{'A'}, Flags: s3m.SampleFlagLoop, LoopBegin: 2, LoopEnd: 6, Audio: make([]int16, 8)},
		&s3m.AdlibInstrument{FileName: [12]byte{'B'}, Registers: [12]uint8{10: 0x0E}},
		&s3m.Sample{FileName: [12]byte{'C'}, LoopBegin: 2, LoopEnd: 6, Audio: []int16{-32768, 32767}},
	}

	var result = S3m2C67(source, Options{})
	var header = &result.Module.Header

	if header.SampleFilename(0) != "A" || header.SampleFilename(1) != "C" || header.FMFilename(0) != "B" {
		t.Errorf("filenames %q %q %q", header.SampleFilename(0), header.SampleFilename(1), header.FMFilename(0))
	}

	if header.SampleMetadata[0] != (c67.SampleMetadata{Length: 8, LoopStart: 2, LoopEnd: 6}) {
		t.Errorf("looped metadata = %+v", header.SampleMetadata[0])
	}

	if header.SampleMetadata[1] != (c67.SampleMetadata{Length: 2, LoopEnd: c67.DefaultLoopEnd}) {
		t.Errorf("unlooped metadata = %+v", header.SampleMetadata[1])
	}

	if header.FMMetadata[0].FeedbackConnection != 0x0E {
		t.Errorf("fm metadata = %+v", header.FMMetadata[0])
	}

	if len(result.Module.SampleData) != 10 || result.Module.SampleData[8] != 0 || result.Module.SampleData[9] != 255 {
		t.Errorf("sample data = % X", result.Module.SampleData)
	}
}

func TestInstrumentCap(t *testing.T) {
	var source = newSourceModule()
	var wantLength = 0

	for i := 0; i < 40; i++ {
		var sample = &s3m.Sample{Audio: make([]int16, i+1)}
		copy(sample.FileName[:], fmt.Sprintf("S%02d.SMP", i+1))
		source.Instruments = append(source.Instruments, sample)

		if i < c67.InstrumentCount {
			wantLength += i + 1
		}
	}

	var result = S3m2C67(source, Options{})
	var header = &result.Module.Header

	for i := 0; i < c67.InstrumentCount; i++ {
		if want := fmt.Sprintf("S%02d.SMP", i+1); header.SampleFilename(i) != want {
			t.Errorf("SampleFilename(%d) = %q, want %q", i, header.SampleFilename(i), want)
		}

		if header.SampleMetadata[i].Length != uint32(i+1) {
			t.Errorf("SampleMetadata[%d].Length = %d", i, header.SampleMetadata[i].Length)
		}
	}

	if len(result.Module.SampleData) != wantLength {
		t.Errorf("sample data length = %d, want %d", len(result.Module.SampleData), wantLength)
	}

	if len(result.Warnings) != 8 {
		t.Fatalf("got %d warnings, want 8", len(result.Warnings))
	}

	for i, warning := range result.Warnings {
		var capacity = warning.(*CapacityExceededWarning)

		if capacity.Resource != ResourcePCMInstrument || capacity.SourceIndex != 32+i {
			t.Errorf("warning %d = %+v", i, capacity)
		}
	}
}

func TestPercussionVolumeEvents(t *testing.T) {
	var source = newSourceModule()
	source.ChannelSettings[0] = 27

	var pattern = s3m.NewPattern()
	pattern[0][0] = s3m.Cell{Note: s3m.NoteOff, Volume: s3m.VolumeEmpty}
	pattern[1][0] = s3m.Cell{Note: s3m.NoteEmpty, Volume: 32}
	source.Patterns = []*s3m.Pattern{pattern}

	var result = S3m2C67(source, Options{})

	if got := notes(convertedPattern(t, result, 0)); len(got) != 0 {
		t.Errorf("got %v", got)
	}

	if len(result.Warnings) != 2 {
		t.Fatalf("warnings = %v", result.Warnings)
	}

	for i, warning := range result.Warnings {
		var unresolved = warning.(*UnresolvedReferenceWarning)

		if unresolved.Reason != PercussionChannel || unresolved.Row != i {
			t.Errorf("warning %d = %+v", i, unresolved)
		}
	}
}
