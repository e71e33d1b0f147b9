package audioconvert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/kennygrant/sanitize"
	"github.com/pkg/errors"

	"github.com/polyzium/s3m-c67-converter/convert"
	"github.com/polyzium/s3m-c67-converter/s3m"
)

const wavBitDepth = 8

const wavFormatPCM = 1

type wavNamer struct {
	usedNames map[string]bool
}

func (namer *wavNamer) uniqueName(nameHint string) string {
	var base = strings.TrimSuffix(nameHint, filepath.Ext(nameHint))
	base = sanitize.BaseName(base)

	if base == "" {
		base = "sample"
	}

	var index = 1
	var name = base + ".wav"

	for namer.usedNames[name] {
		index = index + 1
		name = fmt.Sprintf("%s%d.wav", base, index)
	}

	namer.usedNames[name] = true

	return name
}

func sampleRate(sample *s3m.Sample) int {
	if sample.C4Speed == 0 {
		return s3m.DefaultC4Speed
	}

	return int(sample.C4Speed)
}

func writeWav(filename string, data []byte, rate int) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0664)

	if err != nil {
		return errors.WithStack(err)
	}

	defer file.Close()

	var samples = make([]int, len(data))

	for i, value := range data {
		samples[i] = int(value)
	}

	var encoder = wav.NewEncoder(file, rate, wavBitDepth, 1, wavFormatPCM)

	err = encoder.Write(&audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{SampleRate: rate, NumChannels: 1},
		SourceBitDepth: wavBitDepth,
	})

	if err != nil {
		return errors.Wrapf(err, "writing %s", filename)
	}

	return errors.Wrapf(encoder.Close(), "closing %s", filename)
}

// WriteSampleWavs writes every PCM instrument that made it into the target
// module to dir as an unsigned 8 bit mono WAV, using the same bytes the
// target's sample blob holds. Empty instruments are skipped. It returns the
// paths written, in target slot order.
func WriteSampleWavs(dir string, source *s3m.Module, result *convert.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0776); err != nil {
		return nil, errors.WithStack(err)
	}

	var namer = wavNamer{usedNames: make(map[string]bool)}
	var header = &result.Module.Header
	var offset uint32 = 0
	var written []string = nil

	for target, sourceIndex := range result.PCMInstrumentRemap.Sources() {
		var sample = source.Instruments[sourceIndex].(*s3m.Sample)
		var length = header.SampleMetadata[target].Length
		var data = result.Module.SampleData[offset : offset+length]
		offset += length

		if length == 0 {
			continue
		}

		var filename = filepath.Join(dir, namer.uniqueName(header.SampleFilename(target)))

		if err := writeWav(filename, data, sampleRate(sample)); err != nil {
			return written, err
		}

		written = append(written, filename)
	}

	return written, nil
}
