package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/polyzium/s3m-c67-converter/audioconvert"
	"github.com/polyzium/s3m-c67-converter/c67"
	"github.com/polyzium/s3m-c67-converter/convert"
	"github.com/polyzium/s3m-c67-converter/s3m"
)

const usage = `Usage
	s3m2c67 input.s3m output.c67 [--speed n] [--loop-order n] [--dump-samples dir] [--strict] [-q]
	s3m2c67 input.c67`

var warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#d7af00"))

type commandOptions struct {
	speed       uint8
	loopOrder   uint8
	dumpSamples string
	strict      bool
	quiet       bool
}

type warningPrinter struct {
	prefix string
	quiet  bool
}

func newWarningPrinter(quiet bool) *warningPrinter {
	var prefix = "warning:"

	if term.IsTerminal(int(os.Stderr.Fd())) {
		prefix = warningStyle.Render(prefix)
	}

	return &warningPrinter{prefix, quiet}
}

func (printer *warningPrinter) print(warning convert.Warning) {
	if !printer.quiet {
		fmt.Fprintln(os.Stderr, printer.prefix, warning.Error())
	}
}

func readSourceModule(input string) (*s3m.Module, error) {
	file, err := os.Open(input)

	if err != nil {
		return nil, errors.WithStack(err)
	}

	defer file.Close()

	module, err := s3m.Parse(file)

	if err != nil {
		var formatErr *s3m.FormatError

		if errors.As(err, &formatErr) {
			return nil, errors.Errorf("%s is not an S3M module", input)
		}

		return nil, errors.Wrapf(err, "reading %s", input)
	}

	return module, nil
}

func writeTargetModule(output string, module *c67.Module) error {
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0664)

	if err != nil {
		return errors.WithStack(err)
	}

	err = module.Serialize(file)

	if err != nil {
		file.Close()
		return errors.Wrapf(err, "writing %s", output)
	}

	return errors.Wrapf(file.Close(), "closing %s", output)
}

func logChannelMap(source *s3m.Module, result *convert.Result) {
	for target, column := range result.ChannelRemap.Sources() {
		log.Printf("channel %s -> PCM %d", source.ChannelSettings[column], target)
	}
}

func convertModule(input string, output string, options commandOptions) error {
	source, err := readSourceModule(input)

	if err != nil {
		return err
	}

	if source.SongName != "" && !options.quiet {
		log.Printf("Converting %q", source.SongName)
	}

	var printer = newWarningPrinter(options.quiet)

	var result = convert.S3m2C67(source, convert.Options{
		Speed:     options.speed,
		LoopOrder: options.loopOrder,
		OnWarning: printer.print,
	})

	if options.strict && len(result.Warnings) != 0 {
		return errors.Errorf("%d warnings raised, not writing %s", len(result.Warnings), output)
	}

	if !options.quiet {
		logChannelMap(source, result)
	}

	err = writeTargetModule(output, result.Module)

	if err != nil {
		return err
	}

	fmt.Printf("Wrote module to %s\n", output)

	if options.dumpSamples != "" {
		written, err := audioconvert.WriteSampleWavs(options.dumpSamples, source, result)

		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d samples to %s\n", len(written), options.dumpSamples)
	}

	return nil
}

func printModuleInfo(input string) error {
	file, err := os.Open(input)

	if err != nil {
		return errors.WithStack(err)
	}

	defer file.Close()

	module, err := c67.Parse(file)

	if err != nil {
		return errors.Wrapf(err, "reading %s", input)
	}

	var header = &module.Header

	fmt.Printf("speed %d, loop order %d\n", header.Speed, header.LoopOrder)

	var playlist []string = nil

	for _, entry := range header.Playlist {
		if entry == c67.PlaylistUnused {
			break
		}

		playlist = append(playlist, fmt.Sprint(entry))
	}

	fmt.Printf("playlist: %s\n", strings.Join(playlist, " "))

	for index := 0; index < c67.InstrumentCount; index++ {
		var name = header.SampleFilename(index)
		var metadata = header.SampleMetadata[index]

		if name != "" || metadata.Length != 0 {
			fmt.Printf("PCM %2d %-12s length %d loop %d..%d\n", index, name, metadata.Length, metadata.LoopStart, metadata.LoopEnd)
		}
	}

	for index := 0; index < c67.InstrumentCount; index++ {
		if name := header.FMFilename(index); name != "" {
			fmt.Printf("FM  %2d %-12s %+v\n", index, name, header.FMMetadata[index])
		}
	}

	var silent = 0
	var silentData = c67.SerializePattern(c67.SilentPattern())

	for index := 0; index < c67.PatternCount; index++ {
		data, err := module.Pattern(index)

		if err != nil {
			return err
		}

		if _, err := c67.ParsePattern(data); err != nil {
			return errors.Wrapf(err, "pattern %d", index)
		}

		if bytes.Equal(data, silentData) {
			silent++
		}
	}

	fmt.Printf("%d patterns, %d silent, %d bytes of sample data\n", c67.PatternCount, silent, len(module.SampleData))

	return nil
}

func main() {
	var args = NewArgs(usage)
	args.AddIntegerArg([]string{"--speed"}, "initial speed, 0 keeps the speed of the source module", 0, 0, 255)
	args.AddIntegerArg([]string{"--loop-order"}, "playlist position to loop back to", 0, 0, 255)
	args.AddStringArg([]string{"--dump-samples"}, "directory to write the converted PCM samples to as wav files", "")
	args.AddFlagArg([]string{"--strict"}, "fail instead of writing when anything had to be discarded")
	args.AddFlagArg([]string{"--quiet", "-q"}, "do not print warnings")
	args.AddFlagArg([]string{"--help", "-h"}, "show this message")

	parsed, positional, errs := args.Parse(os.Args[1:])

	if len(errs) != 0 {
		for _, err := range errs {
			log.Println(err)
		}
		log.Fatal(args.CreateHelpMessage())
	}

	if parsed.Flag("--help") || len(positional) == 0 {
		fmt.Println(args.CreateHelpMessage())
		return
	}

	var input = positional[0]

	if len(positional) == 1 && strings.EqualFold(filepath.Ext(input), ".c67") {
		if err := printModuleInfo(input); err != nil {
			log.Fatal(err)
		}
		return
	}

	if len(positional) != 2 {
		log.Fatal(args.CreateHelpMessage())
	}

	var options = commandOptions{
		speed:       uint8(parsed.Integer("--speed")),
		loopOrder:   uint8(parsed.Integer("--loop-order")),
		dumpSamples: parsed.String("--dump-samples"),
		strict:      parsed.Flag("--strict"),
		quiet:       parsed.Flag("--quiet"),
	}

	if err := convertModule(input, positional[1], options); err != nil {
		log.Fatal(err)
	}
}
