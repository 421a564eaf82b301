package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/zerogroup/uadsr"
	"github.com/zerogroup/uadsr/cmd"
	"github.com/zerogroup/uadsr/controller"
	"github.com/zerogroup/uadsr/gomidi"
	"github.com/zerogroup/uadsr/oto"
	"github.com/zerogroup/uadsr/scenario"
	"github.com/zerogroup/uadsr/version"
)

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the working directory.")
	play := flag.Bool("p", false, "Play the rendered envelopes as the amplitude of a tone (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the DAC words as a .raw file of little-endian uint16.")
	wavOut := flag.Bool("w", false, "Output the DAC output as a mono 16-bit .wav file sampled at the tick rate.")
	csvOut := flag.Bool("csv", false, "Output tick, time, value and mode as a .csv file.")
	report := flag.Bool("report", false, "Print a summary of each rendered scenario.")
	sampleRate := flag.Int("rate", 48000, "Sample rate of the sound card.")
	tone := flag.Float64("tone", 220, "Frequency of the auditioned tone in Hz.")
	liveFlag := flag.Bool("live", false, "Run the controller in real time, with a MIDI keyboard as gate and trigger and its knobs as pots.")
	midiInput := flag.String("midi-input", "", "Use the first MIDI input whose name starts with this prefix. By default, the first input is used.")
	mute := flag.Bool("mute", false, "With -live, do not play audio; only draw the level meter.")
	listMIDI := flag.Bool("list-midi", false, "List the MIDI inputs and exit.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *listMIDI {
		inputs, err := cmd.MIDIInputs()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not list MIDI inputs: %v\n", err)
			os.Exit(1)
		}
		for _, name := range inputs {
			fmt.Println(name)
		}
		os.Exit(0)
	}
	if *liveFlag {
		if err := live(*midiInput, *sampleRate, *tone, !*mute); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut && !*wavOut && !*csvOut && !*report {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	var audioContext *oto.Context
	if *play {
		var err error
		audioContext, err = oto.NewContext(*sampleRate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto context: %v\n", err)
			os.Exit(1)
		}
	}
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			if *stdout {
				os.Stdout.Write(contents)
				return nil
			}
			_, name := filepath.Split(filename)
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
				}
			}
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			return nil
		}
		s, err := scenario.LoadFile(filename)
		if err != nil {
			return err
		}
		tr, err := scenario.Render(s)
		if err != nil {
			return fmt.Errorf("scenario.Render failed: %v", err)
		}
		if *rawOut {
			raw, err := tr.Raw()
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %v", err)
			}
			if err := output(".raw", raw); err != nil {
				return fmt.Errorf("error outputting .raw file: %v", err)
			}
		}
		if *wavOut {
			wav, err := tr.Wav()
			if err != nil {
				return fmt.Errorf("could not generate .wav file: %v", err)
			}
			if err := output(".wav", wav); err != nil {
				return fmt.Errorf("error outputting .wav file: %v", err)
			}
		}
		if *csvOut {
			var buf bytes.Buffer
			if err := tr.WriteCSV(&buf); err != nil {
				return fmt.Errorf("could not generate .csv file: %v", err)
			}
			if err := output(".csv", buf.Bytes()); err != nil {
				return fmt.Errorf("error outputting .csv file: %v", err)
			}
		}
		if *report {
			_, name := filepath.Split(filename)
			r, err := tr.Report(strings.TrimSuffix(name, filepath.Ext(name)))
			if err != nil {
				return err
			}
			fmt.Println(r)
		}
		if *play {
			voice := oto.NewVoice(audioContext.SampleRate(), *tone)
			p := audioContext.Play(oto.NewTraceSource(tr, audioContext.SampleRate(), voice))
			p.Wait()
			p.Close()
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			jsonfiles, err := filepath.Glob(filepath.Join(param, "*.json"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for json files: %v\n", param, err)
				retval = 1
				continue
			}
			ymlfiles, err := filepath.Glob(filepath.Join(param, "*.yml"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for yml files: %v\n", param, err)
				retval = 1
				continue
			}
			files := append(ymlfiles, jsonfiles...)
			for _, file := range files {
				if err := process(file); err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
					retval = 1
				}
			}
		} else {
			if err := process(param); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

// discard is the DAC of a live session; the output is only heard.
type discard struct{}

func (discard) Write(value int, gainEnable, shutdown bool) error { return nil }

func live(midiInput string, sampleRate int, tone float64, play bool) error {
	kb := gomidi.NewKeyboard()
	port, name, err := cmd.OpenMIDI(kb, midiInput)
	if err != nil {
		return err
	}
	defer port.Close()
	samples := make(chan controller.Sample, 4096)
	c, err := controller.New(uadsr.DefaultConfig, discard{}, kb, kb, controller.WithObserver(samples))
	if err != nil {
		return err
	}
	if play {
		audioContext, err := oto.NewContext(sampleRate)
		if err != nil {
			return fmt.Errorf("could not acquire oto context: %v", err)
		}
		p := audioContext.Play(oto.NewLiveSource(samples, int(c.Envelope().MaxLevel()), oto.NewVoice(sampleRate, tone)))
		defer p.Close()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fmt.Fprintf(os.Stderr, "listening to %v, press Ctrl+C to quit\n", name)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	meter(ctx, c, samples, play)
	if err := <-done; err != nil {
		return err
	}
	s := c.Stats()
	fmt.Fprintf(os.Stderr, "\n%d ticks, %d conversions, %d overruns, %d observer drops\n", s.Ticks, s.Conversions, s.Overruns, s.Dropped)
	return nil
}

// meter draws the envelope level on the terminal until ctx is done. When the
// samples are not played, the meter drains the observer channel itself.
func meter(ctx context.Context, c *controller.Controller, samples <-chan controller.Sample, played bool) {
	fd := int(os.Stdout.Fd())
	tty := term.IsTerminal(fd)
	width := 60
	if w, _, err := term.GetSize(fd); err == nil && w > 30 {
		width = w - 20
	}
	maxLevel := c.Envelope().MaxLevel()
	var last time.Time
	for ctx.Err() == nil {
		level, mode := c.Envelope().Level(), c.Envelope().Mode()
		if played {
			time.Sleep(50 * time.Millisecond)
		} else if s, ok := controller.TimeoutReceive(samples, 50*time.Millisecond); ok {
			level, mode = float64(s.Value), s.Mode
			for len(samples) > 0 {
				s = <-samples
				level, mode = float64(s.Value), s.Mode
			}
		}
		if !tty || time.Since(last) < 50*time.Millisecond {
			continue
		}
		last = time.Now()
		bar := int(level / maxLevel * float64(width))
		fmt.Printf("\r%-8v %5.0f |%-*s|", mode, level, width, strings.Repeat("#", bar))
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "uadsr-sim renders, plays and exports envelope scenario (.yml/.json) files.\nUsage: %s [flags] [path ...]\n       %s -live [-midi-input prefix]\n", os.Args[0], os.Args[0])
	flag.PrintDefaults()
}
