//go:build linux

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
	"github.com/warthog618/gpiod/device/rpi"

	"github.com/zerogroup/uadsr"
	"github.com/zerogroup/uadsr/controller"
	"github.com/zerogroup/uadsr/gpioline"
	"github.com/zerogroup/uadsr/mcp48x1"
	"github.com/zerogroup/uadsr/version"
)

func main() {
	cfg := loadConfig()
	if cfg.MustGet("version").Bool() {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	logger := log.New(os.Stderr, "uadsr: ", log.LstdFlags)
	if err := run(cfg, logger); err != nil {
		logger.Fatal(err)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	envCfg := uadsr.Config{
		ResolutionBits:    cfg.MustGet("envelope.resolution").Int(),
		TickRate:          cfg.MustGet("envelope.tickrate").Int(),
		MinRise:           cfg.MustGet("envelope.minrise").Float(),
		MaxRise:           cfg.MustGet("envelope.maxrise").Float(),
		ConversionTimeout: cfg.MustGet("envelope.timeout").Duration(),
	}
	if err := envCfg.Validate(); err != nil {
		return err
	}
	layout, err := mcp48x1.NewLayout(envCfg.ResolutionBits)
	if err != nil {
		return err
	}
	chip, err := gpioline.NewChip(cfg.MustGet("gpiochip").String())
	if err != nil {
		return err
	}
	clk, err := gpioline.NewPin(chip, cfg.MustGet("dac.clk").Int())
	if err != nil {
		chip.Close()
		return err
	}
	defer clk.Close()
	data, err := gpioline.NewPin(chip, cfg.MustGet("dac.data").Int())
	if err != nil {
		chip.Close()
		return err
	}
	defer data.Close()
	latch, err := gpioline.NewLatchPin(chip, cfg.MustGet("dac.latch").Int())
	if err != nil {
		chip.Close()
		return err
	}
	defer latch.Close()
	in, err := gpioline.NewInputs(chip, cfg.MustGet("gate").Int(), cfg.MustGet("trigger").Int())
	if err != nil {
		chip.Close()
		return err
	}
	defer in.Close()
	var inputs [uadsr.NumChannels]int
	for ch := uadsr.Channel(0); ch < uadsr.NumChannels; ch++ {
		inputs[ch] = cfg.MustGet("adc." + ch.String()).Int()
	}
	tclk := cfg.MustGet("adc.tclk").Duration()
	tset := cfg.MustGet("adc.tset").Duration()
	if tset < tclk {
		tset = 0
	} else {
		tset -= tclk
	}
	adc, err := gpioline.NewADC(chip, gpioline.ADCPins{
		Clk: cfg.MustGet("adc.clk").Int(),
		Csz: cfg.MustGet("adc.csz").Int(),
		Di:  cfg.MustGet("adc.di").Int(),
		Do:  cfg.MustGet("adc.do").Int(),
	}, inputs, tclk, tset)
	// the requested lines stay valid after the chip is closed
	chip.Close()
	if err != nil {
		return err
	}
	defer adc.Close()

	dac := mcp48x1.New(layout, clk, data, latch)
	c, err := controller.New(envCfg, dac, adc, in,
		controller.WithLogger(logger),
		controller.WithPollInterval(cfg.MustGet("poll").Duration()),
		controller.WithWakeInterval(cfg.MustGet("wake").Duration()))
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Printf("running %d-bit DAC at %d Hz, rise %v s to %v s", envCfg.ResolutionBits, envCfg.TickRate, envCfg.MinRise, envCfg.MaxRise)
	runErr := c.Run(ctx)
	if err := c.Shutdown(); err != nil {
		logger.Printf("could not shut down the DAC: %v", err)
	}
	s := c.Stats()
	logger.Printf("stopped after %d ticks: %d DAC errors, %d overruns, %d conversions, %d retries",
		s.Ticks, s.DACErrors, s.Overruns, s.Conversions, s.Retries)
	return runErr
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"gpiochip": "gpiochip0",
		"version":  false,
		"poll":     "100us",
		"wake":     "1ms",
		"gate":     rpi.J8p11,
		"trigger":  rpi.J8p13,
		"dac": map[string]interface{}{
			"clk":   rpi.J8p23,
			"data":  rpi.J8p19,
			"latch": rpi.J8p24,
		},
		"adc": map[string]interface{}{
			"tclk":    "500ns",
			"tset":    "750ns",
			"clk":     rpi.J8p36,
			"csz":     rpi.J8p37,
			"di":      rpi.J8p38,
			"do":      rpi.J8p40,
			"attack":  0,
			"decay":   1,
			"sustain": 2,
			"release": 3,
		},
		"envelope": map[string]interface{}{
			"resolution": uadsr.DefaultConfig.ResolutionBits,
			"tickrate":   uadsr.DefaultConfig.TickRate,
			"minrise":    uadsr.DefaultConfig.MinRise,
			"maxrise":    uadsr.DefaultConfig.MaxRise,
			"timeout":    uadsr.DefaultConfig.ConversionTimeout.String(),
		},
	}
	def := dict.New(dict.WithMap(defaultConfig))
	flags := []pflag.Flag{
		{Short: 'c', Name: "config-file"},
		{Short: 'v', Name: "version"},
	}
	cfg := config.New(
		pflag.New(pflag.WithFlags(flags)),
		env.New(env.WithEnvPrefix("UADSR_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "uadsr.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}
