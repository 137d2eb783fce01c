package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/janpfeifer/must"
	"github.com/samuelfneumann/pongdqn/experiment"
	"k8s.io/klog/v2"
)

var (
	flagConfig = flag.String("config", "",
		"JSON configuration file, flags given explicitly override its values")
	flagModel   = flag.String("model", experiment.M1, "Model preset: m1 or small")
	flagDueling = flag.Bool("dueling", false, "Use a dueling network")
	flagDoubleQ = flag.Bool("double_q", false, "Use double Q-learning targets")
	flagEnvName = flag.String("env_name", experiment.PongTwoPlayer,
		"Frame source: pong2p, or gym:<name> when built with the gym tag")
	flagActionRepeat = flag.Int("action_repeat", 1,
		"Number of frames each action is repeated for")
	flagUseGPU      = flag.Bool("use_gpu", false, "Whether to run on a GPU")
	flagGPUFraction = flag.String("gpu_fraction", "5/6",
		"idx/num fraction of GPU memory to claim")
	flagDisplay = flag.Bool("display", false,
		"Render screens as PNG files into the render directory")
	flagIsTrain = flag.Bool("is_train", true,
		"Train, otherwise play with frozen weights")
	flagSeed = flag.Uint64("random_seed", 123,
		"Seed of all random number generators")
	flagCheckpointDir = flag.String("checkpoint_dir", "checkpoints",
		"Directory of the checkpoints")
	flagTelemetryDB = flag.String("telemetry_db", "telemetry.db",
		"SQLite database of window summaries, empty disables telemetry")
	flagMaxStep = flag.Int("max_step", 5000*10000,
		"Number of global steps to train for")
	flagEpisodes = flag.Int("episodes", 1,
		"Number of games played when not training")
	flagSaveConfig = flag.String("save_config", "",
		"Write the resulting configuration to this file and exit")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	c := config()
	if *flagSaveConfig != "" {
		must.M(c.Save(*flagSaveConfig))
		klog.Infof("configuration written to %s", *flagSaveConfig)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	session, err := experiment.NewSession(ctx, c)
	if err != nil {
		klog.Exitf("Failed to create session: %+v", err)
	}
	klog.Infof("run %s: model=%s env=%s train=%v", session.RunID, c.Model,
		c.EnvName, c.IsTrain)

	err = session.Run(ctx)
	if closeErr := session.Close(); closeErr != nil {
		klog.Errorf("Failed to close session: %v", closeErr)
	}
	switch {
	case errors.Is(err, context.Canceled):
		klog.Info("interrupted, progress up to the last checkpoint is kept")
	case err != nil:
		klog.Exitf("Run failed: %+v", err)
	}
}

// config builds the run configuration from the configuration file, if
// any, and the flags given on the command line
func config() experiment.Config {
	c := experiment.DefaultConfig()
	if *flagConfig != "" {
		c = must.M1(experiment.Load(*flagConfig))
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if *flagConfig == "" || set["model"] || set["dueling"] || set["double_q"] {
		c.Model = *flagModel
		agentConfig, err := experiment.Preset(*flagModel, *flagDueling,
			*flagDoubleQ)
		if err != nil {
			klog.Exitf("Invalid --model=%q: %v", *flagModel, err)
		}
		c.Agent = agentConfig
	}

	override := func(name string, apply func()) {
		if *flagConfig == "" || set[name] {
			apply()
		}
	}
	override("env_name", func() { c.EnvName = *flagEnvName })
	override("action_repeat", func() { c.ActionRepeat = *flagActionRepeat })
	override("use_gpu", func() { c.UseGPU = *flagUseGPU })
	override("gpu_fraction", func() { c.GPUFraction = *flagGPUFraction })
	override("display", func() { c.Display = *flagDisplay })
	override("is_train", func() { c.IsTrain = *flagIsTrain })
	override("random_seed", func() { c.Seed = *flagSeed })
	override("checkpoint_dir", func() { c.CheckpointDir = *flagCheckpointDir })
	override("telemetry_db", func() { c.TelemetryDB = *flagTelemetryDB })
	override("max_step", func() { c.MaxStep = *flagMaxStep })
	override("episodes", func() { c.PlayEpisodes = *flagEpisodes })

	if err := c.Validate(); err != nil {
		klog.Exitf("Invalid configuration: %v", err)
	}
	return c
}
