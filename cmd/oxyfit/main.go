package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/CK6170/Oxyfit-go/config"
	"github.com/CK6170/Oxyfit-go/pipeline"
	"github.com/CK6170/Oxyfit-go/ui"
)

func main() {
	_ = godotenv.Load()
	var (
		cfgPath    = flag.String("config", "run.toml", "run configuration (TOML)")
		outPath    = flag.String("out", "", "output JSON (default <config>_fitted.json)")
		reduceOnly = flag.Bool("reduce-only", false, "reduce titrations and skip the sensor fit")
	)
	flag.Parse()

	if err := run(*cfgPath, *outPath, *reduceOnly); err != nil {
		ui.Errorf("%v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, outPath string, reduceOnly bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if reduceOnly {
		cfg.Inputs.Instrument = ""
	}
	if err := cfg.Validate(!reduceOnly && cfg.Inputs.Instrument != ""); err != nil {
		return err
	}
	debug := cfg.Output.Debug
	ui.Debugf(debug, "config %+v\n", *cfg)

	sess, err := pipeline.Open(cfg)
	if err != nil {
		return err
	}
	ui.Debugf(debug, "%d flasks, %d titrations, %d bottles\n", len(sess.Flasks), len(sess.Run.Records), sess.Bottles.Len())

	ctx := context.Background()
	if sess.Instrument != nil {
		var cancel context.CancelFunc
		ctx, cancel = ui.CancelOnKeys(ctx)
		defer cancel()
		fmt.Println("Press ESC or q to stop the fit.")
	}

	rep, err := sess.Process(ctx, func(u pipeline.FitUpdate) {
		switch {
		case u.Message != "":
			fmt.Println(u.Message)
		case debug && u.Iteration > 0:
			ui.Debugf(true, "it %4d cost %.6g x %v\n", u.Iteration, u.Cost, u.X)
		}
	})
	ui.StopKeyEvents()
	if errors.Is(err, context.Canceled) {
		if rep != nil && rep.Fit != nil {
			fmt.Println()
			fmt.Print(ui.CoefficientTable(rep.Fit.Initial, rep.Fit.Coefficients))
			ui.Warningf("Warning: %s (not saved)\n", rep.Warning)
		}
		return fmt.Errorf("fit stopped by user")
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nTitrant normality %.6f\n\n", rep.Reduction.TitrantNormality)
	fmt.Print(ui.OxygenTable(rep.Reduction))
	if f := rep.Fit; f != nil {
		fmt.Println()
		fmt.Print(ui.CoefficientTable(f.Initial, f.Coefficients))
		fmt.Printf("\n%s after %d iterations (%d evaluations), RMS %.4f ml/l, mean %.4f, n=%d\n",
			f.Status.Reason, f.Status.Iterations, f.Status.Evaluations, f.Summary.RMS, f.Summary.Mean, f.Summary.N)
	}
	if rep.Warning != "" {
		ui.Warningf("Warning: %s\n", rep.Warning)
	}

	if outPath == "" {
		outPath = cfg.Output.Path
	}
	if outPath == "" {
		outPath = pipeline.FittedPath(cfgPath)
	}
	if err := pipeline.SaveFittedJSON(outPath, rep, cfg.Fit.SensorID); err != nil {
		return err
	}
	ui.Successf("Saved %s\n", outPath)
	return nil
}
