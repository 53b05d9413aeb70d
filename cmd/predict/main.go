package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"safedrive/config"
	"safedrive/frontend"
	"safedrive/logging"
	"safedrive/ml"
)

func main() {
	configName := flag.String("config", "config.yaml", "config file, looked up in . and ..")
	modelPath := flag.String("model_path", "", "bundle path, overrides model.path")
	age := flag.Int("age", ml.DefaultVehicleAge, "vehicle age (18-100)")
	vehicleType := flag.String("type", "combi", "vehicle type: combi, family, sport or minivan")
	model := flag.String("model", string(ml.ChoiceNN), "model: Nn, Knn or Dt")
	lang := flag.String("lang", "", "output language, defaults to frontend.language")
	asJSON := flag.Bool("json", false, "print the result as JSON")
	info := flag.Bool("info", false, "print the bundle description and exit")
	logLevel := flag.String("log_level", "warn", "log level")
	flag.Parse()

	cfg, _, err := config.Resolve(*configName)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if *lang == "" {
		*lang = cfg.Frontend.Language
	}
	loc := frontend.NewLocalizer(frontend.MatchLanguage("", *lang))

	logger, err := logging.New(logging.Options{Level: *logLevel})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	bundle, loadErr := ml.LoadBundle(cfg.Model.Path)
	if loadErr != nil {
		fmt.Fprintln(os.Stderr, loc.Describe(loadErr, cfg.Model.Path))
		os.Exit(1)
	}
	if *info {
		printJSON(bundle.Info())
		return
	}
	choice, err := ml.ParseModelChoice(*model)
	if err != nil {
		fmt.Fprintln(os.Stderr, loc.Describe(err, cfg.Model.Path))
		os.Exit(2)
	}

	fe, err := frontend.New(bundle, nil, frontend.Options{ArtifactPath: cfg.Model.Path, Logger: logger})
	if err != nil {
		log.Fatalf("failed to build frontend: %v", err)
	}

	outcome := fe.Submit(context.Background(), ml.UserInput{
		VehicleAge:  *age,
		VehicleType: *vehicleType,
		ModelChoice: choice,
	})
	if outcome.Err != nil {
		fmt.Fprintln(os.Stderr, loc.Describe(outcome.Err, cfg.Model.Path))
		os.Exit(1)
	}

	if *asJSON {
		printJSON(map[string]interface{}{
			"label":      outcome.Result.Label(),
			"display":    loc.RiskLabel(outcome.Result.Risk),
			"risk":       outcome.Result.Risk,
			"prediction": outcome.Result.Prediction,
			"model":      outcome.Result.Model,
		})
		return
	}
	fmt.Println(loc.RiskLabel(outcome.Result.Risk))
	fmt.Println(loc.T(frontend.MsgModelUsed, string(outcome.Result.Model)))
}

func printJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
}
