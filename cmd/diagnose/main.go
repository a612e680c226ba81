package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/telehealth-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/telehealth-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// diagnose runs one analysis against the configured AI provider and prints
// the result, e.g.
//
//	go run ./cmd/diagnose -provider gemini "chest pain" "shortness of breath"
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	cfg := appconfig.Load()
	if opts.provider != "" {
		cfg.AIProvider = opts.provider
	}
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load AWS config: %v", err)
	}
	client, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		log.Fatalf("configure AI provider: %v", err)
	}
	defer closeLLM()

	svc := bootstrap.BuildDiagnosisService(cfg, awsCfg, client, bootstrap.DiagnosisDeps{}, logger)
	start := time.Now()
	res, err := svc.Analyze(ctx, diagnosis.Request{PatientID: opts.patientID, Symptoms: opts.symptoms})
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	if err := render(os.Stdout, res, time.Since(start), opts.asJSON); err != nil {
		log.Fatalf("render: %v", err)
	}
}

type options struct {
	provider  string
	patientID string
	timeout   time.Duration
	asJSON    bool
	symptoms  []diagnosis.Symptom
}

func parseFlags(args []string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet("diagnose", flag.ContinueOnError)
	fs.SetOutput(output)

	var opts options
	fs.StringVar(&opts.provider, "provider", "", "AI provider override: auto, bedrock, gemini or none")
	fs.StringVar(&opts.patientID, "patient", "", "patient id to attach the analysis to")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout")
	fs.BoolVar(&opts.asJSON, "json", false, "print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	for _, arg := range fs.Args() {
		for _, name := range strings.Split(arg, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.symptoms = append(opts.symptoms, diagnosis.Symptom{Name: name})
			}
		}
	}
	if len(opts.symptoms) == 0 {
		fmt.Fprintln(output, "usage: diagnose [flags] symptom [symptom...]")
		fs.PrintDefaults()
		return options{}, errors.New("at least one symptom is required")
	}
	return opts, nil
}

func render(w io.Writer, res diagnosis.Result, elapsed time.Duration, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	d := res.Diagnosis
	fmt.Fprintf(w, "Provider:   %s (%v)\n", res.Provider, elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Condition:  %s\n", d.Condition)
	fmt.Fprintf(w, "Confidence: %d%%\n", d.Confidence)
	fmt.Fprintf(w, "Severity:   %s\n", d.Severity)
	if d.SeekImmediateCare {
		fmt.Fprintln(w, "SEEK IMMEDIATE CARE")
	}
	if d.Explanation != "" {
		fmt.Fprintf(w, "\n%s\n", d.Explanation)
	}
	if len(d.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, r := range d.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	if res.Disclaimer != "" {
		fmt.Fprintf(w, "\n%s\n", res.Disclaimer)
	}
	return nil
}
