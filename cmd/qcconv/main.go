// qcconv prepares and harvests k-point convergence sweeps.
//
// Input mode expands a seed structure folder into one job folder per grid
// size, substituting the {kpts} token in the input files:
//
//	qcconv -mode input -params conv.yaml -out ./sweep ./structures/NaCl
//
// Results mode extracts the converged energies out of a finished sweep and
// writes them as CSV:
//
//	qcconv -mode results -engine dftb+ -o conv.csv ./sweep
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"qcbatch/internal/apperrors"
	"qcbatch/internal/config"
	"qcbatch/internal/convdata"
	"qcbatch/internal/params"
	"qcbatch/internal/runner"
)

func main() {
	cfg := config.LoadToolConfig()
	if cfg.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	if err := run(); err != nil {
		slog.Error("Conversion failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func run() error {
	var (
		mode       = flag.String("mode", "", "input (generate sweep folders) or results (extract CSV)")
		paramsPath = flag.String("params", "conv.yaml", "sweep parameter file (input mode)")
		outRoot    = flag.String("out", ".", "folder to create sweep folders under (input mode)")
		engineName = flag.String("engine", runner.DFTB.Name, "engine whose output to parse (results mode)")
		output     = flag.String("o", "", "CSV output file, default stdout (results mode)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -mode input|results [flags] <folder>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return apperrors.Validation("folder", "exactly one folder is required")
	}
	folder := flag.Arg(0)

	switch *mode {
	case "input":
		return generateInputs(*paramsPath, folder, *outRoot)
	case "results":
		return extractResults(folder, *engineName, *output)
	default:
		return apperrors.Validation("mode", "mode must be input or results")
	}
}

func generateInputs(paramsPath, seedDir, outRoot string) error {
	p, err := params.Load(paramsPath)
	if err != nil {
		return err
	}

	folders, err := params.Variations(p, seedDir, outRoot)
	if err != nil {
		return err
	}

	slog.Info("Generated sweep folders", "seed", seedDir, "folders", len(folders), "grids", p.Grids())
	for _, folder := range folders {
		fmt.Println(folder)
	}
	return nil
}

func extractResults(root, engineName, output string) error {
	var extract convdata.Extractor
	switch engineName {
	case runner.DFTB.Name:
		extract = convdata.DFTB
	case runner.CASTEP.Name:
		extract = convdata.CASTEP
	default:
		return apperrors.Validation("engine", "unknown engine: "+engineName)
	}

	records, err := convdata.Collect(root, extract)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return apperrors.NotFound("usable results", root)
	}

	var w io.Writer = os.Stdout
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return apperrors.Internal("qcconv.createOutput", err)
		}
		defer file.Close()
		w = file
	}

	if err := convdata.WriteCSV(w, records); err != nil {
		return err
	}
	slog.Info("Extracted convergence data", "root", root, "records", len(records))
	return nil
}
