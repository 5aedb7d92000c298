// Package convdata extracts convergence results from engine output files.
//
// A k-point convergence sweep leaves one folder per sampling density; this
// package pulls the final energy, the largest residual force, and the
// geometry step count out of each folder so they can be tabulated against
// the k-point grid.
package convdata

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"qcbatch/internal/apperrors"
	"qcbatch/internal/scan"
)

// Record holds the convergence results extracted from one job folder.
type Record struct {
	Folder    string
	Energy    float64 // Hartree for DFTB+, eV for CASTEP
	MaxForce  float64 // largest residual force component, 0 if not reported
	GeomSteps int     // geometry optimization steps, 0 if not reported
}

// Extractor parses one job folder's output into a Record.
type Extractor func(dir string) (Record, error)

var (
	dftbEnergyRe = regexp.MustCompile(`Total Energy:\s+(-?\d+\.\d+)\s*H`)
	dftbForceRe  = regexp.MustCompile(`Maximal force component:\s*(-?[0-9.]+(?:E[+-]?\d+)?)`)
	castepRe     = regexp.MustCompile(`Final energy, E\s+=\s+(-?\d+\.\d+(?:E[+-]?\d+)?)\s+eV`)
)

// DFTB extracts the final total energy and maximal force from dftb+.log,
// and the geometry step count from detailed.out when present.
func DFTB(dir string) (Record, error) {
	record := Record{Folder: filepath.Base(dir)}

	logPath := filepath.Join(dir, "dftb+.log")
	file, err := os.Open(logPath)
	if err != nil {
		return record, apperrors.NotFound("engine log", logPath)
	}
	defer file.Close()

	foundEnergy := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// The log repeats these for every SCC cycle; the last match is the
		// converged value.
		if m := dftbEnergyRe.FindStringSubmatch(line); m != nil {
			record.Energy, _ = strconv.ParseFloat(m[1], 64)
			foundEnergy = true
		}
		if m := dftbForceRe.FindStringSubmatch(line); m != nil {
			record.MaxForce, _ = strconv.ParseFloat(m[1], 64)
		}
	}
	if err := scanner.Err(); err != nil {
		return record, fmt.Errorf("failed to read %s: %w", logPath, err)
	}
	if !foundEnergy {
		return record, fmt.Errorf("no total energy in %s", logPath)
	}

	record.GeomSteps = readGeomSteps(filepath.Join(dir, "detailed.out"))
	return record, nil
}

// CASTEP extracts the final energy from the *.castep output file.
func CASTEP(dir string) (Record, error) {
	record := Record{Folder: filepath.Base(dir)}

	matches, err := filepath.Glob(filepath.Join(dir, "*.castep"))
	if err != nil || len(matches) == 0 {
		return record, apperrors.NotFound("castep output", dir)
	}

	file, err := os.Open(matches[0])
	if err != nil {
		return record, apperrors.NotFound("castep output", matches[0])
	}
	defer file.Close()

	found := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if m := castepRe.FindStringSubmatch(scanner.Text()); m != nil {
			record.Energy, _ = strconv.ParseFloat(m[1], 64)
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return record, fmt.Errorf("failed to read %s: %w", matches[0], err)
	}
	if !found {
		return record, fmt.Errorf("no final energy in %s", matches[0])
	}
	return record, nil
}

// readGeomSteps reads the step count from the third line of detailed.out,
// which looks like "Geometry optimization step: 12". Missing or malformed
// files report zero steps.
func readGeomSteps(path string) int {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		if line < 3 {
			continue
		}
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) < 2 {
			return 0
		}
		steps, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0
		}
		return steps
	}
	return 0
}

// Collect runs the extractor over every subfolder of root in sorted order.
// Folders the extractor cannot parse are logged and skipped, so one broken
// run does not hide the rest of the sweep.
func Collect(root string, extract Extractor) ([]Record, error) {
	folders, err := scan.Folders(root)
	if err != nil {
		return nil, err
	}

	logger := slog.With("component", "convdata", "root", root)
	records := make([]Record, 0, len(folders))
	for _, dir := range folders {
		record, err := extract(dir)
		if err != nil {
			logger.Warn("Skipping folder without usable results", "folder", filepath.Base(dir), "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"folder", "energy", "max_force", "geom_steps"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Folder,
			strconv.FormatFloat(r.Energy, 'g', -1, 64),
			strconv.FormatFloat(r.MaxForce, 'g', -1, 64),
			strconv.Itoa(r.GeomSteps),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
