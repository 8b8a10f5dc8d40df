package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/download"
	"github.com/oshokin/trackvault/internal/storage/sqlite"
)

// Output formats of the status command.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// ErrUnknownOutputFormat indicates an unsupported status output format.
var ErrUnknownOutputFormat = errors.New("unknown output format")

// statusReport is the serialized form of the unified view.
type statusReport struct {
	Downloads []download.State `json:"downloads" yaml:"downloads"`
	Counts    download.Counts  `json:"counts"    yaml:"counts"`
}

// ExecuteStatusCommand prints the download states known to the durable catalogue.
func ExecuteStatusCommand(ctx context.Context, cfg *config.Config, output string) {
	db, err := sqlite.InitDB(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Fatalf(ctx, "Failed to open database: %v", err)
	}

	store := sqlite.NewCatalogStore(db)

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Errorf(ctx, "Failed to close database: %v", closeErr)
		}
	}()

	states := download.NewStateStore(store)
	if err = states.Refresh(ctx); err != nil {
		logger.Fatalf(ctx, "Failed to load download states: %v", err)
	}

	if err = WriteStatus(os.Stdout, output, states.Snapshot()); err != nil {
		logger.Fatalf(ctx, "Failed to print status: %v", err)
	}
}

// WriteStatus writes the view to w in the given format.
func WriteStatus(w io.Writer, output string, view map[string]download.State) error {
	report := &statusReport{
		Downloads: make([]download.State, 0, len(view)),
	}

	for _, state := range view {
		report.Downloads = append(report.Downloads, state)
	}

	sort.Slice(report.Downloads, func(i, j int) bool {
		return report.Downloads[i].TrackID < report.Downloads[j].TrackID
	})

	report.Counts = countActive(view)

	switch output {
	case "", OutputTable:
		return writeStatusTable(w, report)
	case OutputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(report)
	case OutputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2) //nolint:mnd // Two spaces match the configuration file.

		if err := encoder.Encode(report); err != nil {
			return err
		}

		return encoder.Close()
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownOutputFormat, output)
	}
}

func writeStatusTable(w io.Writer, report *statusReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.

	fmt.Fprintln(tw, "TRACK\tSTATUS\tPROGRESS\tSIZE\tUPDATED\tDETAILS")

	for _, state := range report.Downloads {
		size := "-"
		if state.TotalBytes > 0 {
			size = humanize.Bytes(uint64(state.TotalBytes))
		}

		updated := "-"
		if !state.UpdatedAt.IsZero() {
			updated = humanize.Time(state.UpdatedAt)
		}

		details := state.Ref
		if state.Error != "" {
			details = state.Error
		}

		fmt.Fprintf(tw, "%s\t%s\t%.0f%%\t%s\t%s\t%s\n",
			state.TrackID,
			state.Status,
			state.Progress*100, //nolint:mnd // Percent.
			size,
			updated,
			details)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d tracks, %s\n", len(report.Downloads), report.Counts)

	return err
}
