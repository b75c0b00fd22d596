package flatfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flightcore/internal/blob"
	"flightcore/internal/core"
	"flightcore/pkg/domain"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const contentType = "text/plain; charset=utf-8"

// SkippedRow is a row, or a whole file when Line is zero, that Load could
// not use.
type SkippedRow struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// LoadReport lists what Load read and what it skipped.
type LoadReport struct {
	Rows   []SkippedRow      `json:"rows"`
	Import core.ImportReport `json:"import"`
}

// Skipped counts every item dropped while decoding or importing.
func (r LoadReport) Skipped() int { return len(r.Rows) + len(r.Import.Skipped) }

// SaveReport counts the rows written per file.
type SaveReport struct {
	Aircraft int `json:"aircraft"`
	Flights  int `json:"flights"`
}

// Repository moves the fleet between a Service and the data files held in a
// blob store.
type Repository struct {
	store  blob.Store
	logger core.Logger
}

// Option customises a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for skipped rows.
func WithLogger(logger core.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRepository returns a repository over store.
func NewRepository(store blob.Store, opts ...Option) *Repository {
	r := &Repository{store: store, logger: core.NewNoopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads both data files and imports them into svc. Missing or
// unreadable files and malformed rows are skipped and reported; only a
// failed import returns an error.
func (r *Repository) Load(ctx context.Context, svc *core.Service) (LoadReport, error) {
	var report LoadReport
	skip := func(file string, line int, err error) {
		report.Rows = append(report.Rows, SkippedRow{File: file, Line: line, Reason: err.Error()})
		if !errors.Is(err, blob.ErrNotFound) {
			r.logger.Warn("flat file row skipped", "file", file, "line", line, "error", err)
		}
	}

	var aircraft []domain.Aircraft
	r.readLines(ctx, AircraftKey, skip, func(line string) error {
		a, err := DecodeAircraft(line)
		if err == nil {
			aircraft = append(aircraft, a)
		}
		return err
	})
	var flights []domain.Flight
	r.readLines(ctx, FlightKey, skip, func(line string) error {
		f, err := DecodeFlight(line)
		if err == nil {
			flights = append(flights, f)
		}
		return err
	})

	imported, _, err := svc.ImportFleet(ctx, aircraft, flights)
	if err != nil {
		return report, fmt.Errorf("import fleet: %w", err)
	}
	report.Import = imported
	r.logger.Info("flat files loaded", "aircraft", imported.Aircraft, "flights", imported.Flights, "skipped", report.Skipped())
	return report, nil
}

func (r *Repository) readLines(ctx context.Context, key string, skip func(string, int, error), decode func(string) error) {
	_, rc, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			r.logger.Info("flat file missing", "file", key)
		}
		skip(key, 0, err)
		return
	}
	defer rc.Close()
	scanner := bufio.NewScanner(rc)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := decode(text); err != nil {
			skip(key, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		skip(key, 0, fmt.Errorf("read %s: %w", key, err))
	}
}

// Save writes every aircraft and flight of svc, replacing existing files.
func (r *Repository) Save(ctx context.Context, svc *core.Service) (SaveReport, error) {
	aircraft, err := svc.ListAircraft(ctx)
	if err != nil {
		return SaveReport{}, err
	}
	flights, err := svc.ListFlights(ctx)
	if err != nil {
		return SaveReport{}, err
	}

	var abuf bytes.Buffer
	for _, a := range aircraft {
		row, err := EncodeAircraft(a)
		if err != nil {
			return SaveReport{}, fmt.Errorf("encode aircraft %s: %w", a.Registration, err)
		}
		abuf.WriteString(row + "\n")
	}
	var fbuf bytes.Buffer
	for _, f := range flights {
		row, err := EncodeFlight(f)
		if err != nil {
			return SaveReport{}, fmt.Errorf("encode flight %s: %w", f.Number, err)
		}
		fbuf.WriteString(row + "\n")
	}

	if err := r.put(ctx, AircraftKey, &abuf, len(aircraft)); err != nil {
		return SaveReport{}, err
	}
	if err := r.put(ctx, FlightKey, &fbuf, len(flights)); err != nil {
		return SaveReport{}, err
	}
	r.logger.Info("flat files saved", "aircraft", len(aircraft), "flights", len(flights))
	return SaveReport{Aircraft: len(aircraft), Flights: len(flights)}, nil
}

func (r *Repository) put(ctx context.Context, key string, body io.Reader, rows int) error {
	_, err := r.store.Put(ctx, key, body, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"rows": strconv.Itoa(rows)},
		Overwrite:   true,
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
