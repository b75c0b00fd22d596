package core

import (
	"context"
	"flightcore/pkg/domain"
)

// SkippedRecord names an input record ImportFleet refused and why.
type SkippedRecord struct {
	Entity domain.EntityType `json:"entity"`
	ID     string            `json:"id"`
	Reason string            `json:"reason"`
}

// ImportReport summarizes an ImportFleet call.
type ImportReport struct {
	Aircraft int             `json:"aircraft"`
	Flights  int             `json:"flights"`
	Skipped  []SkippedRecord `json:"skipped"`
}

// ImportFleet loads aircraft and flights as they were recorded, keeping the
// stored flight statuses and delay reasons. Invalid, duplicate or dangling
// records are skipped and reported instead of failing the import. Aircraft
// statuses are re-derived once every flight is in place.
func (s *Service) ImportFleet(ctx context.Context, aircraft []Aircraft, flights []Flight) (ImportReport, Result, error) {
	var report ImportReport
	res, err := s.execute(ctx, "import_fleet", func(tx Transaction) error {
		report = ImportReport{}
		skip := func(entity domain.EntityType, id string, err error) {
			report.Skipped = append(report.Skipped, SkippedRecord{Entity: entity, ID: id, Reason: err.Error()})
		}
		for _, a := range aircraft {
			a.Status = domain.AircraftAvailable
			if err := domain.ValidateAircraft(a); err != nil {
				skip(domain.EntityAircraft, a.Registration, err)
				continue
			}
			if _, err := tx.CreateAircraft(a); err != nil {
				skip(domain.EntityAircraft, a.Registration, err)
				continue
			}
			report.Aircraft++
		}
		touched := map[string]struct{}{}
		for _, f := range flights {
			f = s.normalizeFlight(f)
			if err := domain.ValidateFlight(f); err != nil {
				skip(domain.EntityFlight, f.Number, err)
				continue
			}
			a, ok := tx.FindAircraft(f.AircraftID)
			if !ok {
				skip(domain.EntityFlight, f.Number, domain.NotFoundError{Entity: domain.EntityAircraft, ID: f.AircraftID})
				continue
			}
			if err := checkCapacity(a, f); err != nil {
				skip(domain.EntityFlight, f.Number, err)
				continue
			}
			if _, err := tx.CreateFlight(f); err != nil {
				skip(domain.EntityFlight, f.Number, err)
				continue
			}
			touched[f.AircraftID] = struct{}{}
			report.Flights++
		}
		for registration := range touched {
			if err := syncAircraftStatus(tx, registration); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, res, err
	}
	s.logger.Info("fleet imported", "aircraft", report.Aircraft, "flights", report.Flights, "skipped", len(report.Skipped))
	return report, res, nil
}
