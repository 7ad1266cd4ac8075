package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/transit-access/internal/acs"
	"github.com/sells-group/transit-access/internal/checkpoint"
	"github.com/sells-group/transit-access/internal/config"
	"github.com/sells-group/transit-access/internal/points"
	"github.com/sells-group/transit-access/internal/prune"
	"github.com/sells-group/transit-access/internal/region"
	"github.com/sells-group/transit-access/internal/render"
	"github.com/sells-group/transit-access/internal/resilience"
	"github.com/sells-group/transit-access/internal/transit"
	"github.com/sells-group/transit-access/pkg/routing"
)

// regionKey identifies a study region for checkpoint runs.
func regionKey(cfg *config.Config) string {
	return cfg.Census.State + ":" + strings.Join(cfg.Census.Counties, ",")
}

func openStore(ctx context.Context, cfg *config.Config) (*checkpoint.Store, error) {
	st, err := checkpoint.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// fetchDemographics retrieves ACS block-group demographics and persists
// them to the checkpoint store.
func fetchDemographics(ctx context.Context, cfg *config.Config, st *checkpoint.Store) error {
	client := acs.NewClient(acs.WithRateLimit(cfg.Census.RateLimit))
	rows, err := client.BlockGroups(ctx, acs.Request{
		Year:        cfg.Census.Year,
		State:       cfg.Census.State,
		Counties:    cfg.Census.Counties,
		TotalVar:    cfg.Census.TotalVar,
		SubgroupVar: cfg.Census.SubgroupVar,
		APIKey:      cfg.Census.APIKey,
	})
	if err != nil {
		return err
	}
	return st.SaveDemographics(ctx, rows)
}

// resolveTravelTimes prunes candidates, queries the routing service
// sequentially with per-centroid checkpointing, and writes the
// intermediate CSV. A prior interrupted run with the same departure is
// resumed instead of re-queried.
func resolveTravelTimes(ctx context.Context, cfg *config.Config, st *checkpoint.Store) error {
	centroids, err := points.LoadCentroids(cfg.Points.CentroidPath, cfg.Census.Counties)
	if err != nil {
		return err
	}
	clinics, err := points.LoadClinics(cfg.Points.ClinicPath, cfg.Points.ClinicSheet, cfg.Points.ClinicColumn)
	if err != nil {
		return err
	}

	candidates, err := prune.Prune(centroids, clinics, cfg.Prune.K)
	if err != nil {
		return err
	}

	departure, err := transit.ParseDeparture(cfg.Routing.DepartureDate, cfg.Routing.DepartureTime)
	if err != nil {
		return err
	}

	key := regionKey(cfg)
	runID, skip, err := findOrCreateRun(ctx, st, key, departure)
	if err != nil {
		return err
	}

	client := routing.NewClient(cfg.Routing.APIKey,
		routing.WithBaseURL(cfg.Routing.BaseURL),
		routing.WithRateLimit(cfg.Routing.RateLimit),
	)
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Routing.MaxRetries
	retry.OnRetry = resilience.RetryLogger("routing", "transit_duration")

	resolver := transit.NewResolver(client, departure, retry)
	_, err = resolver.ResolveAll(ctx, centroids, candidates, skip, func(r transit.Result) error {
		return st.SaveCandidateTimes(ctx, runID, r.GEOID, r.Coord, candidateMinutes(r))
	})
	if err != nil {
		return err
	}

	rows, err := minimumTravelTimes(ctx, st, runID, centroids)
	if err != nil {
		return err
	}
	if err := checkpoint.WriteTravelTimes(cfg.Store.CSVPath, rows); err != nil {
		return err
	}

	if err := st.MarkRunComplete(ctx, runID); err != nil {
		return err
	}

	zap.L().Info("resolved travel times",
		zap.String("run_id", runID),
		zap.Int("centroids", len(rows)),
	)
	return nil
}

// findOrCreateRun resumes the latest run for the region when it is still
// running with the same departure instant; otherwise it starts a new run.
func findOrCreateRun(ctx context.Context, st *checkpoint.Store, key string, departure time.Time) (string, map[string]bool, error) {
	run, err := st.LatestRun(ctx, key)
	if err != nil {
		return "", nil, err
	}
	if run != nil && run.Status == "running" && run.Departure.Equal(departure) {
		skip, err := st.ResolvedGEOIDs(ctx, run.ID)
		if err != nil {
			return "", nil, err
		}
		zap.L().Info("resuming interrupted run",
			zap.String("run_id", run.ID),
			zap.Int("already_resolved", len(skip)),
		)
		return run.ID, skip, nil
	}

	id, err := st.CreateRun(ctx, key, departure)
	if err != nil {
		return "", nil, err
	}
	return id, map[string]bool{}, nil
}

// candidateMinutes converts a resolver result to the storage layout:
// minute values with nil for failed candidates.
func candidateMinutes(r transit.Result) []*float64 {
	out := make([]*float64, len(r.Candidates))
	for i, c := range r.Candidates {
		if c.Failed() {
			continue
		}
		v := c.Minutes
		out[i] = &v
	}
	return out
}

// minimumTravelTimes reduces stored per-candidate minutes to one minimum
// per centroid, in centroid input order. A centroid with no successful
// candidate gets a nil minimum.
func minimumTravelTimes(ctx context.Context, st *checkpoint.Store, runID string, centroids []points.Centroid) ([]checkpoint.TravelTime, error) {
	stored, err := st.LoadCandidateTimes(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows := make([]checkpoint.TravelTime, 0, len(centroids))
	for _, c := range centroids {
		entry, ok := stored[c.GEOID]
		if !ok {
			return nil, eris.Errorf("no stored travel times for centroid %s", c.GEOID)
		}
		rows = append(rows, checkpoint.TravelTime{
			GEOID:   c.GEOID,
			Coord:   entry.Coord,
			Minutes: minimumOf(entry.Minutes),
		})
	}
	return rows, nil
}

func minimumOf(minutes []*float64) *float64 {
	var min *float64
	for _, m := range minutes {
		if m == nil {
			continue
		}
		if min == nil || *m < *min {
			v := *m
			min = &v
		}
	}
	return min
}

// renderMap draws the choropleth for the joined units and writes the PNG,
// loading clinic markers and highway overlays when configured.
func renderMap(cfg *config.Config, units []region.Unit) error {
	var clinics []points.Clinic
	var err error
	if cfg.Render.DrawClinics {
		clinics, err = points.LoadClinics(cfg.Points.ClinicPath, cfg.Points.ClinicSheet, cfg.Points.ClinicColumn)
		if err != nil {
			return err
		}
	}

	var highways []*geom.MultiLineString
	if cfg.Render.DrawHighways && cfg.Render.HighwayPath != "" {
		highways, err = region.LoadPolylines(cfg.Render.HighwayPath)
		if err != nil {
			return err
		}
	}

	m, err := render.New(units, render.Options{
		Width:        cfg.Render.Width,
		Height:       cfg.Render.Height,
		Title:        "Transit Time to Nearest PrEP Clinic",
		DrawClinics:  cfg.Render.DrawClinics,
		DrawHighways: cfg.Render.DrawHighways,
	})
	if err != nil {
		return err
	}

	img := m.Render(units, clinics, highways)
	if err := render.WritePNG(cfg.Render.OutputPath, img); err != nil {
		return err
	}

	zap.L().Info("map rendered",
		zap.String("path", cfg.Render.OutputPath),
		zap.Int("units", len(units)),
		zap.Int("clinics", len(clinics)),
	)
	return nil
}

// joinedUnits rebuilds the joined region table from the persisted
// checkpoints: polygons from the shapefile, demographics from the store,
// travel times from the intermediate CSV.
func joinedUnits(ctx context.Context, cfg *config.Config, st *checkpoint.Store) ([]region.Unit, error) {
	polys, err := region.LoadPolygons(cfg.Region.ShapefilePath, "GEOID")
	if err != nil {
		return nil, err
	}
	demo, err := st.LoadDemographics(ctx)
	if err != nil {
		return nil, err
	}
	times, err := checkpoint.ReadTravelTimes(cfg.Store.CSVPath)
	if err != nil {
		return nil, err
	}
	return region.Join(polys, demo, times), nil
}
