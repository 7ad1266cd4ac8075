package checkpoint

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/transit-access/internal/acs"
)

// SaveDemographics upserts fetched block-group demographics so the join
// phase can run without refetching from the data service.
func (s *Store) SaveDemographics(ctx context.Context, rows []acs.Demographics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "checkpoint: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO demographics (geoid, total_pop, subgroup_pop, fetched_at)
			VALUES (?, ?, ?, datetime('now'))
			ON CONFLICT (geoid) DO UPDATE SET
				total_pop = excluded.total_pop,
				subgroup_pop = excluded.subgroup_pop,
				fetched_at = datetime('now')`,
			row.GEOID, row.TotalPop, row.SubgroupPop,
		); err != nil {
			return eris.Wrapf(err, "checkpoint: upsert demographics %s", row.GEOID)
		}
	}

	return eris.Wrap(tx.Commit(), "checkpoint: commit demographics")
}

// LoadDemographics returns all persisted demographics. The subgroup
// percentage is recomputed on load, so zero-population units come back
// with an undefined (NaN) percentage rather than a stored artifact.
func (s *Store) LoadDemographics(ctx context.Context) ([]acs.Demographics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT geoid, total_pop, subgroup_pop FROM demographics ORDER BY geoid`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: load demographics")
	}
	defer rows.Close() //nolint:errcheck

	var out []acs.Demographics
	for rows.Next() {
		var d acs.Demographics
		if err := rows.Scan(&d.GEOID, &d.TotalPop, &d.SubgroupPop); err != nil {
			return nil, eris.Wrap(err, "checkpoint: scan demographics")
		}
		d.PctSubgroup = acs.Percentage(d.SubgroupPop, d.TotalPop)
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "checkpoint: iterate demographics")
}
