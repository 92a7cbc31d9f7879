package queries

import (
	"context"

	"github.com/lib/pq"
)

type commissionRow struct {
	MemberID uint64 `gorm:"column:member_id"`
	Total    int64  `gorm:"column:total"`
}

// CommissionTotals returns the own commission total of every member that received any
func (repo *Repo) CommissionTotals(ctx context.Context) (map[uint64]int64, error) {
	rows := []commissionRow{}
	if err := repo.ConnReader.WithContext(ctx).Raw(
		"SELECT member_id, COALESCE(SUM(amount), 0) AS total FROM commission_entries GROUP BY member_id",
	).Scan(&rows).Error; err != nil {
		return nil, classify(err)
	}
	totals := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		totals[row.MemberID] = row.Total
	}
	return totals, nil
}

// ApplyEarnings rewrites the earnings rollup of every member as the sum of the own amounts over its
// subtree. Each credited member adds its amount to itself and every id on its path.
func (repo *Repo) ApplyEarnings(ctx context.Context, own map[uint64]int64) (int, error) {
	ids := make(pq.Int64Array, 0, len(own))
	amounts := make(pq.Int64Array, 0, len(own))
	for id, amount := range own {
		ids = append(ids, int64(id))
		amounts = append(amounts, amount)
	}

	db := repo.Conn.WithContext(ctx).Exec(`WITH own(member_id, amount) AS (
			SELECT * FROM unnest(?::bigint[], ?::bigint[])
		), totals AS (
			SELECT x.id AS member_id, SUM(o.amount) AS total
			FROM own o
			JOIN members m ON m.id = o.member_id
			CROSS JOIN LATERAL unnest(m.path || m.id) AS x(id)
			GROUP BY x.id
		)
		UPDATE member_rollups r SET earnings = COALESCE(t.total, 0), updated_at = NOW()
		FROM member_rollups r2
		LEFT JOIN totals t ON t.member_id = r2.member_id
		WHERE r.member_id = r2.member_id AND r.earnings <> COALESCE(t.total, 0)`,
		ids, amounts,
	)
	if db.Error != nil {
		return 0, classify(db.Error)
	}
	return int(db.RowsAffected), nil
}
