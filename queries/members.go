package queries

import (
	"context"
	"time"

	"github.com/lib/pq"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

const selectNetworkMembers = `SELECT m.id, m.parent_id, m.name, m.avatar, m.referral_code, m.status, m.level, m.path, m.joined_at,
	COALESCE(r.direct_refs, 0) AS direct_refs,
	COALESCE(r.network_size, 0) AS network_size,
	COALESCE(r.active_members, 0) AS active_members,
	COALESCE(r.earnings, 0) AS earnings
FROM members m
LEFT JOIN member_rollups r ON r.member_id = m.id `

const orderChildren = ` ORDER BY m.joined_at DESC, m.id ASC`

type memberRow struct {
	ID            uint64        `gorm:"column:id"`
	ParentID      *uint64       `gorm:"column:parent_id"`
	Name          string        `gorm:"column:name"`
	Avatar        string        `gorm:"column:avatar"`
	ReferralCode  string        `gorm:"column:referral_code"`
	Status        string        `gorm:"column:status"`
	Level         int           `gorm:"column:level"`
	Path          pq.Int64Array `gorm:"column:path;type:bigint[]"`
	JoinedAt      time.Time     `gorm:"column:joined_at"`
	DirectRefs    int64         `gorm:"column:direct_refs"`
	NetworkSize   int64         `gorm:"column:network_size"`
	ActiveMembers int64         `gorm:"column:active_members"`
	Earnings      int64         `gorm:"column:earnings"`
}

func (row *memberRow) toModel() *model.NetworkMember {
	member := &model.NetworkMember{
		Member: model.Member{
			ID:            row.ID,
			Name:          row.Name,
			Avatar:        row.Avatar,
			ReferralCode:  row.ReferralCode,
			Status:        model.MemberStatus(row.Status),
			AbsoluteLevel: row.Level,
			JoinedAt:      row.JoinedAt,
			Path:          make([]uint64, len(row.Path)),
		},
		RollupSnapshot: model.RollupSnapshot{
			DirectRefs:    row.DirectRefs,
			NetworkSize:   row.NetworkSize,
			ActiveMembers: row.ActiveMembers,
			Earnings:      row.Earnings,
		},
	}
	if row.ParentID != nil {
		member.ParentID = *row.ParentID
	}
	for i, id := range row.Path {
		member.Path[i] = uint64(id)
	}
	return member
}

func toModels(rows []memberRow) []*model.NetworkMember {
	members := make([]*model.NetworkMember, 0, len(rows))
	for i := range rows {
		members = append(members, rows[i].toModel())
	}
	return members
}

func int64Array(ids []uint64) pq.Int64Array {
	arr := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		arr[i] = int64(id)
	}
	return arr
}

// Insert adds the member under the parent and increments the rollups of the whole ancestor chain in
// the same transaction. The rollup rows are locked from the deepest ancestor up to the root so
// concurrent inserts in the same branch queue up instead of deadlocking.
func (repo *Repo) Insert(ctx context.Context, member *model.Member, parentID uint64) (*model.NetworkMember, error) {
	if member.ID != 0 && member.ID == parentID {
		return nil, model.ErrInvalidParent
	}

	tx := repo.Conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, classify(tx.Error)
	}

	level := 0
	var path []uint64
	var parentRef *uint64
	if parentID != 0 {
		parent := memberRow{}
		db := tx.Raw("SELECT id, level, path FROM members WHERE id = ? FOR KEY SHARE", parentID).Scan(&parent)
		if db.Error != nil {
			tx.Rollback()
			return nil, classify(db.Error)
		}
		if db.RowsAffected == 0 {
			tx.Rollback()
			return nil, model.ErrInvalidParent
		}
		path = append(parent.toModel().Path, parentID)
		level = parent.Level + 1
		parentRef = &parentID

		locked := []uint64{}
		if err := tx.Raw(
			"SELECT member_id FROM member_rollups WHERE member_id = ANY(?) ORDER BY level DESC, member_id FOR UPDATE",
			int64Array(path),
		).Scan(&locked).Error; err != nil {
			tx.Rollback()
			return nil, classify(err)
		}
	}

	joinedAt := member.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}
	var referralCode interface{}
	if member.ReferralCode != "" {
		referralCode = member.ReferralCode
	}

	var id uint64
	if err := tx.Raw(`INSERT INTO members (id, parent_id, name, avatar, referral_code, status, level, path, joined_at)
		VALUES (COALESCE(NULLIF(?, 0), nextval('members_id_seq')), ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		member.ID, parentRef, member.Name, member.Avatar, referralCode, member.Status.String(), level, int64Array(path), joinedAt,
	).Scan(&id).Error; err != nil {
		tx.Rollback()
		return nil, classify(err)
	}

	if err := tx.Exec("INSERT INTO member_rollups (member_id, level) VALUES (?, ?)", id, level).Error; err != nil {
		tx.Rollback()
		return nil, classify(err)
	}

	if parentID != 0 {
		active := 0
		if member.IsActive() {
			active = 1
		}
		db := tx.Exec(`UPDATE member_rollups SET
			network_size = network_size + 1,
			active_members = active_members + ?,
			direct_refs = direct_refs + (CASE WHEN member_id = ? THEN 1 ELSE 0 END),
			updated_at = NOW()
			WHERE member_id = ANY(?)`, active, parentID, int64Array(path))
		if db.Error != nil {
			tx.Rollback()
			return nil, classify(db.Error)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, classify(err)
	}

	created := &model.NetworkMember{Member: *member}
	created.ID = id
	created.ParentID = parentID
	created.AbsoluteLevel = level
	created.Path = path
	created.JoinedAt = joinedAt
	return created, nil
}

// SetStatus updates the member status and moves the activeMembers rollup of its ancestors
func (repo *Repo) SetStatus(ctx context.Context, id uint64, status model.MemberStatus) (*model.NetworkMember, bool, error) {
	tx := repo.Conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, false, classify(tx.Error)
	}

	row := memberRow{}
	db := tx.Raw("SELECT id, status, level, path FROM members WHERE id = ? FOR UPDATE", id).Scan(&row)
	if db.Error != nil {
		tx.Rollback()
		return nil, false, classify(db.Error)
	}
	if db.RowsAffected == 0 {
		tx.Rollback()
		return nil, false, model.ErrNotFound
	}
	if model.MemberStatus(row.Status) == status {
		tx.Rollback()
		member, err := repo.GetMember(ctx, id)
		return member, false, err
	}

	if err := tx.Exec("UPDATE members SET status = ? WHERE id = ?", status.String(), id).Error; err != nil {
		tx.Rollback()
		return nil, false, classify(err)
	}

	if len(row.Path) > 0 {
		delta := 1
		if status != model.MemberStatusActive {
			delta = -1
		}
		locked := []uint64{}
		if err := tx.Raw(
			"SELECT member_id FROM member_rollups WHERE member_id = ANY(?) ORDER BY level DESC, member_id FOR UPDATE",
			row.Path,
		).Scan(&locked).Error; err != nil {
			tx.Rollback()
			return nil, false, classify(err)
		}
		if err := tx.Exec(
			"UPDATE member_rollups SET active_members = active_members + ?, updated_at = NOW() WHERE member_id = ANY(?)",
			delta, row.Path,
		).Error; err != nil {
			tx.Rollback()
			return nil, false, classify(err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, false, classify(err)
	}
	member, err := repo.GetMember(ctx, id)
	return member, true, err
}

// GetMember godoc
func (repo *Repo) GetMember(ctx context.Context, id uint64) (*model.NetworkMember, error) {
	return repo.findOne(ctx, selectNetworkMembers+"WHERE m.id = ?", id)
}

// FindByReferralCode godoc
func (repo *Repo) FindByReferralCode(ctx context.Context, code string) (*model.NetworkMember, error) {
	return repo.findOne(ctx, selectNetworkMembers+"WHERE m.referral_code = ?", code)
}

func (repo *Repo) findOne(ctx context.Context, query string, args ...interface{}) (*model.NetworkMember, error) {
	rows := []memberRow{}
	if err := repo.ConnReader.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, classify(err)
	}
	if len(rows) == 0 {
		return nil, model.ErrNotFound
	}
	return rows[0].toModel(), nil
}

// GetParent returns the parent id of the member, 0 for roots
func (repo *Repo) GetParent(ctx context.Context, id uint64) (uint64, error) {
	row := memberRow{}
	db := repo.ConnReader.WithContext(ctx).Raw("SELECT id, parent_id FROM members WHERE id = ?", id).Scan(&row)
	if db.Error != nil {
		return 0, classify(db.Error)
	}
	if db.RowsAffected == 0 {
		return 0, model.ErrNotFound
	}
	if row.ParentID == nil {
		return 0, nil
	}
	return *row.ParentID, nil
}

// GetChildren returns a page of the direct children ordered by join date desc, id asc
func (repo *Repo) GetChildren(ctx context.Context, id uint64, page, limit int) ([]*model.NetworkMember, int64, error) {
	if _, err := repo.level(ctx, id); err != nil {
		return nil, 0, err
	}
	db := repo.ConnReader.WithContext(ctx)

	var total int64
	if err := db.Raw("SELECT count(*) FROM members WHERE parent_id = ?", id).Scan(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	rows := []memberRow{}
	if err := db.Raw(selectNetworkMembers+"WHERE m.parent_id = ?"+orderChildren+" LIMIT ? OFFSET ?",
		id, limit, (page-1)*limit,
	).Scan(&rows).Error; err != nil {
		return nil, 0, classify(err)
	}
	return toModels(rows), total, nil
}

// GetChildrenOf loads the direct children of all the given parents with a single query
func (repo *Repo) GetChildrenOf(ctx context.Context, parentIDs []uint64) (map[uint64][]*model.NetworkMember, error) {
	result := make(map[uint64][]*model.NetworkMember, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}
	rows := []memberRow{}
	if err := repo.ConnReader.WithContext(ctx).Raw(
		selectNetworkMembers+"WHERE m.parent_id = ANY(?) ORDER BY m.parent_id, m.joined_at DESC, m.id ASC",
		int64Array(parentIDs),
	).Scan(&rows).Error; err != nil {
		return nil, classify(err)
	}
	for _, parentID := range parentIDs {
		result[parentID] = []*model.NetworkMember{}
	}
	for _, member := range toModels(rows) {
		result[member.ParentID] = append(result[member.ParentID], member)
	}
	return result, nil
}

// GetAncestorPath returns the chain from the forest root down to the member itself
func (repo *Repo) GetAncestorPath(ctx context.Context, id uint64) ([]*model.NetworkMember, error) {
	member, err := repo.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(member.Path) == 0 {
		return []*model.NetworkMember{member}, nil
	}
	rows := []memberRow{}
	if err := repo.ConnReader.WithContext(ctx).Raw(
		selectNetworkMembers+"WHERE m.id = ANY(?) ORDER BY m.level ASC",
		int64Array(member.Path),
	).Scan(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return append(toModels(rows), member), nil
}

type levelCountRow struct {
	Level int   `gorm:"column:level"`
	Total int64 `gorm:"column:total"`
}

// CountByLevel counts the descendants of the root on every relative level from 1 to maxLevel
func (repo *Repo) CountByLevel(ctx context.Context, rootID uint64, maxLevel int) (map[int]int64, error) {
	rootLevel, err := repo.level(ctx, rootID)
	if err != nil {
		return nil, err
	}
	rows := []levelCountRow{}
	if err := repo.ConnReader.WithContext(ctx).Raw(`SELECT level - ? AS level, count(*) AS total FROM members
		WHERE path @> ARRAY[?]::bigint[] AND level BETWEEN ? AND ?
		GROUP BY level`,
		rootLevel, rootID, rootLevel+1, rootLevel+maxLevel,
	).Scan(&rows).Error; err != nil {
		return nil, classify(err)
	}
	counts := make(map[int]int64, len(rows))
	for _, row := range rows {
		counts[row.Level] = row.Total
	}
	return counts, nil
}

// GetMembersByLevel returns a page of the descendants exactly `level` hops below the root
func (repo *Repo) GetMembersByLevel(ctx context.Context, rootID uint64, level, page, limit int) ([]*model.NetworkMember, int64, error) {
	rootLevel, err := repo.level(ctx, rootID)
	if err != nil {
		return nil, 0, err
	}
	db := repo.ConnReader.WithContext(ctx)

	var total int64
	if err := db.Raw("SELECT count(*) FROM members WHERE path @> ARRAY[?]::bigint[] AND level = ?",
		rootID, rootLevel+level,
	).Scan(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	rows := []memberRow{}
	if err := db.Raw(selectNetworkMembers+"WHERE m.path @> ARRAY[?]::bigint[] AND m.level = ?"+orderChildren+" LIMIT ? OFFSET ?",
		rootID, rootLevel+level, limit, (page-1)*limit,
	).Scan(&rows).Error; err != nil {
		return nil, 0, classify(err)
	}
	return toModels(rows), total, nil
}

func (repo *Repo) level(ctx context.Context, id uint64) (int, error) {
	row := memberRow{}
	db := repo.ConnReader.WithContext(ctx).Raw("SELECT id, level FROM members WHERE id = ?", id).Scan(&row)
	if db.Error != nil {
		return 0, classify(db.Error)
	}
	if db.RowsAffected == 0 {
		return 0, model.ErrNotFound
	}
	return row.Level, nil
}
