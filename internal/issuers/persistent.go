package issuers

import (
	"context"
	"database/sql"
	"time"

	"github.com/angelmondragon/coupontracker-backend/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type issuerRow struct {
	Email     string         `gorm:"column:email;primaryKey"`
	Name      string         `gorm:"column:name"`
	Phone     sql.NullString `gorm:"column:phone"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (issuerRow) TableName() string { return "issuers" }

func (r issuerRow) toIssuer() Issuer {
	issuer := Issuer{
		Email:     r.Email,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Phone.Valid {
		phone := r.Phone.String
		issuer.Phone = &phone
	}
	return issuer
}

type assignmentRow struct {
	CouponID    int64     `gorm:"column:coupon_id"`
	IssuerEmail string    `gorm:"column:issuer_email"`
	AssignedAt  time.Time `gorm:"column:assigned_at"`
}

func (assignmentRow) TableName() string { return "coupon_issuer_assignments" }

type summaryRow struct {
	Email       string         `gorm:"column:email"`
	Name        string         `gorm:"column:name"`
	Phone       sql.NullString `gorm:"column:phone"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	CouponCount int64          `gorm:"column:coupon_count"`
}

func (r summaryRow) toSummary() IssuerSummary {
	issuer := issuerRow{
		Email:     r.Email,
		Name:      r.Name,
		Phone:     r.Phone,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}.toIssuer()
	return IssuerSummary{Issuer: issuer, CouponCount: r.CouponCount}
}

// persistentBackend stores issuers in postgres or sqlite through GORM.
type persistentBackend struct {
	client *db.Client
	now    clock
}

// NewPersistentBackend wraps an open connection whose schema is already migrated.
func NewPersistentBackend(client *db.Client) Backend {
	return &persistentBackend{client: client, now: utcNow}
}

func (p *persistentBackend) Kind() string { return KindPersistent }

func (p *persistentBackend) conn(ctx context.Context) *gorm.DB {
	return p.client.DB().WithContext(ctx)
}

func (p *persistentBackend) UpsertIssuer(ctx context.Context, in IssuerInput) error {
	return upsertIssuer(p.conn(ctx), in, p.now())
}

// upsertIssuer keeps an existing non-empty name and only replaces phone when a new one is given.
func upsertIssuer(tx *gorm.DB, in IssuerInput, now time.Time) error {
	row := issuerRow{
		Email:     in.Email,
		Name:      in.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Phone != nil {
		row.Phone = sql.NullString{String: *in.Phone, Valid: true}
	}

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "name"}, Value: gorm.Expr("CASE WHEN issuers.name IS NULL OR issuers.name = '' THEN excluded.name ELSE issuers.name END")},
			{Column: clause.Column{Name: "phone"}, Value: gorm.Expr("COALESCE(excluded.phone, issuers.phone)")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(&row).Error
}

func (p *persistentBackend) AssignCoupon(ctx context.Context, in IssuerInput, couponID int64) (string, error) {
	previous := ""
	now := p.now()
	err := p.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := upsertIssuer(tx, in, now); err != nil {
			return err
		}

		var current []assignmentRow
		if err := tx.Where("coupon_id = ?", couponID).Limit(1).Find(&current).Error; err != nil {
			return err
		}
		if len(current) > 0 {
			previous = current[0].IssuerEmail
		}

		row := assignmentRow{CouponID: couponID, IssuerEmail: in.Email, AssignedAt: now}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "coupon_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"issuer_email", "assigned_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

func (p *persistentBackend) UnassignCoupon(ctx context.Context, email string, couponID int64) (bool, error) {
	res := p.conn(ctx).
		Where("coupon_id = ? AND issuer_email = ?", couponID, email).
		Delete(&assignmentRow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (p *persistentBackend) AssignedCouponIDs(ctx context.Context, email string) ([]int64, error) {
	var ids []int64
	err := p.conn(ctx).
		Model(&assignmentRow{}).
		Where("issuer_email = ?", email).
		Order("assigned_at DESC").
		Order("coupon_id DESC").
		Pluck("coupon_id", &ids).Error
	return ids, err
}

func (p *persistentBackend) AllAssignedCouponIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := p.conn(ctx).
		Model(&assignmentRow{}).
		Order("coupon_id").
		Pluck("coupon_id", &ids).Error
	return ids, err
}

func (p *persistentBackend) CouponIssuerMap(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []assignmentRow
	if err := p.conn(ctx).Where("coupon_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.CouponID] = row.IssuerEmail
	}
	return out, nil
}

func (p *persistentBackend) ListIssuers(ctx context.Context, placeholder int64) ([]IssuerSummary, error) {
	var rows []summaryRow
	err := p.conn(ctx).
		Table("issuers AS i").
		Select("i.email, i.name, i.phone, i.created_at, i.updated_at, COUNT(a.coupon_id) AS coupon_count").
		Joins("LEFT JOIN coupon_issuer_assignments a ON a.issuer_email = i.email AND a.coupon_id <> ?", placeholder).
		Group("i.email, i.name, i.phone, i.created_at, i.updated_at").
		Order("i.created_at DESC").
		Order("i.email").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]IssuerSummary, len(rows))
	for i, row := range rows {
		out[i] = row.toSummary()
	}
	return out, nil
}

func (p *persistentBackend) GetIssuer(ctx context.Context, email string) (*Issuer, error) {
	var row issuerRow
	if err := p.conn(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, errIssuerMissing
		}
		return nil, err
	}
	issuer := row.toIssuer()
	return &issuer, nil
}

func (p *persistentBackend) UpdateIssuer(ctx context.Context, email, name string, phone *string) (bool, error) {
	updates := map[string]any{
		"name":       name,
		"phone":      sql.NullString{},
		"updated_at": p.now(),
	}
	if phone != nil {
		updates["phone"] = sql.NullString{String: *phone, Valid: true}
	}
	res := p.conn(ctx).Model(&issuerRow{}).Where("email = ?", email).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (p *persistentBackend) MoveAssignments(ctx context.Context, from, to string) (int64, error) {
	var moved int64
	err := p.client.WithTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&issuerRow{}).Where("email = ?", to).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errIssuerMissing
		}
		res := tx.Model(&assignmentRow{}).
			Where("issuer_email = ?", from).
			Updates(map[string]any{"issuer_email": to, "assigned_at": p.now()})
		moved = res.RowsAffected
		return res.Error
	})
	return moved, err
}

func (p *persistentBackend) DeleteIssuer(ctx context.Context, email string) (bool, error) {
	deleted := false
	err := p.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("issuer_email = ?", email).Delete(&assignmentRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("email = ?", email).Delete(&issuerRow{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (p *persistentBackend) Counts(ctx context.Context) (int64, int64, error) {
	var issuers, assignments int64
	if err := p.conn(ctx).Model(&issuerRow{}).Count(&issuers).Error; err != nil {
		return 0, 0, err
	}
	if err := p.conn(ctx).Model(&assignmentRow{}).Count(&assignments).Error; err != nil {
		return 0, 0, err
	}
	return issuers, assignments, nil
}

func (p *persistentBackend) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *persistentBackend) Close() error {
	return p.client.Close()
}
