package contacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/contactbook-backend/pkg/db"
	"github.com/angelmondragon/contactbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
	"gorm.io/gorm"
)

const (
	phoneLookupChunk = 500
	insertBatchSize  = 200
)

var searchColumns = []string{"name", "phone", "email", "social_account", "address"}

// SQLStore persists contacts in the contacts table through gorm. Uniqueness is
// checked inside the write transaction and backed by the UNIQUE(phone)
// constraint.
type SQLStore struct {
	client *db.Client
	opts   storeOptions
}

// NewSQLStore builds a store over an open client whose schema is migrated.
func NewSQLStore(client *db.Client, opts ...Option) (*SQLStore, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &SQLStore{client: client, opts: applyOptions(opts)}, nil
}

func toContact(row models.Contact) Contact {
	return Contact{
		ID:            row.ID,
		Name:          row.Name,
		Phone:         row.Phone,
		Email:         row.Email,
		SocialAccount: row.SocialAccount,
		Address:       row.Address,
		Favorite:      row.Favorite,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func toRow(c Contact) models.Contact {
	return models.Contact{
		ID:            c.ID,
		Name:          c.Name,
		Phone:         c.Phone,
		Email:         c.Email,
		SocialAccount: c.SocialAccount,
		Address:       c.Address,
		Favorite:      c.Favorite,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// updateColumns lists every writable column so zero values are written too.
func updateColumns(c Contact) map[string]any {
	return map[string]any{
		"name":           c.Name,
		"phone":          c.Phone,
		"email":          c.Email,
		"social_account": c.SocialAccount,
		"address":        c.Address,
		"favorite":       c.Favorite,
		"updated_at":     c.UpdatedAt,
	}
}

func storageErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

// writeErr maps a lost race on UNIQUE(phone) to the same error the pre-check
// returns.
func writeErr(err error, phone, msg string) error {
	if db.IsUniqueViolation(err, "phone") {
		return duplicatePhone(phone)
	}
	return storageErr(err, msg)
}

func phoneExists(tx *gorm.DB, phone string, exceptID int64) (bool, error) {
	query := tx.Model(&models.Contact{}).Where("phone = ?", phone)
	if exceptID > 0 {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLStore) Create(ctx context.Context, input NewContact) (*Contact, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.opts.now()
	c := Contact{CreatedAt: now, UpdatedAt: now}
	c.assign(input)
	row := toRow(c)

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		taken, err := phoneExists(tx, input.Phone, 0)
		if err != nil {
			return err
		}
		if taken {
			return duplicatePhone(input.Phone)
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, writeErr(err, input.Phone, "create contact")
	}

	created := toContact(row)
	return &created, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (*Contact, error) {
	var row models.Contact
	if err := s.client.DB().WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, storageErr(err, "load contact")
	}
	c := toContact(row)
	return &c, nil
}

func (s *SQLStore) Update(ctx context.Context, id int64, patch Patch) (*Contact, error) {
	var (
		updated Contact
		phone   string
	)
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var row models.Contact
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(id)
			}
			return err
		}

		next, err := patch.Apply(toContact(row))
		if err != nil {
			return err
		}
		phone = next.Phone
		if next.Phone != row.Phone {
			taken, err := phoneExists(tx, next.Phone, id)
			if err != nil {
				return err
			}
			if taken {
				return duplicatePhone(next.Phone)
			}
		}
		touch(&next, s.opts.now())

		if err := tx.Model(&models.Contact{}).Where("id = ?", id).Updates(updateColumns(next)).Error; err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, writeErr(err, phone, "update contact")
	}
	return &updated, nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res := s.client.DB().WithContext(ctx).Delete(&models.Contact{}, "id = ?", id)
	if res.Error != nil {
		return storageErr(res.Error, "delete contact")
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, q Query) (*Page, error) {
	q = q.Normalize(s.opts.limits)

	base := s.client.DB().WithContext(ctx).Model(&models.Contact{})
	if q.Text != "" {
		pattern := likePattern(s.client.FoldText(q.Text))
		clause := ""
		args := make([]any, 0, len(searchColumns))
		for i, col := range searchColumns {
			if i > 0 {
				clause += " OR "
			}
			clause += s.client.FoldColumn(col) + ` LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		base = base.Where("("+clause+")", args...)
	}
	if q.FavoriteOnly {
		base = base.Where("favorite = ?", true)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, storageErr(err, "count contacts")
	}

	var rows []models.Contact
	err := base.Session(&gorm.Session{}).
		Order("updated_at DESC").
		Order("id ASC").
		Offset(q.params().Offset()).
		Limit(q.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr(err, "list contacts")
	}

	items := make([]Contact, 0, len(rows))
	for _, row := range rows {
		items = append(items, toContact(row))
	}
	return &Page{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *SQLStore) All(ctx context.Context) ([]Contact, error) {
	var rows []models.Contact
	if err := s.client.DB().WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, storageErr(err, "load contacts")
	}
	out := make([]Contact, 0, len(rows))
	for _, row := range rows {
		out = append(out, toContact(row))
	}
	sortByName(out)
	return out, nil
}

func (s *SQLStore) Import(ctx context.Context, candidates []Candidate, opts ImportOptions) (*ImportResult, error) {
	var result *ImportResult
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := lookupPhones(tx, Phones(candidates))
		if err != nil {
			return err
		}

		plan := Reconcile(candidates, existing, opts)
		result = plan.Result()
		if plan.Empty() {
			return nil
		}

		now := s.opts.now()
		created, err := lookupCreatedAt(tx, plan.Updates)
		if err != nil {
			return err
		}
		for _, u := range plan.Updates {
			c := Contact{CreatedAt: created[u.ID]}
			c.assign(u.Fields)
			touch(&c, now)
			res := tx.Model(&models.Contact{}).Where("id = ?", u.ID).Updates(updateColumns(c))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return pkgerrors.New(pkgerrors.CodeInternal, "planned update target vanished")
			}
		}

		if len(plan.Creates) == 0 {
			return nil
		}
		rows := make([]models.Contact, 0, len(plan.Creates))
		for _, fields := range plan.Creates {
			c := Contact{CreatedAt: now, UpdatedAt: now}
			c.assign(fields)
			rows = append(rows, toRow(c))
		}
		return tx.CreateInBatches(&rows, insertBatchSize).Error
	})
	if err != nil {
		if db.IsUniqueViolation(err, "phone") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicatePhone, err, "import conflicted with a concurrent write")
		}
		return nil, storageErr(err, "import contacts")
	}
	return result, nil
}

func lookupPhones(tx *gorm.DB, phones []string) (PhoneMap, error) {
	index := make(PhoneMap, len(phones))
	for start := 0; start < len(phones); start += phoneLookupChunk {
		end := start + phoneLookupChunk
		if end > len(phones) {
			end = len(phones)
		}
		var rows []models.Contact
		if err := tx.Select("id", "phone").Where("phone IN ?", phones[start:end]).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			index[row.Phone] = row.ID
		}
	}
	return index, nil
}

// lookupCreatedAt loads created_at for overwrite targets so updated_at is
// never written earlier than it.
func lookupCreatedAt(tx *gorm.DB, updates []PlannedUpdate) (map[int64]time.Time, error) {
	ids := make([]int64, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.ID)
	}
	created := make(map[int64]time.Time, len(ids))
	for start := 0; start < len(ids); start += phoneLookupChunk {
		end := start + phoneLookupChunk
		if end > len(ids) {
			end = len(ids)
		}
		var rows []models.Contact
		if err := tx.Select("id", "created_at").Where("id IN ?", ids[start:end]).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			created[row.ID] = row.CreatedAt.UTC()
		}
	}
	return created, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ping contact database")
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.client.Close()
}
