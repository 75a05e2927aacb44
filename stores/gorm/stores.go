package gorm

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ma "github.com/tanur/mailauth"
)

// AutoMigrate runs database migrations for all mailauth tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&LoginCodeModel{},
		&SessionTokenModel{},
	)
}

// UserStore implements ma.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Get(email string) (*ma.UserRecord, error) {
	return getRecord(s.db, ma.NormalizeEmail(email))
}

func (s *UserStore) Save(rec *ma.UserRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return saveRecord(tx, rec)
	})
}

// Update applies fn to the record inside a transaction that holds a row
// lock on the user, serializing concurrent updates for the same email.
func (s *UserStore) Update(email string, fn func(rec *ma.UserRecord) error) error {
	email = ma.NormalizeEmail(email)
	return s.db.Transaction(func(tx *gorm.DB) error {
		var user UserModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "email = ?", email).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ma.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		rec, err := getRecord(tx, email)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		return saveRecord(tx, rec)
	})
}

func (s *UserStore) ForEach(fn func(rec *ma.UserRecord) (stop bool, err error)) error {
	var users []UserModel
	if err := s.db.Order("created_at").Find(&users).Error; err != nil {
		return err
	}

	for _, user := range users {
		rec, err := getRecord(s.db, user.Email)
		if err != nil {
			return err
		}
		stop, err := fn(rec)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// getRecord assembles a full user record from the three tables, codes and
// tokens in issuance order.
func getRecord(db *gorm.DB, email string) (*ma.UserRecord, error) {
	var user UserModel
	err := db.First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ma.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := &ma.UserRecord{Email: user.Email, Name: user.Name}

	var codes []LoginCodeModel
	if err := db.Order("created_at").Find(&codes, "user_email = ?", email).Error; err != nil {
		return nil, err
	}
	for _, c := range codes {
		rec.LoginCodes = append(rec.LoginCodes, ma.LoginCode{
			ID:           c.ID,
			SecuredValue: c.Hash,
			ExpiresAt:    c.ExpiresAt,
		})
	}

	var tokens []SessionTokenModel
	if err := db.Order("created_at").Find(&tokens, "user_email = ?", email).Error; err != nil {
		return nil, err
	}
	for _, t := range tokens {
		rec.Tokens = append(rec.Tokens, ma.SessionToken{
			ID:           t.ID,
			SecuredValue: t.Hash,
			ExpiresAt:    t.ExpiresAt,
		})
	}

	return rec, nil
}

// saveRecord writes a full user record back: the user row is upserted and
// the code/token rows replaced to match the record.
func saveRecord(tx *gorm.DB, rec *ma.UserRecord) error {
	email := ma.NormalizeEmail(rec.Email)

	user := UserModel{Email: email, Name: rec.Name}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&user).Error; err != nil {
		return err
	}

	if err := tx.Delete(&LoginCodeModel{}, "user_email = ?", email).Error; err != nil {
		return err
	}
	for _, c := range rec.LoginCodes {
		code := LoginCodeModel{ID: c.ID, UserEmail: email, Hash: c.SecuredValue, ExpiresAt: c.ExpiresAt}
		if err := tx.Create(&code).Error; err != nil {
			return err
		}
	}

	if err := tx.Delete(&SessionTokenModel{}, "user_email = ?", email).Error; err != nil {
		return err
	}
	for _, t := range rec.Tokens {
		token := SessionTokenModel{ID: t.ID, UserEmail: email, Hash: t.SecuredValue, ExpiresAt: t.ExpiresAt}
		if err := tx.Create(&token).Error; err != nil {
			return err
		}
	}

	return nil
}
