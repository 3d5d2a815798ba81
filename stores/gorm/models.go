package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/other-realm/otherus"
)

// StringSlice stores a []string as a JSON column.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, s)
}

// UserModel is the users table.
type UserModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string
	DisplayName  string
	Bio          string
	Interests    StringSlice `gorm:"type:json"`
	AvatarURL    string
	Location     string
	Website      string
	Provider     string `gorm:"size:32"`
	OAuthID      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) ToUser() *otherus.User {
	return &otherus.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		DisplayName:  m.DisplayName,
		Bio:          m.Bio,
		Interests:    []string(m.Interests),
		AvatarURL:    m.AvatarURL,
		Location:     m.Location,
		Website:      m.Website,
		Provider:     m.Provider,
		OAuthID:      m.OAuthID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toModel(u *otherus.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		DisplayName:  u.DisplayName,
		Bio:          u.Bio,
		Interests:    StringSlice(u.Interests),
		AvatarURL:    u.AvatarURL,
		Location:     u.Location,
		Website:      u.Website,
		Provider:     u.Provider,
		OAuthID:      u.OAuthID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// EmailModel is the email_to_id index table.
type EmailModel struct {
	Email  string `gorm:"primaryKey;size:255"`
	UserID string `gorm:"size:64"`
}

func (EmailModel) TableName() string { return "email_bindings" }

// StateModel holds pending OAuth state tokens. Rows past ExpiresAt are
// dead; they are ignored on consume and swept opportunistically.
type StateModel struct {
	State     string `gorm:"primaryKey;size:128"`
	Provider  string `gorm:"size:32"`
	ExpiresAt time.Time
}

func (StateModel) TableName() string { return "oauth_states" }
