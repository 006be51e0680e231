package models

import "time"

// Marketplace roles.
const (
	RoleBrand   = "brand"
	RoleCreator = "creator"
)

// UserModel represents a marketplace account: a brand or a creator.
type UserModel struct {
	Base
	Email       string     `json:"email"    gorm:"uniqueIndex;not null"`
	Password    string     `json:"-"        gorm:"not null"`
	Name        string     `json:"name"`
	Role        string     `json:"role"     gorm:"index;not null"`
	TenantID    string     `json:"tenant_id,omitempty" gorm:"index"`
	Bio         string     `json:"bio"      gorm:"type:text"`
	Avatar      string     `json:"avatar"`
	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"-"`

	SocialAccounts []SocialAccountModel `json:"social_accounts,omitempty" gorm:"foreignKey:UserID"`
}

func (UserModel) TableName() string { return "users" }

// SocialAccountModel holds a linked social platform account. Tokens are stored
// encrypted; the plaintext never touches the database.
type SocialAccountModel struct {
	Base
	UserID                string     `json:"-"            gorm:"index;not null"`
	Provider              string     `json:"provider"     gorm:"index;not null"`
	ProviderUID           string     `json:"provider_uid" gorm:"index"`
	Username              string     `json:"username"`
	EncryptedAccessToken  string     `json:"-"            gorm:"type:text"`
	EncryptedRefreshToken string     `json:"-"            gorm:"type:text"`
	TokenExpiresAt        *time.Time `json:"token_expires_at"`
	LastSyncedAt          *time.Time `json:"last_synced_at"`
}

func (SocialAccountModel) TableName() string { return "social_accounts" }
