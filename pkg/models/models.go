// Package models defines the back-office business entities tracked by the
// audit pipeline.
package models

import "time"

// Product is a catalog item managed through the admin UI.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SKU         string    `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"size:1024" json:"description"`
	PriceCents  int64     `gorm:"not null" json:"priceCents"`
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// User is an administrative user of the back office.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Username      string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email         string    `gorm:"size:128;uniqueIndex;not null" json:"email"`
	DisplayName   string    `gorm:"size:128" json:"displayName"`
	PasswordHash  string    `gorm:"size:255;not null" json:"-"`
	SecurityStamp string    `gorm:"size:64" json:"-"`
	Active        bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Roles []Role `gorm:"many2many:user_roles" json:"roles,omitempty"`
}

// Role groups permissions for assignment to users.
type Role struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`

	Permissions []Permission `gorm:"foreignKey:RoleID" json:"permissions,omitempty"`
}

// Permission is a single grant or deny of an action on a resource for a
// role. A deny on a role overrides a grant of the same permission inherited
// elsewhere.
type Permission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoleID    uint      `gorm:"index;not null" json:"roleId"`
	Resource  string    `gorm:"size:64;not null;index:idx_perm_key" json:"resource"`
	Action    string    `gorm:"size:64;not null;index:idx_perm_key" json:"action"`
	Denied    bool      `gorm:"not null;default:false" json:"denied"`
	CreatedAt time.Time `json:"createdAt"`
}

// RefreshToken stores a hashed refresh token for an admin session. The type
// is excluded from audit capture by default.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	TokenHash string    `gorm:"size:255;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
