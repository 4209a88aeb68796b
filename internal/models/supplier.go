package models

import "time"

// Supplier - tedarikçi rehberi. Krediler ve faturalar bu kayda bağlanır.
type Supplier struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:200;not null;index"`
	ContactName string `gorm:"size:120"`
	Phone       string `gorm:"size:40"`
	Email       string `gorm:"size:120"`
	IsActive    bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
