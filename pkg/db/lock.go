package db

import "gorm.io/gorm"

// ForUpdate returns the row-locking suffix for the dialect behind tx.
// SQLite locks the whole database on write, so no suffix is needed there.
func ForUpdate(tx *gorm.DB) string {
	if tx == nil || tx.Dialector == nil {
		return ""
	}
	switch tx.Dialector.Name() {
	case "sqlite", "sqlite3":
		return ""
	default:
		return " FOR UPDATE"
	}
}
