package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withRowLock adds SELECT ... FOR UPDATE on dialects that have row locks.
// sqlite serializes writers on the whole database, so the clause is both
// unsupported and unnecessary there.
func withRowLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
