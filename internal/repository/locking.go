package repository

import "gorm.io/gorm/clause"

// Row locks taken inside ledger transactions. SQLite ignores locking clauses;
// there the single-writer database serializes transactions instead.
var (
	forUpdate = clause.Locking{Strength: "UPDATE"}
	forShare  = clause.Locking{Strength: "SHARE"}
)

func pageOffset(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return (page - 1) * limit, limit
}
