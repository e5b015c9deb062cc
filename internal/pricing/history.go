package pricing

import (
	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
)

// SQLiteHistory logs fetched listings into the materials_prices table,
// alongside teacher price-book entries (TeacherID empty marks aggregator
// rows).
type SQLiteHistory struct {
	db *sqlite.Client
}

func NewSQLiteHistory(db *sqlite.Client) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

var _ HistorySink = (*SQLiteHistory)(nil)

func (h *SQLiteHistory) LogListing(l Listing) error {
	return h.db.InsertMaterialPrice(&models.MaterialPrice{
		Material: l.Material,
		Brand:    l.Brand,
		Size:     l.Size,
		Unit:     l.Unit,
		Price:    l.Price,
		Vendor:   l.Vendor,
		Location: l.Location,
	})
}
