package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/carsearch/internal/inventory"
)

const carColumns = `id, maker, model, year, mileage_km, price_yen, COALESCE(prev_price_yen, 0),
	COALESCE(region, ''), COALESCE(pref, ''), COALESCE(city, ''),
	updated_at, posted_at, price_changed_at,
	maker_slug, model_slug, COALESCE(region_slug, ''), COALESCE(pref_slug, ''), COALESCE(city_slug, ''),
	feature_slugs, COALESCE(shop_name, '')`

// InventorySource reads active listings from the managed search table.
type InventorySource struct {
	db    DB
	table string
}

// NewInventorySource builds an InventorySource. An empty table selects cars.
func NewInventorySource(db DB, table string) (*InventorySource, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	name, err := tableName(table, "cars")
	if err != nil {
		return nil, err
	}
	return &InventorySource{db: db, table: name}, nil
}

// AllCars returns every active listing.
func (s *InventorySource) AllCars(ctx context.Context) ([]inventory.Car, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE active ORDER BY id`, carColumns, s.table)
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select cars: %w", err)
	}
	cars, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Car, error) {
		return scanCar(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan cars: %w", err)
	}
	return cars, nil
}

// CarByID loads one active listing or returns inventory.ErrNotFound.
func (s *InventorySource) CarByID(ctx context.Context, id string) (inventory.Car, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND active`, carColumns, s.table)
	car, err := scanCar(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Car{}, inventory.ErrNotFound
	}
	if err != nil {
		return inventory.Car{}, fmt.Errorf("select car %s: %w", id, err)
	}
	return car, nil
}

func scanCar(row pgx.Row) (inventory.Car, error) {
	var c inventory.Car
	err := row.Scan(
		&c.ID, &c.Maker, &c.Model, &c.Year, &c.MileageKm, &c.PriceYen, &c.PrevPriceYen,
		&c.Region, &c.Pref, &c.City,
		&c.UpdatedAt, &c.PostedAt, &c.PriceChangedAt,
		&c.MakerSlug, &c.ModelSlug, &c.RegionSlug, &c.PrefSlug, &c.CitySlug,
		&c.FeatureSlugs, &c.ShopName,
	)
	return c, err
}
