package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchline/backend/internal/models"
)

const productColumns = `id, name, description, sku, price_centavos, stock, active, created_at, updated_at`

// Repository handles product persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a products repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.SKU, &p.PriceCentavos, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, p *models.Product) error {
	const q = `INSERT INTO products (name, description, sku, price_centavos, stock, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + productColumns
	created, err := scanProduct(r.pool.QueryRow(ctx, q, p.Name, p.Description, p.SKU, p.PriceCentavos, p.Stock, p.Active))
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

// GetByID returns a product by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// List returns products; inactive products are included only when all is true.
func (r *Repository) List(ctx context.Context, all bool) ([]*models.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products`
	if !all {
		q += ` WHERE active`
	}
	q += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Update modifies name, description, price, and active flag.
func (r *Repository) Update(ctx context.Context, p *models.Product) error {
	const q = `UPDATE products
		SET name = $2, description = $3, price_centavos = $4, active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns
	updated, err := scanProduct(r.pool.QueryRow(ctx, q, p.ID, p.Name, p.Description, p.PriceCentavos, p.Active))
	if err != nil {
		return err
	}
	*p = *updated
	return nil
}

// AdjustStock changes stock by delta. The guarded UPDATE refuses adjustments
// that would drive stock negative.
func (r *Repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	const q = `UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id, delta))
	if err != nil {
		return nil, fmt.Errorf("stock adjustment rejected: %w", err)
	}
	return p, nil
}
