// Package ingest streams catalog rows from a source into a product store in
// bounded batches.
package ingest

import (
	"errors"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
)

// ErrMissingSKU rejects a row without a business key.
var ErrMissingSKU = errors.New("row has no sku")

// Accepted column names per field, in priority order. Exact header matches
// are tried first in this order; only then are headers compared ignoring case
// and surrounding spaces.
var (
	titleColumns       = []string{"title", "Title"}
	categoryColumns    = []string{"category", "Category"}
	brandColumns       = []string{"brand", "Brand"}
	productTypeColumns = []string{"product_type", "Product Type", "type"}
	skuColumns         = []string{"sku", "SKU", "Sku"}
	priceColumns       = []string{"price", "Price"}
	descriptionColumns = []string{"description", "Description"}
)

// Normalize maps a raw row onto a Product. Absent text fields become empty
// strings; a price that is not a finite number is left unset.
func Normalize(row map[string]string) (domain.Product, error) {
	folded := foldColumns(row)

	p := domain.Product{
		SKU:         strings.TrimSpace(pick(row, folded, skuColumns)),
		Title:       pick(row, folded, titleColumns),
		Category:    pick(row, folded, categoryColumns),
		Brand:       pick(row, folded, brandColumns),
		ProductType: pick(row, folded, productTypeColumns),
		Price:       parsePrice(pick(row, folded, priceColumns)),
		Description: pick(row, folded, descriptionColumns),
	}
	if p.SKU == "" {
		return domain.Product{}, ErrMissingSKU
	}
	return p, nil
}

// foldColumns indexes non-empty values by lowercased, trimmed header. When
// several headers fold to the same name, the first in sorted order wins.
func foldColumns(row map[string]string) map[string]string {
	cols := make(map[string]string, len(row))
	for _, k := range slices.Sorted(maps.Keys(row)) {
		v := row[k]
		if v == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		if _, ok := cols[key]; !ok {
			cols[key] = v
		}
	}
	return cols
}

// pick returns the first non-empty value among names, preferring exact
// header matches over case-insensitive ones.
func pick(row, folded map[string]string, names []string) string {
	for _, name := range names {
		if v := row[name]; v != "" {
			return v
		}
	}
	for _, name := range names {
		if v := folded[strings.ToLower(name)]; v != "" {
			return v
		}
	}
	return ""
}

func parsePrice(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
