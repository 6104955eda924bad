package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
)

// SampleHeader is the column layout written by WriteSample.
var SampleHeader = []string{"sku", "title", "category", "brand", "product_type", "price", "description"}

type sampleCategory struct {
	name   string
	weight float64 // share of generated rows
	types  []string
}

var sampleCategories = []sampleCategory{
	{"Dresses", 0.20, []string{"Maxi Dress", "Midi Dress", "Knit Dress", "Shirt Dress"}},
	{"Outerwear", 0.20, []string{"Parka", "Trench Coat", "Blazer", "Puffer Vest"}},
	{"Tops", 0.15, []string{"Tunic", "Blouse", "Sweatshirt", "T-Shirt"}},
	{"Bottoms", 0.15, []string{"Trousers", "Midi Skirt", "Wide Leg Jean", "Joggers"}},
	{"Footwear", 0.15, []string{"Ankle Boot", "Sneaker", "Loafer", "Running Shoe"}},
	{"Accessories", 0.15, []string{"Scarf", "Leather Belt", "Shoulder Bag", "Backpack"}},
}

var (
	sampleBrands   = []string{"Acme", "Northwind", "Contoso", "Fabrikam", "Tailspin", "Litware", "Proseware", "Adatum"}
	samplePrefixes = []string{"Classic", "Striped", "Floral", "Pleated", "Quilted", "Linen", "Satin", "Cotton", "Wool Blend", "Printed"}
	sampleColors   = []string{"Black", "Navy", "Ecru", "Khaki", "Burgundy", "Grey", "Camel", "Olive", "Rose", "Indigo"}
	sampleBlurbs   = []string{
		"Everyday %s in an easy fit.",
		"A %s cut for all seasons.",
		"Tailored %s with clean lines.",
		"Lightweight %s that packs flat.",
	}
)

// WriteSample writes a synthetic catalog of count rows as CSV. The output is
// fully determined by seed, so repeated runs produce identical files and SKUs.
func WriteSample(w io.Writer, count int, seed int64) error {
	if count < 0 {
		return fmt.Errorf("sample row count must not be negative: %d", count)
	}
	rng := rand.New(rand.NewSource(seed))

	cw := csv.NewWriter(w)
	if err := cw.Write(SampleHeader); err != nil {
		return fmt.Errorf("write sample header: %w", err)
	}

	idx := 0
	remaining := count
	for i, cat := range sampleCategories {
		n := int(float64(count) * cat.weight)
		if i == len(sampleCategories)-1 {
			n = remaining
		}
		remaining -= n

		for j := 0; j < n; j++ {
			productType := cat.types[rng.Intn(len(cat.types))]
			title := fmt.Sprintf("%s %s - %s",
				samplePrefixes[rng.Intn(len(samplePrefixes))],
				productType,
				sampleColors[rng.Intn(len(sampleColors))],
			)
			// Whole-unit prices between 9.90 and 499.90.
			price := float64(99+rng.Intn(4900)) / 10

			record := []string{
				fmt.Sprintf("SKU-%07d", idx),
				title,
				cat.name,
				sampleBrands[idx%len(sampleBrands)],
				productType,
				strconv.FormatFloat(price, 'f', 2, 64),
				fmt.Sprintf(sampleBlurbs[rng.Intn(len(sampleBlurbs))], productType),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write sample row %d: %w", idx, err)
			}
			idx++
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush sample: %w", err)
	}
	return nil
}
