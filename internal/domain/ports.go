package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// Product — товар удалённого каталога. Локально не хранится и не кэшируется.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// UnmarshalJSON принимает id каталога как строку или как число и хранит его строкой.
func (p *Product) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID    json.RawMessage `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, err := productIDFromJSON(wire.ID)
	if err != nil {
		return err
	}
	*p = Product{ID: id, Name: wire.Name, Price: wire.Price}
	return nil
}

var errProductIDType = errors.New("product id must be a string or a number")

func productIDFromJSON(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var id string
		err := json.Unmarshal(raw, &id)
		return id, err
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", errProductIDType
	}
	return number.String(), nil
}

// ProductCatalog описывает обращение к удалённому каталогу товаров.
type ProductCatalog interface {
	// Validate возвращает найденные товары по списку идентификаторов (дубликаты допустимы).
	// Отсутствующие идентификаторы просто не попадают в результат.
	Validate(ctx context.Context, ids []string) ([]Product, error)
}

// ProductIndex строит индекс товаров по идентификатору.
func ProductIndex(products []Product) map[string]Product {
	index := make(map[string]Product, len(products))
	for _, product := range products {
		index[product.ID] = product
	}
	return index
}

// DistinctProductIDs возвращает уникальные идентификаторы товаров позиций в исходном порядке.
func DistinctProductIDs(lines []OrderLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}
