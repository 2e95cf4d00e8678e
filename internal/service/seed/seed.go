// Package seed поставляет каталог по умолчанию для пустого хранилища.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

//go:embed data/products.json
var defaultCatalog []byte

// Embedded отдаёт каталог, встроенный в бинарник.
type Embedded struct{}

// Fetch разбирает встроенный каталог.
func (Embedded) Fetch(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeJSON(defaultCatalog)
}

// FileProvider читает каталог из JSON- или YAML-файла.
type FileProvider struct {
	Path string
}

// Fetch читает файл; формат определяется по расширению (.yaml/.yml, иначе JSON).
func (p FileProvider) Fetch(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrSeedUnavailable, p.Path, err)
	}

	switch strings.ToLower(filepath.Ext(p.Path)) {
	case ".yaml", ".yml":
		return decodeYAML(raw)
	default:
		return decodeJSON(raw)
	}
}

// Chain пробует поставщиков по очереди и возвращает первый непустой каталог.
type Chain []domain.SeedProvider

// Fetch возвращает результат первого успешного поставщика.
func (c Chain) Fetch(ctx context.Context) ([]domain.Product, error) {
	var errs []error
	for _, provider := range c {
		if provider == nil {
			continue
		}
		products, err := provider.Fetch(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(products) > 0 {
			return products, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

func decodeJSON(raw []byte) ([]domain.Product, error) {
	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", domain.ErrSeedUnavailable, err)
	}
	return validate(products)
}

func decodeYAML(raw []byte) ([]domain.Product, error) {
	var products []domain.Product
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&products); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", domain.ErrSeedUnavailable, err)
	}
	return validate(products)
}

func validate(products []domain.Product) ([]domain.Product, error) {
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if errs := p.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("%w: products[%d]: %w", domain.ErrSeedUnavailable, i, errors.Join(errs...))
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: products[%d]: %w", domain.ErrSeedUnavailable, i, domain.ErrProductIDConflict)
		}
		seen[p.ID] = struct{}{}
	}
	return products, nil
}

var (
	_ domain.SeedProvider = Embedded{}
	_ domain.SeedProvider = FileProvider{}
	_ domain.SeedProvider = Chain{}
	_ domain.SeedProvider = (*HTTPProvider)(nil)
)
