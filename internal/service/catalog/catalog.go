package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

const maxIDAttempts = 3

// Draft — данные нового товара до присвоения идентификатора.
type Draft struct {
	Name      string           `json:"name"`
	Size      string           `json:"size"`
	Price     float64          `json:"price"`
	Category  string           `json:"category"`
	Container domain.Container `json:"container"`
}

// Store хранит каталог товаров в key-value хранилище под ключом products.
type Store struct {
	kv     domain.KeyValueStore
	logger *log.Entry
	newID  func() (uuid.UUID, error)
}

// NewStore создаёт каталог поверх key-value хранилища.
func NewStore(kv domain.KeyValueStore, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Store{
		kv:     kv,
		logger: logger,
		newID:  uuid.NewV7,
	}
}

// List возвращает копию каталога без гарантий порядка.
func (s *Store) List(ctx context.Context) ([]domain.Product, error) {
	raw, err := s.kv.Get(ctx, domain.KeyProducts)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return []domain.Product{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// FindByID ищет товар по идентификатору.
func (s *Store) FindByID(ctx context.Context, id string) (domain.Product, bool, error) {
	products, err := s.List(ctx)
	if err != nil {
		return domain.Product{}, false, err
	}
	if idx := indexOf(products, id); idx >= 0 {
		return products[idx], true, nil
	}
	return domain.Product{}, false, nil
}

// Upsert добавляет товар, если его id нет в каталоге, иначе заменяет
// редактируемые поля существующей записи.
func (s *Store) Upsert(ctx context.Context, product domain.Product) error {
	product = normalize(product)
	if errs := product.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	products, err := s.List(ctx)
	if err != nil {
		return err
	}

	if idx := indexOf(products, product.ID); idx >= 0 {
		products[idx] = product
	} else {
		products = append(products, product)
	}

	return s.save(ctx, products)
}

// Add присваивает товару новый упорядоченный по времени идентификатор и сохраняет его.
func (s *Store) Add(ctx context.Context, draft Draft) (domain.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	product := normalize(domain.Product{
		Name:      draft.Name,
		Size:      draft.Size,
		Price:     draft.Price,
		Category:  draft.Category,
		Container: draft.Container,
	})

	for attempt := 0; attempt < maxIDAttempts && product.ID == ""; attempt++ {
		id, err := s.newID()
		if err != nil {
			return domain.Product{}, fmt.Errorf("generate product id: %w", err)
		}
		if indexOf(products, id.String()) >= 0 {
			s.logger.WithField("product_id", id.String()).Warn("generated product id collides, retrying")
			continue
		}
		product.ID = id.String()
	}
	if product.ID == "" {
		return domain.Product{}, domain.ErrProductIDConflict
	}

	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.save(ctx, append(products, product)); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// Remove удаляет товар; отсутствующий id не является ошибкой.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	products, err := s.List(ctx)
	if err != nil {
		return false, err
	}

	idx := indexOf(products, id)
	if idx < 0 {
		return false, nil
	}
	products = append(products[:idx], products[idx+1:]...)

	return true, s.save(ctx, products)
}

// Replace записывает каталог целиком (используется при начальном заполнении).
func (s *Store) Replace(ctx context.Context, products []domain.Product) error {
	for i, p := range products {
		if errs := p.Validate(); len(errs) > 0 {
			return fmt.Errorf("products[%d]: %w", i, errors.Join(errs...))
		}
	}
	return s.save(ctx, products)
}

func (s *Store) save(ctx context.Context, products []domain.Product) error {
	if products == nil {
		products = []domain.Product{}
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	if err := s.kv.Put(ctx, domain.KeyProducts, raw); err != nil {
		return fmt.Errorf("store products: %w", err)
	}
	return nil
}

func normalize(p domain.Product) domain.Product {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Size = strings.TrimSpace(p.Size)
	p.Category = strings.TrimSpace(p.Category)
	return p
}

func indexOf(products []domain.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

// Sorted возвращает копию каталога в порядке отображения:
// категория, затем название, без учёта регистра.
func Sorted(products []domain.Product) []domain.Product {
	out := append([]domain.Product(nil), products...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := strings.ToLower(out[i].Category), strings.ToLower(out[j].Category)
		if ci != cj {
			return ci < cj
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Resolve разрешает ссылку позиции заказа на текущий каталог.
// Все потребители (детали заказа, аналитика, отчёты) используют только эту функцию.
func Resolve(products []domain.Product, id string) domain.ProductRef {
	if idx := indexOf(products, id); idx >= 0 {
		return refTo(id, products[idx], true)
	}
	return refTo(id, domain.Product{}, false)
}

// Index строит индекс товаров по id для многократного разрешения ссылок.
type Index map[string]domain.Product

// NewIndex строит индекс по снимку каталога.
func NewIndex(products []domain.Product) Index {
	idx := make(Index, len(products))
	for _, p := range products {
		idx[p.ID] = p
	}
	return idx
}

// Resolve разрешает ссылку по индексу.
func (idx Index) Resolve(id string) domain.ProductRef {
	p, ok := idx[id]
	return refTo(id, p, ok)
}

func refTo(id string, p domain.Product, ok bool) domain.ProductRef {
	if !ok {
		return domain.ProductRef{ID: id}
	}
	return domain.ProductRef{ID: id, Name: p.Name, Size: p.Size, Resolved: true}
}
