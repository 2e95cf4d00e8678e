package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Container описывает тип тары товара.
type Container int

const (
	// ContainerOther — товар без учёта в количестве ящиков.
	ContainerOther Container = iota
	// ContainerCrate — товар поставляется ящиками и учитывается в crate count.
	ContainerCrate
)

const (
	containerCrateValue = "crate"
	containerOtherValue = "other"
)

// ParseContainer разбирает строковое значение тары без учёта регистра.
func ParseContainer(raw string) (Container, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case containerCrateValue:
		return ContainerCrate, nil
	case containerOtherValue:
		return ContainerOther, nil
	default:
		return ContainerOther, fmt.Errorf("%w: %q", ErrContainerInvalid, raw)
	}
}

// String возвращает значение в формате хранилища.
func (c Container) String() string {
	if c == ContainerCrate {
		return containerCrateValue
	}
	return containerOtherValue
}

// Valid проверяет, что значение относится к поддерживаемым вариантам.
func (c Container) Valid() bool {
	return c == ContainerCrate || c == ContainerOther
}

// MarshalJSON сериализует тару как строку "crate"/"other".
func (c Container) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrContainerInvalid
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON принимает "crate"/"other" в любом регистре.
func (c *Container) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrContainerInvalid, string(data))
	}
	parsed, err := ParseContainer(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML нужен для seed-каталогов в YAML.
func (c Container) MarshalYAML() (any, error) {
	return c.String(), nil
}

// UnmarshalYAML разбирает тару из YAML-строки.
func (c *Container) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseContainer(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Product описывает позицию каталога.
type Product struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Size      string    `json:"size" yaml:"size"`
	Price     float64   `json:"price" yaml:"price"`
	Category  string    `json:"category" yaml:"category"`
	Container Container `json:"container" yaml:"container"`
}

// DisplayName возвращает название в формате "name - size", по которому работает поиск.
func (p Product) DisplayName() string {
	return p.Name + " - " + p.Size
}

// Validate проверяет инварианты товара перед сохранением в каталог.
func (p Product) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Price < 0 {
		errs = append(errs, ErrProductPriceNegative)
	}
	if !p.Container.Valid() {
		errs = append(errs, ErrContainerInvalid)
	}

	return errs
}

// ProductRef — результат разрешения ссылки из позиции заказа на каталог.
// Ссылка может не разрешиться, если товар удалён после сохранения заказа.
type ProductRef struct {
	ID       string
	Name     string
	Size     string
	Resolved bool
}

// UnknownProductLabel — подпись для неразрешённых ссылок.
const UnknownProductLabel = "Unknown"

// Label возвращает подпись "name size" либо Unknown.
func (r ProductRef) Label() string {
	if !r.Resolved {
		return UnknownProductLabel
	}
	return strings.TrimSpace(r.Name + " " + r.Size)
}

// DisplayName возвращает подпись "name - size" либо Unknown.
func (r ProductRef) DisplayName() string {
	if !r.Resolved {
		return UnknownProductLabel
	}
	return r.Name + " - " + r.Size
}

// ProductName возвращает имя товара либо Unknown.
func (r ProductRef) ProductName() string {
	if !r.Resolved {
		return UnknownProductLabel
	}
	return r.Name
}
