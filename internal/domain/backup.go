package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Backup — полный снимок состояния для экспорта/импорта.
type Backup struct {
	Products []Product    `json:"products"`
	History  []OrderRecord `json:"history"`
}

// ParseBackup разбирает и проверяет файл резервной копии.
// Оба ключа обязательны; при любой ошибке возвращается ErrInvalidBackup.
func ParseBackup(data []byte) (Backup, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Backup{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	productsRaw, okProducts := raw[KeyProducts]
	historyRaw, okHistory := raw[KeyHistory]
	if !okProducts || !okHistory || isJSONNull(productsRaw) || isJSONNull(historyRaw) {
		return Backup{}, fmt.Errorf("%w: products and history are required", ErrInvalidBackup)
	}

	var backup Backup
	if err := json.Unmarshal(productsRaw, &backup.Products); err != nil {
		return Backup{}, fmt.Errorf("%w: products: %w", ErrInvalidBackup, err)
	}
	if err := json.Unmarshal(historyRaw, &backup.History); err != nil {
		return Backup{}, fmt.Errorf("%w: history: %w", ErrInvalidBackup, err)
	}
	if err := backup.Validate(); err != nil {
		return Backup{}, err
	}
	if backup.Products == nil {
		backup.Products = []Product{}
	}
	if backup.History == nil {
		backup.History = []OrderRecord{}
	}

	return backup, nil
}

// Validate проверяет товары и записи истории, а также уникальность ключей.
func (b Backup) Validate() error {
	ids := make(map[string]struct{}, len(b.Products))
	for i, p := range b.Products {
		if errs := p.Validate(); len(errs) > 0 {
			return fmt.Errorf("%w: products[%d]: %w", ErrInvalidBackup, i, errors.Join(errs...))
		}
		if _, dup := ids[p.ID]; dup {
			return fmt.Errorf("%w: products[%d]: %w", ErrInvalidBackup, i, ErrProductIDConflict)
		}
		ids[p.ID] = struct{}{}
	}

	keys := make(map[string]struct{}, len(b.History))
	for i, rec := range b.History {
		if errs := rec.Validate(); len(errs) > 0 {
			return fmt.Errorf("%w: history[%d]: %w", ErrInvalidBackup, i, errors.Join(errs...))
		}
		if _, dup := keys[rec.Key()]; dup {
			return fmt.Errorf("%w: history[%d]: %w", ErrInvalidBackup, i, ErrOrderDateConflict)
		}
		keys[rec.Key()] = struct{}{}
	}

	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// Theme — тема оформления интерфейса.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// DefaultTheme используется, если тема ещё не сохранена.
const DefaultTheme = ThemeDark

// Valid проверяет, что тема поддерживается.
func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}
