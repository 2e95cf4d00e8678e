// Package money отвечает за представление денежных сумм.
// Внутренние расчёты ведутся во float64 без округления; округление
// до двух знаков применяется только при выводе.
package money

import "github.com/shopspring/decimal"

const places = 2

// Format возвращает сумму с двумя знаками после запятой, например "30.00".
func Format(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
