// Package cycle вычисляет ключи месячных циклов соревнования и момент их закрытия.
//
// Ключ цикла имеет вид "2006-01". Цикл заканчивается в последний день месяца
// в час отсечки (по часовому поясу календаря); всё, что приходит позже,
// относится к следующему циклу.
package cycle

import (
	"fmt"
	"time"
)

const keyLayout = "2006-01"

// Calendar описывает границы циклов.
type Calendar struct {
	loc        *time.Location
	cutoffHour int
}

// NewCalendar создаёт календарь для часового пояса loc и часа отсечки cutoffHour.
func NewCalendar(loc *time.Location, cutoffHour int) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, cutoffHour: cutoffHour}
}

// Parse разбирает ключ цикла и возвращает первое число месяца в часовом поясе календаря.
func (c *Calendar) Parse(key string) (time.Time, error) {
	t, err := time.ParseInLocation(keyLayout, key, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cycle key %q: %w", key, err)
	}
	return t, nil
}

// MonthKey возвращает ключ календарного месяца, в который попадает t.
func (c *Calendar) MonthKey(t time.Time) string {
	return t.In(c.loc).Format(keyLayout)
}

// End возвращает момент закрытия цикла: последний день месяца, час отсечки.
func (c *Calendar) End(key string) (time.Time, error) {
	start, err := c.Parse(key)
	if err != nil {
		return time.Time{}, err
	}
	lastDay := start.AddDate(0, 1, -1)
	return time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), c.cutoffHour, 0, 0, 0, c.loc), nil
}

// KeyAt возвращает ключ открытого цикла в момент t с учётом часа отсечки.
func (c *Calendar) KeyAt(t time.Time) string {
	key := c.MonthKey(t)
	end, err := c.End(key)
	if err != nil {
		return key
	}
	if !t.Before(end) {
		return Next(key)
	}
	return key
}

// Next возвращает ключ следующего цикла. Некорректный ключ возвращается без изменений.
func Next(key string) string {
	t, err := time.Parse(keyLayout, key)
	if err != nil {
		return key
	}
	return t.AddDate(0, 1, 0).Format(keyLayout)
}

// Prev возвращает ключ предыдущего цикла. Некорректный ключ возвращается без изменений.
func Prev(key string) string {
	t, err := time.Parse(keyLayout, key)
	if err != nil {
		return key
	}
	return t.AddDate(0, -1, 0).Format(keyLayout)
}

// Valid сообщает, является ли строка ключом цикла.
func Valid(key string) bool {
	_, err := time.Parse(keyLayout, key)
	return err == nil
}
