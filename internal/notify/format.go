package notify

import (
	"fmt"
	"time"
)

// FormatDateTime форматирует дату и время занятия
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatTimeRange форматирует диапазон времени
func FormatTimeRange(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04"))
}

// FormatAmount форматирует сумму из центов, без дробной части если она равна 0
func FormatAmount(cents int64) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// PluralizeStrikes возвращает правильное склонение слова "страйк"
func PluralizeStrikes(count int) string {
	if count%10 == 1 && count%100 != 11 {
		return "страйк"
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return "страйка"
	}
	return "страйков"
}
