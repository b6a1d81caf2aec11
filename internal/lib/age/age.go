// Package age считает полный возраст в годах с учётом месяца и дня.
package age

import "time"

// Years возвращает количество полных лет между рождением dob и датой today.
// Год не засчитывается, пока в текущем году не наступил день рождения.
func Years(dob, today time.Time) int {
	years := today.Year() - dob.Year()
	if today.Month() < dob.Month() ||
		(today.Month() == dob.Month() && today.Day() < dob.Day()) {
		years--
	}
	return years
}

// AtLeast сообщает, исполнилось ли min лет к дате today.
func AtLeast(dob, today time.Time, min int) bool {
	return Years(dob, today) >= min
}
