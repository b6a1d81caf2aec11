package models

import "time"

// Video описывает загруженный ролик. Записи не изменяются после создания.
type Video struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Filename    string    `json:"filename"` // имя файла в каталоге контента
	CreatedAt   time.Time `json:"created_at"`
}
