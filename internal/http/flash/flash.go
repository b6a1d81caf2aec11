// Package flash хранит одноразовые сообщения пользователю в cookie
// до следующей отрисовки страницы.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// CookieName имя cookie с сообщениями.
const CookieName = "flash"

// Категории сообщений.
const (
	Success = "success"
	Info    = "info"
	Warning = "warning"
	Danger  = "danger"
)

const maxMessages = 5

// Message одно сообщение.
type Message struct {
	Category string `json:"c"`
	Text     string `json:"t"`
}

// Add добавляет сообщение к уже накопленным в запросе r.
func Add(w http.ResponseWriter, r *http.Request, category, text string) {
	msgs := append(read(r), Message{Category: category, Text: text})
	if len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	// Сообщение должно быть видно и в текущем запросе, если страница
	// отрисовывается без редиректа.
	r.AddCookie(&http.Cookie{Name: CookieName, Value: base64.RawURLEncoding.EncodeToString(data)})
}

// Pop возвращает накопленные сообщения и удаляет cookie.
func Pop(w http.ResponseWriter, r *http.Request) []Message {
	msgs := read(r)
	if len(msgs) == 0 {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return msgs
}

func read(r *http.Request) []Message {
	var last *http.Cookie
	for _, c := range r.Cookies() {
		if c.Name == CookieName {
			last = c
		}
	}
	if last == nil || last.Value == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(last.Value)
	if err != nil {
		return nil
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil
	}
	return msgs
}
