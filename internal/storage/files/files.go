// Package files хранит загруженные видеофайлы в каталоге контента.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidName имя файла выходит за пределы каталога контента.
var ErrInvalidName = errors.New("invalid file name")

// Store файловое хранилище с корнем root.
type Store struct {
	root string
}

// New создаёт хранилище и при необходимости каталог root.
func New(root string) (*Store, error) {
	const op = "files.New"
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{root: abs}, nil
}

// Root возвращает абсолютный путь каталога контента.
func (s *Store) Root() string {
	return s.root
}

// Sanitize превращает имя, пришедшее от клиента, в безопасное имя файла:
// убирает путь, "..", пробелы заменяет на "_" и оставляет только [A-Za-z0-9._-].
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := b.String()
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	return strings.Trim(out, "._")
}

// Ext возвращает расширение файла в нижнем регистре без точки.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Save записывает r под именем "<uuid>_<sanitized>" и возвращает это имя.
// Файл сначала пишется во временный и переименовывается после успешной записи.
func (s *Store) Save(ctx context.Context, original string, r io.Reader) (string, error) {
	const op = "files.Save"

	clean := Sanitize(original)
	if clean == "" || clean == Ext(original) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidName)
	}
	name := uuid.NewString() + "_" + clean

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.root, name)); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	committed = true
	return name, nil
}

// Open открывает сохранённый файл для чтения.
func (s *Store) Open(name string) (*os.File, error) {
	const op = "files.Open"
	path, err := s.path(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// Remove удаляет сохранённый файл. Отсутствие файла не считается ошибкой.
func (s *Store) Remove(name string) error {
	const op = "files.Remove"
	path, err := s.path(name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.root, name), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
