package browser

import (
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/v0xg/pickmode/internal/persist"
)

var _ persist.Storage = (*LocalStorage)(nil)

// LocalStorage is the page's window.localStorage as a persist.Storage.
type LocalStorage struct {
	page *rod.Page
}

func (s *LocalStorage) Get(key string) (string, bool, error) {
	res, err := s.page.Eval(`(k) => JSON.stringify(window.localStorage.getItem(k))`, key)
	if err != nil {
		return "", false, wrap("localStorage get", err)
	}
	raw := res.Value.Str()
	if raw == "" || raw == "null" {
		return "", false, nil
	}
	var v string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", false, fmt.Errorf("browser: localStorage get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *LocalStorage) Set(key, value string) error {
	if _, err := s.page.Eval(`(k, v) => { window.localStorage.setItem(k, v); }`, key, value); err != nil {
		return wrap("localStorage set", err)
	}
	return nil
}

func (s *LocalStorage) Remove(key string) error {
	if _, err := s.page.Eval(`(k) => { window.localStorage.removeItem(k); }`, key); err != nil {
		return wrap("localStorage remove", err)
	}
	return nil
}
