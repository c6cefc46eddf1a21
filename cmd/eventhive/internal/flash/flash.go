// Package flash carries one-shot notices across a redirect in a signed cookie.
package flash

import (
	"log"
	"net/http"

	"github.com/gorilla/securecookie"
)

// CookieName is the cookie holding pending notices.
const CookieName = "eventhive.flash"

// Categories understood by the templates.
const (
	Success = "success"
	Info    = "info"
	Warning = "warning"
	Danger  = "danger"
)

// Message is a single notice.
type Message struct {
	Category string `json:"c"`
	Text     string `json:"t"`
}

// Store signs and verifies the flash cookie.
type Store struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewStore returns a store signing with hashKey (32 or 64 bytes recommended).
func NewStore(hashKey []byte, secure bool) *Store {
	codec := securecookie.New(hashKey, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(0)
	return &Store{codec: codec, secure: secure}
}

// Add queues a notice for the next page render. Notices already pending on
// the request are kept.
func (s *Store) Add(w http.ResponseWriter, r *http.Request, category, text string) {
	messages := s.read(r)
	messages = append(messages, Message{Category: category, Text: text})

	encoded, err := s.codec.Encode(CookieName, messages)
	if err != nil {
		log.Printf("WARNING: flash message dropped: %v", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop returns pending notices and clears the cookie.
func (s *Store) Pop(w http.ResponseWriter, r *http.Request) []Message {
	messages := s.read(r)
	if len(messages) == 0 {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return messages
}

func (s *Store) read(r *http.Request) []Message {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	var messages []Message
	if err := s.codec.Decode(CookieName, cookie.Value, &messages); err != nil {
		return nil
	}
	return messages
}
