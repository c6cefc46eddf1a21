package flash

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func carry(t *testing.T, from *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range from.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestStore_AddThenPop(t *testing.T) {
	store := NewStore(testKey, false)

	rec := httptest.NewRecorder()
	store.Add(rec, httptest.NewRequest(http.MethodPost, "/register/1", nil), Success, "Registered!")

	req := carry(t, rec)
	rec2 := httptest.NewRecorder()
	store.Add(rec2, req, Info, "Second")

	popRec := httptest.NewRecorder()
	messages := store.Pop(popRec, carry(t, rec2))
	require.Len(t, messages, 2)
	assert.Equal(t, Message{Category: Success, Text: "Registered!"}, messages[0])
	assert.Equal(t, Message{Category: Info, Text: "Second"}, messages[1])

	cleared := popRec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestStore_RejectsTamperedCookie(t *testing.T) {
	store := NewStore(testKey, false)
	other := NewStore([]byte("fedcba9876543210fedcba9876543210"), false)

	rec := httptest.NewRecorder()
	other.Add(rec, httptest.NewRequest(http.MethodGet, "/", nil), Danger, "forged")

	assert.Empty(t, store.Pop(httptest.NewRecorder(), carry(t, rec)))
}
