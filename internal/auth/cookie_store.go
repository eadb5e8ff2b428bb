package auth

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// CookieStore is where the session cookie is read from and written to.
type CookieStore interface {
	Get(name string) (string, bool)
	Set(cookie *http.Cookie)
}

// HTTPCookieStore reads request cookies and writes Set-Cookie headers. Cookies
// set during the request are visible to later reads.
type HTTPCookieStore struct {
	r       *http.Request
	w       http.ResponseWriter
	pending map[string]*http.Cookie
}

func NewHTTPCookieStore(w http.ResponseWriter, r *http.Request) *HTTPCookieStore {
	return &HTTPCookieStore{r: r, w: w, pending: make(map[string]*http.Cookie)}
}

func (s *HTTPCookieStore) Get(name string) (string, bool) {
	if c, ok := s.pending[name]; ok {
		if c.MaxAge < 0 || c.Value == "" {
			return "", false
		}
		return c.Value, true
	}

	c, err := s.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (s *HTTPCookieStore) Set(cookie *http.Cookie) {
	s.pending[cookie.Name] = cookie
	http.SetCookie(s.w, cookie)
}

// Document is a document.cookie style accessor: Cookie returns "a=1; b=2" and
// SetCookie takes one Set-Cookie serialization.
type Document interface {
	Cookie() string
	SetCookie(string)
}

// DocumentCookieStore adapts a Document to CookieStore.
type DocumentCookieStore struct {
	doc Document
}

func NewDocumentCookieStore(doc Document) *DocumentCookieStore {
	return &DocumentCookieStore{doc: doc}
}

func (s *DocumentCookieStore) Get(name string) (string, bool) {
	cookies, err := http.ParseCookie(s.doc.Cookie())
	if err != nil {
		return "", false
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (s *DocumentCookieStore) Set(cookie *http.Cookie) {
	s.doc.SetCookie(cookie.String())
}

// MemoryDocument is an in-process cookie jar with browser expiry semantics.
type MemoryDocument struct {
	mu      sync.Mutex
	cookies map[string]documentCookie
	now     func() time.Time
}

type documentCookie struct {
	value   string
	expires time.Time
}

func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{cookies: make(map[string]documentCookie), now: time.Now}
}

func (d *MemoryDocument) Cookie() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	names := make([]string, 0, len(d.cookies))
	for name, c := range d.cookies {
		if !c.expires.IsZero() && !now.Before(c.expires) {
			delete(d.cookies, name)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+d.cookies[name].value)
	}
	return strings.Join(pairs, "; ")
}

// SetCookie applies raw the way a browser would. Malformed input is ignored.
func (d *MemoryDocument) SetCookie(raw string) {
	c, err := http.ParseSetCookie(raw)
	if err != nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var expires time.Time
	switch {
	case c.MaxAge < 0:
		delete(d.cookies, c.Name)
		return
	case c.MaxAge > 0:
		expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		if !now.Before(c.Expires) {
			delete(d.cookies, c.Name)
			return
		}
		expires = c.Expires
	}

	d.cookies[c.Name] = documentCookie{value: c.Value, expires: expires}
}
