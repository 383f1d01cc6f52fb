package repository

import (
	"encoding/base64"
	"encoding/json"

	"github.com/grabngo/loaner/internal/apperr"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Page is a decoded list window
type Page struct {
	Size   int
	Offset int
}

type pageCursor struct {
	Offset int `json:"o"`
}

// ParsePage validates a page size and opaque page token
func ParsePage(size int, token string) (Page, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	p := Page{Size: size}
	if token == "" {
		return p, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Page{}, apperr.ErrBadPageToken
	}
	var cur pageCursor
	if err := json.Unmarshal(raw, &cur); err != nil || cur.Offset < 0 {
		return Page{}, apperr.ErrBadPageToken
	}
	p.Offset = cur.Offset
	return p, nil
}

// NextToken returns the token for the following page, or "" at the end
func (p Page) NextToken(total int64) string {
	next := p.Offset + p.Size
	if int64(next) >= total {
		return ""
	}
	raw, _ := json.Marshal(pageCursor{Offset: next})
	return base64.RawURLEncoding.EncodeToString(raw)
}
