// human readable and writable stdlib types
// which can be used inside config file and log records
package model

import (
	"errors"
	"net/url"
	"os"
)

// URL is the value type handed out for a discovered dev server address.
// The zero value is the empty URL. String returns the text the URL was
// created from, the embedded *url.URL is its parsed form.
type URL struct {
	*url.URL
	raw string
}

// NewURL pairs raw text with its parsed form.
func NewURL(raw string, parsed *url.URL) URL {
	return URL{URL: parsed, raw: raw}
}

func (u URL) AsURL() *url.URL {
	return u.URL
}

func (u URL) IsZero() bool {
	return u.URL == nil
}

func (u URL) String() string {
	if u.URL == nil {
		return ""
	}
	if u.raw != "" {
		return u.raw
	}
	return u.URL.String()
}

// Clone returns a deep copy, so callers can't mutate a shared value.
func (u URL) Clone() URL {
	if u.URL == nil {
		return URL{}
	}

	clone := *u.URL
	if u.User != nil {
		if password, ok := u.User.Password(); ok {
			clone.User = url.UserPassword(u.User.Username(), password)
		} else {
			clone.User = url.User(u.User.Username())
		}
	}
	return URL{URL: &clone, raw: u.raw}
}

func (u *URL) UnmarshalText(text []byte) error {
	if u == nil {
		return errors.New("can't unmarshal to nil")
	}
	raw := os.ExpandEnv(string(text))
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	u.URL = parsed
	u.raw = raw
	return nil
}

func (u URL) MarshalText() ([]byte, error) {
	if u.URL == nil {
		return []byte{}, nil
	}
	return []byte(u.String()), nil
}
