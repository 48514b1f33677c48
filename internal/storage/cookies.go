package storage

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"leafchat/internal/pkg/logx"
)

const cookieOpTimeout = 2 * time.Second

// CookieJar is an http.CookieJar whose cookies survive restarts. Matching
// rules come from net/http/cookiejar; rows are written through on every
// SetCookies.
type CookieJar struct {
	store *Store

	mu    sync.Mutex
	inner *cookiejar.Jar
}

// NewCookieJar loads the unexpired cookies of every host into a fresh jar.
func NewCookieJar(ctx context.Context, store *Store) (*CookieJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jar := &CookieJar{store: store, inner: inner}

	rows, err := store.db.QueryContext(ctx, `
		SELECT scheme, host, name, path, value, secure, http_only, expires_at
		FROM cookies
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	origins := make(map[string]*url.URL)
	byOrigin := make(map[string][]*http.Cookie)
	for rows.Next() {
		var (
			scheme, host string
			c            http.Cookie
			expires      sql.NullTime
		)
		if err := rows.Scan(&scheme, &host, &c.Name, &c.Path, &c.Value, &c.Secure, &c.HttpOnly, &expires); err != nil {
			return nil, err
		}
		if expires.Valid {
			if expires.Time.Before(now) {
				continue
			}
			c.Expires = expires.Time
		}
		key := scheme + "://" + host
		if _, ok := origins[key]; !ok {
			origins[key] = &url.URL{Scheme: scheme, Host: host, Path: "/"}
		}
		byOrigin[key] = append(byOrigin[key], &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for key, cookies := range byOrigin {
		inner.SetCookies(origins[key], cookies)
	}
	return jar, nil
}

func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	j.inner.SetCookies(u, cookies)
	j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cookieOpTimeout)
	defer cancel()
	for _, c := range cookies {
		if err := j.persist(ctx, u, c); err != nil {
			logx.Error(err, "persist cookie failed", "host", u.Host, "name", c.Name)
		}
	}
}

func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

func (j *CookieJar) persist(ctx context.Context, u *url.URL, c *http.Cookie) error {
	path := c.Path
	if path == "" {
		path = "/"
	}
	expired := c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now()))
	if expired {
		_, err := j.store.db.ExecContext(ctx, `DELETE FROM cookies WHERE host = ? AND name = ? AND path = ?`, u.Host, c.Name, path)
		return err
	}
	var expires any
	switch {
	case c.MaxAge > 0:
		expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second).UTC()
	case !c.Expires.IsZero():
		expires = c.Expires.UTC()
	}
	_, err := j.store.db.ExecContext(ctx, `
		INSERT INTO cookies(scheme, host, name, path, value, secure, http_only, expires_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(host, name, path) DO UPDATE SET
			scheme = excluded.scheme,
			value = excluded.value,
			secure = excluded.secure,
			http_only = excluded.http_only,
			expires_at = excluded.expires_at
	`, u.Scheme, u.Host, c.Name, path, c.Value, c.Secure, c.HttpOnly, expires)
	return err
}

// ClearCookies forgets every stored cookie, in memory and on disk.
func (j *CookieJar) ClearCookies(ctx context.Context) error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
	_, err = j.store.db.ExecContext(ctx, `DELETE FROM cookies`)
	return err
}
