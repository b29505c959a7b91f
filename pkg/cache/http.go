package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// NewEntry builds an entry from a response body and its headers.
// Expiry comes from Cache-Control max-age, then Expires, then defaultTTL.
// no-store and no-cache produce an entry that is already expired.
func NewEntry(body []byte, statusCode int, header http.Header, now time.Time, defaultTTL time.Duration) *Entry {
	return &Entry{
		Data:       body,
		ETag:       header.Get("ETag"),
		Expires:    Expiry(header, now, defaultTTL),
		StatusCode: statusCode,
		CachedAt:   now,
	}
}

// Expiry computes when a response with these headers goes stale.
func Expiry(header http.Header, now time.Time, defaultTTL time.Duration) time.Time {
	if cc := header.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.ToLower(strings.TrimSpace(directive))
			switch {
			case directive == "no-store", directive == "no-cache":
				return now
			case strings.HasPrefix(directive, "max-age="):
				if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil {
					if secs <= 0 {
						return now
					}
					return now.Add(time.Duration(secs) * time.Second)
				}
			}
		}
	}

	if expiresStr := header.Get("Expires"); expiresStr != "" {
		if expires, err := http.ParseTime(expiresStr); err == nil {
			if expires.Before(now) {
				return now
			}
			return expires
		}
	}

	return now.Add(defaultTTL)
}

// AddConditionalHeaders sets If-None-Match when the entry has an ETag.
func AddConditionalHeaders(req *http.Request, entry *Entry) bool {
	if entry == nil || req == nil || entry.ETag == "" {
		return false
	}
	req.Header.Set("If-None-Match", entry.ETag)
	return true
}
