package ecp

import (
	"crypto/md5" //#nosec G501 -- HTTP digest auth is defined over MD5
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var authPartRE = regexp.MustCompile(`(nonce|realm|qop)="([^"]+)"`)

// digestChallenge holds the fields of a WWW-Authenticate digest challenge.
type digestChallenge struct {
	Realm string
	Nonce string
	QOP   string
}

// parseChallenge reads a WWW-Authenticate header value.
func parseChallenge(header string) (digestChallenge, error) {
	var ch digestChallenge
	if header == "" {
		return ch, fmt.Errorf("could not get auth header nonce from device web server")
	}
	for _, part := range strings.Split(header, ",") {
		m := authPartRE.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		switch m[1] {
		case "realm":
			ch.Realm = m[2]
		case "nonce":
			ch.Nonce = m[2]
		case "qop":
			ch.QOP = m[2]
		}
	}
	if ch.Nonce == "" {
		return ch, fmt.Errorf("auth challenge had no nonce: %q", header)
	}
	return ch, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s)) //#nosec G401
	return hex.EncodeToString(sum[:])
}

func randHex(n int) string {
	b := make([]byte, n/2)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// authHeader builds the Authorization header for one request. The nonce
// count belongs to the client so sessions never share it.
func (c *Client) authHeader(ch digestChallenge, method, uri string) string {
	c.mu.Lock()
	c.nonceCount++
	nc := fmt.Sprintf("%08x", c.nonceCount)
	c.mu.Unlock()

	cnonce := randHex(8)
	ha1 := md5Hex(strings.Join([]string{c.user, ch.Realm, c.pass}, ":"))
	ha2 := md5Hex(method + ":" + uri)
	response := md5Hex(strings.Join([]string{ha1, ch.Nonce, nc, cnonce, ch.QOP, ha2}, ":"))

	return fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", cnonce="%s", nc=%s, qop="%s", response="%s"`,
		c.user, ch.Realm, ch.Nonce, uri, cnonce, nc, ch.QOP, response)
}
