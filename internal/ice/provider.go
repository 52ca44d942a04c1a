// Package ice supplies time-limited ICE server configuration. The coordinator
// treats the result as an opaque pass-through value for the requesting client.
package ice

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/visign/signaling/internal/domain"
)

// Provider returns the ICE servers a given user should negotiate through.
type Provider interface {
	Configuration(userID domain.UserID) []webrtc.ICEServer
}

// StaticProvider serves STUN servers straight from config and, when a TURN
// REST secret is configured, mints per-user time-limited TURN credentials
// (coturn's static-auth-secret scheme: username is "expiry:user", the
// credential is base64(HMAC-SHA1(secret, username))).
type StaticProvider struct {
	servers  []webrtc.ICEServer
	turnURLs []string
	secret   string
	ttl      time.Duration
	now      func() time.Time
}

func NewStaticProvider(servers []webrtc.ICEServer, turnURLs []string, secret string, ttl time.Duration) *StaticProvider {
	return &StaticProvider{
		servers:  servers,
		turnURLs: turnURLs,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (p *StaticProvider) Configuration(userID domain.UserID) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(p.servers)+1)
	out = append(out, p.servers...)
	if p.secret != "" && len(p.turnURLs) > 0 {
		username, credential := restCredentials(p.secret, string(userID), p.now().Add(p.ttl))
		out = append(out, webrtc.ICEServer{
			URLs:       p.turnURLs,
			Username:   username,
			Credential: credential,
		})
	}
	return out
}

func restCredentials(secret, user string, expiry time.Time) (username, credential string) {
	username = fmt.Sprintf("%d:%s", expiry.Unix(), user)
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	credential = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, credential
}
