package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// Profiles lists every accepted profile name.
var Profiles = []Profile{ProfileGo, ProfileChrome, ProfileFirefox, ProfileSafari, ProfileRandom}

// ParseProfile validates a user-supplied profile name. Empty selects ProfileGo.
func ParseProfile(s string) (Profile, error) {
	if s == "" {
		return ProfileGo, nil
	}
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if _, err := helloID(p); err != nil {
		return "", err
	}
	return p, nil
}

// Options tune the transport built by Transport.
type Options struct {
	// Proxy is installed as http.Transport.Proxy when set.
	Proxy func(*http.Request) (*url.URL, error)
	// InsecureSkipVerify disables certificate checks (self-signed test servers).
	InsecureSkipVerify bool
}

// Transport returns an http.RoundTripper presenting the TLS ClientHello of
// profile p. ProfileGo yields a plain clone of http.DefaultTransport; every
// other profile performs the handshake through utls.UClient.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	id, err := helloID(p)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != nil {
		transport.Proxy = opts.Proxy
	}

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn := utls.UClient(tcpConn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}, id)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake with %s failed: %w", host, err)
		}
		return uConn, nil
	}

	return transport, nil
}

func helloID(p Profile) (utls.ClientHelloID, error) {
	switch p {
	case ProfileGo:
		return utls.HelloGolang, nil
	case ProfileChrome:
		return utls.HelloChrome_Auto, nil
	case ProfileFirefox:
		return utls.HelloFirefox_Auto, nil
	case ProfileSafari:
		return utls.HelloIOS_Auto, nil
	case ProfileRandom:
		return utls.HelloRandomizedALPN, nil
	default:
		return utls.ClientHelloID{}, fmt.Errorf("fingerprint: unknown profile %q", p)
	}
}
