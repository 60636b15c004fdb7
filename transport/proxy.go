// ABOUTME: SSH+SOCKS5 proxy dialer for reaching a backend on a private network
// ABOUTME: Shared by the REST transport and the realtime websocket dialer

package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	proxy "github.com/cloudfoundry/socks5-proxy"
)

// DialContextFunc matches net.Dialer.DialContext and http.Transport.DialContext
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// NewSOCKS5DialContext creates a dial function for SSH+SOCKS5 proxy connections.
// Supports format: ssh+socks5://user@host:port?private-key=/path/to/key
// The SSH tunnel is established lazily on first dial and reused afterwards.
func NewSOCKS5DialContext(allProxy string) (DialContextFunc, error) {
	allProxy = strings.TrimPrefix(allProxy, "ssh+")

	proxyURL, err := url.Parse(allProxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if proxyURL.Scheme != "socks5" {
		return nil, fmt.Errorf("unsupported proxy scheme %q (want ssh+socks5)", proxyURL.Scheme)
	}

	username := ""
	if proxyURL.User != nil {
		username = proxyURL.User.Username()
	}

	keyPath, err := validateKeyPath(proxyURL.Query().Get("private-key"))
	if err != nil {
		return nil, err
	}

	sshKey, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key: %w", err)
	}

	socks5Proxy := proxy.NewSocks5Proxy(proxy.NewHostKey(), log.Default(), 1*time.Minute)

	var (
		dialer proxy.DialFunc
		mut    sync.RWMutex
	)

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		mut.RLock()
		haveDialer := dialer != nil
		mut.RUnlock()

		if haveDialer {
			return dialer(network, address)
		}

		mut.Lock()
		defer mut.Unlock()
		if dialer == nil {
			proxyDialer, err := socks5Proxy.Dialer(username, string(sshKey), proxyURL.Host)
			if err != nil {
				return nil, fmt.Errorf("error creating SOCKS5 dialer: %w", err)
			}
			dialer = proxyDialer
		}
		return dialer(network, address)
	}, nil
}

// validateKeyPath requires an absolute, traversal-free path to the SSH key
func validateKeyPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("proxy URL missing required 'private-key' query param")
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("private-key path must not contain '..'")
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("private-key path must be absolute")
	}
	return filepath.Clean(path), nil
}
