package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/sharefold/sharefold/internal/config"
)

func TestProxyFuncWithBypass(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")

	tests := []struct {
		name       string
		noProxy    string
		target     string
		wantDirect bool
	}{
		{"empty list always proxies", "", "https://api.example.com/files", false},
		{"wildcard matches subdomain", "*.example.com", "https://api.example.com/files", true},
		{"bare domain matches root", "example.com", "https://example.com/files", true},
		{"bare domain matches subdomain", "example.com", "https://bucket.example.com/obj", true},
		{"cidr match", "10.0.0.0/8", "http://10.1.2.3:8080/folders", true},
		{"non matching host", "internal.corp", "https://s3.amazonaws.com/b/k", false},
		{"second pattern matches", "internal.corp,blob.core.windows.net", "https://acct.blob.core.windows.net/c/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := proxyFuncWithBypass(proxyURL, tt.noProxy)
			req, _ := http.NewRequest("GET", tt.target, nil)
			got, err := fn(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantDirect && got != nil {
				t.Errorf("expected direct connection, got proxy %v", got)
			}
			if !tt.wantDirect {
				if got == nil {
					t.Fatal("expected proxy, got direct connection")
				}
				if got.Host != "proxy.corp:8080" {
					t.Errorf("proxy host = %s", got.Host)
				}
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	cfg := config.New()
	cfg.ProxyHost = "proxy.corp"

	u := buildProxyURL(cfg)
	if u.Host != "proxy.corp:8080" {
		t.Errorf("default port not applied: %s", u.Host)
	}
	if u.User != nil {
		t.Error("no credentials expected without user/password")
	}

	cfg.ProxyPort = 3128
	cfg.ProxyUser = "svc"
	u = buildProxyURL(cfg)
	if u.User != nil {
		t.Error("credentials must not be embedded without a password")
	}

	cfg.ProxyPassword = "pw"
	u = buildProxyURL(cfg)
	if u.Host != "proxy.corp:3128" || u.User.Username() != "svc" {
		t.Errorf("unexpected proxy url %s", u.Redacted())
	}
}

func TestConfigureHTTPClientModes(t *testing.T) {
	cfg := config.New()

	client, err := ConfigureHTTPClient(cfg, nil)
	if err != nil {
		t.Fatalf("no-proxy: %v", err)
	}
	if tr, ok := client.Transport.(*http.Transport); !ok || tr.Proxy != nil {
		t.Error("no-proxy mode should use a plain transport without proxy")
	}
	if client.Timeout != 0 {
		t.Error("client must not carry an overall timeout")
	}

	cfg.ProxyMode = config.ProxyModeNTLM
	cfg.ProxyHost = "proxy.corp"
	client, err = ConfigureHTTPClient(cfg, nil)
	if err != nil {
		t.Fatalf("ntlm: %v", err)
	}
	if _, ok := client.Transport.(ntlmssp.Negotiator); !ok {
		t.Errorf("ntlm mode should wrap the transport, got %T", client.Transport)
	}

	cfg.ProxyMode = "socks5"
	if _, err := ConfigureHTTPClient(cfg, nil); err == nil {
		t.Error("expected error for unsupported proxy mode")
	}
}

func TestCreateTransferClientDisablesHTTP2BehindProxy(t *testing.T) {
	cfg := config.New()
	cfg.ProxyMode = config.ProxyModeBasic
	cfg.ProxyHost = "proxy.corp"

	client, err := CreateTransferClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	tr := client.Transport.(*http.Transport)
	if tr.ForceAttemptHTTP2 {
		t.Error("HTTP/2 should be disabled when a proxy is active")
	}
	if !tr.DisableCompression {
		t.Error("compression should be disabled for transfers")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeNone},
		{context.DeadlineExceeded, ErrorTypeNetwork},
		{fmt.Errorf("put: %w", timeoutErr{}), ErrorTypeNetwork},
		{errors.New("read: connection reset by peer"), ErrorTypeNetwork},
		{errors.New("object store returned status 403: SignatureDoesNotMatch"), ErrorTypeCredential},
		{errors.New("Request has expired"), ErrorTypeCredential},
		{errors.New("object store returned status 503"), ErrorTypeServer},
		{errors.New("object store returned status 400"), ErrorTypeFatal},
		{errors.New("something odd"), ErrorTypeFatal},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError = %s, want %s", ErrorTypeName(got), ErrorTypeName(tt.want))
			}
		})
	}
}
