package bridge_test

import (
	"testing"

	"github.com/germanamz/hostbridge/pkg/bridge"
	"github.com/stretchr/testify/assert"
)

func TestSafeOpener_Allowed(t *testing.T) {
	o := &bridge.SafeOpener{}

	tests := []struct {
		url  string
		want bool
	}{
		{"https://tonhub.com/x", true},
		{"https://app.holders.io/cards", true},
		{"http://sub.tonwhales.com", true},
		{"https://TONSANDBOX.COM", true},
		{"https://evil.com", false},
		{"https://holders.io.evil.com", false},
		{"https://notholders.io", false},
		{"tg://resolve?domain=x", false},
		{"not a url", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, o.Allowed(tt.url), tt.url)
	}
}

func TestSafeOpener_CustomScheme(t *testing.T) {
	source := "https://app.holders.io/account"
	o := &bridge.SafeOpener{
		TrustedOrigin: "https://app.holders.io",
		Source:        func() string { return source },
	}

	assert.True(t, o.Allowed("tg://resolve?domain=holders"))

	source = "https://stage.holders.io/"
	assert.False(t, o.Allowed("tg://resolve?domain=holders"))
}

func TestSafeOpener_HostlessTrustedOriginTrustsNothing(t *testing.T) {
	o := &bridge.SafeOpener{
		TrustedOrigin: "tonhub",
		Source:        func() string { return "about:blank" },
	}

	assert.False(t, o.Allowed("tg://resolve?domain=holders"))
	assert.True(t, o.Allowed("https://tonhub.com/x"))
}

func TestSafeOpener_OpenURL(t *testing.T) {
	var opened []string
	o := &bridge.SafeOpener{
		Domains: []string{"example.org"},
		Open:    func(u string) { opened = append(opened, u) },
	}

	assert.True(t, o.OpenURL(" https://docs.example.org/a "))
	assert.False(t, o.OpenURL("https://tonhub.com"))
	assert.Equal(t, []string{"https://docs.example.org/a"}, opened)
}
