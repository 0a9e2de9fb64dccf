package telegram

import (
	"errors"
	"testing"

	"github.com/edwinv/session-bot/internal/domain"
)

func TestParseAPIKeys(t *testing.T) {
	tests := []struct {
		name       string
		args       string
		wantKey    string
		wantSecret string
		wantErr    bool
	}{
		{"valid pair", "mykey mysecret", "mykey", "mysecret", false},
		{"extra whitespace", "  mykey   mysecret  ", "mykey", "mysecret", false},
		{"empty input", "", "", "", true},
		{"only key", "mykey", "", "", true},
		{"too many arguments", "a b c", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, secret, err := ParseAPIKeys(tt.args)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Fatalf("ParseAPIKeys() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAPIKeys() unexpected error: %v", err)
			}
			if key != tt.wantKey || secret != tt.wantSecret {
				t.Errorf("ParseAPIKeys() = (%q, %q), want (%q, %q)", key, secret, tt.wantKey, tt.wantSecret)
			}
		})
	}
}
