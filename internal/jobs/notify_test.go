package jobs

import "testing"

func TestLocalize(t *testing.T) {
	tests := []struct {
		locale string
		key    string
		args   []any
		want   string
	}{
		{locale: "", key: msgStarted, want: "Generation started!"},
		{locale: "en-US", key: msgReady, args: []any{"Cave"}, want: `"Cave" is ready!`},
		{locale: "id", key: msgReady, args: []any{"Gua"}, want: `"Gua" sudah siap!`},
		{locale: "id-ID", key: msgFailed, args: []any{"Gua", "quota exceeded"}, want: `"Gua" gagal: quota exceeded`},
		{locale: "fr", key: msgStarted, want: "Generation started!"},
		{locale: "not a tag!", key: msgStarted, want: "Generation started!"},
	}
	for _, tc := range tests {
		t.Run(tc.locale+"/"+tc.key, func(t *testing.T) {
			if got := localize(tc.locale, tc.key, tc.args...); got != tc.want {
				t.Fatalf("localize() = %q, want %q", got, tc.want)
			}
		})
	}
}
