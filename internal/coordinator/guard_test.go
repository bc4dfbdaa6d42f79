package coordinator

import "testing"

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		url     string
		caption string
		ok      bool
	}{
		{"plain url", "https://video.example/watch?v=1", "https://video.example/watch?v=1", "", true},
		{"text around url", "look at http://a.example/x now", "http://a.example/x", "", true},
		{"custom caption", "https://video.example/v * My holiday", "https://video.example/v", "My holiday", true},
		{"first url wins", "https://one.example https://two.example", "https://one.example", "", true},
		{"caption before url", "note * https://video.example/v", "https://video.example/v", "", true},
		{"no url", "hello there", "", "", false},
		{"no scheme", "video.example/watch", "", "", false},
		{"empty", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, caption, ok := parseRequest(tt.text)
			if ok != tt.ok || url != tt.url || caption != tt.caption {
				t.Errorf("parseRequest(%q) = %q, %q, %v; want %q, %q, %v", tt.text, url, caption, ok, tt.url, tt.caption, tt.ok)
			}
		})
	}
}

func TestBannedKeyword(t *testing.T) {
	tests := []struct {
		url     string
		keyword string
		hit     bool
	}{
		{"https://video.example/watch?v=1", "", false},
		{"https://ADULT.example/x", "adult", true},
		{"https://x.example/SexyClip", "sex", true},
		{"https://x.example/pornhub", "porn", true},
	}

	for _, tt := range tests {
		kw, hit := bannedKeyword(tt.url, DefaultBannedKeywords)
		if hit != tt.hit || kw != tt.keyword {
			t.Errorf("bannedKeyword(%q) = %q, %v; want %q, %v", tt.url, kw, hit, tt.keyword, tt.hit)
		}
	}
}
