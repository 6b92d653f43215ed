package routing

import "testing"

func TestClassify(t *testing.T) {
	table := NewTable("/api/", "/assets/videos/")

	cases := []struct {
		path string
		want Class
	}{
		{"/", ClassStatic},
		{"/index.html", ClassStatic},
		{"/styles/main.css", ClassStatic},
		{"/js/app.js", ClassStatic},
		{"/images/logo.SVG", ClassStatic},
		{"/fonts/sans.woff2", ClassStatic},
		{"/assets/videos/intro.mp4", ClassDynamic},
		{"/user-content/42/avatar", ClassDynamic},
		{"/apiary/hive", ClassDynamic},
		{"/api/feedback", ClassAPI},
		{"/api/users?page=2", ClassAPI},
		{"/about", ClassDefault},
		{"/downloads/report.pdf", ClassDefault},
	}
	for _, c := range cases {
		if got := table.Classify(c.path); got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.path, got, c.want)
		}
	}
}

// Static matching has precedence, even inside dynamic or api territory.
func TestStaticWinsOverLaterRules(t *testing.T) {
	table := NewTable("/api/", "/assets/videos/")
	if got := table.Classify("/assets/videos/poster.png"); got != ClassStatic {
		t.Fatalf("Classify = %s", got)
	}
	if got := table.Classify("/api/docs/index.html"); got != ClassStatic {
		t.Fatalf("Classify = %s", got)
	}
}

func TestStrategyMapping(t *testing.T) {
	cases := []struct {
		class Class
		want  Strategy
	}{
		{ClassStatic, CacheFirst},
		{ClassDynamic, NetworkFirst},
		{ClassAPI, StaleWhileRevalidate},
		{ClassDefault, NetworkFirst},
	}
	for _, c := range cases {
		if got := c.class.Strategy(); got != c.want {
			t.Errorf("%s.Strategy() = %s, want %s", c.class, got, c.want)
		}
	}
}
