package domain

import "testing"

func TestClassify_DefaultPrefixes(t *testing.T) {
	rules := DefaultRules()

	cases := []struct {
		path string
		want Category
	}{
		{"/auth/login", CategoryAuth},
		{"/login", CategoryAuth},
		{"/register", CategoryAuth},
		{"/api/auth/token", CategoryAuth},
		{"/api/items", CategoryAPI},
		{"/", CategoryGeneral},
		{"/health", CategoryGeneral},
	}
	for _, c := range cases {
		if got := rules.Classify(c.path); got != c.want {
			t.Fatalf("Classify(%q) = %s, expected %s", c.path, got, c.want)
		}
	}
}

func TestClassify_IsCaseInsensitiveOnBothSides(t *testing.T) {
	rules := DefaultRules()
	// prefixos configurados com maiúsculas têm que casar do mesmo jeito
	rules.AuthPrefixes = []string{"/SignIn"}
	rules.APIPrefixes = []string{"/API"}

	if got := rules.Classify("/signin"); got != CategoryAuth {
		t.Fatalf("expected /signin to match mixed-case auth prefix, got %s", got)
	}
	if got := rules.Classify("/SIGNIN/callback"); got != CategoryAuth {
		t.Fatalf("expected /SIGNIN/callback to classify as auth, got %s", got)
	}
	if got := rules.Classify("/api/v1/items"); got != CategoryAPI {
		t.Fatalf("expected /api/v1/items to match mixed-case api prefix, got %s", got)
	}
}

func TestLimit_UnknownCategoryFallsBackToGeneral(t *testing.T) {
	rules := DefaultRules()

	if got := rules.Limit(Category("weird")); got != rules.Limits[CategoryGeneral] {
		t.Fatalf("expected general fallback, got %+v", got)
	}
}
