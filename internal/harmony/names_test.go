package harmony

import "testing"

// S6 — name-map collisions.
func TestNameMapCollisions(t *testing.T) {
	m := NewNameMap()
	inputs := []string{"get weather", "get_weather", "get-weather", "something-different"}
	want := []string{"get_weather", "get_weather_2", "get_weather_3", "something_different"}

	for i, in := range inputs {
		got := m.ConvertAndAdd(in)
		if got != want[i] {
			t.Fatalf("input %q: got %q want %q", in, got, want[i])
		}
	}
}

// Property 4: name-map bijection on the used subset.
func TestNameMapBijectionOnUsedSubset(t *testing.T) {
	m := NewNameMap()
	inputs := []string{"fetch url", "fetch-url", "fetch.url", "123abc", "", "browser.open"}

	converted := make(map[string]string)
	for _, in := range inputs {
		harmonyName := m.ConvertAndAdd(in)
		converted[in] = harmonyName
	}

	seen := make(map[string]bool)
	for in, harmonyName := range converted {
		if seen[harmonyName] {
			t.Fatalf("distinct inputs mapped to same harmony name %q", harmonyName)
		}
		seen[harmonyName] = true

		got := m.OriginalFromConverted(harmonyName)
		if got != in {
			t.Fatalf("bijection broken: convert(%q)=%q, original(%q)=%q", in, harmonyName, harmonyName, got)
		}
	}
}

func TestBuiltinToolNamesPassThrough(t *testing.T) {
	m := NewNameMap()
	for _, name := range []string{"browser.open", "browser.search", "browser.find", "python"} {
		if got := m.ConvertAndAdd(name); got != name {
			t.Fatalf("builtin %q should pass through unchanged, got %q", name, got)
		}
	}
}
