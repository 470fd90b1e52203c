package idkind

import "testing"

func TestKindOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		id   string
		want Kind
	}{
		{"s:subjid", Source},
		{"d:usubjid", Derived},
		{"v:usubjid", Derived},
		{"c:age_positive", Constraint},
		{"t:direct_copy", Transform},
		{"x:nope", Unknown},
		{"nocolon", Unknown},
	}
	for _, tc := range cases {
		if got := KindOf(tc.id); got != tc.want {
			t.Errorf("KindOf(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	good := []string{"s:subjid", "d:usubjid", "c:age_positive", "t:direct_copy_v2"}
	for _, id := range good {
		if !Valid(id) {
			t.Errorf("Valid(%q) = false, want true", id)
		}
	}

	bad := []string{"s:Subjid", "S:subjid", "s:", "s:1abc", "s:has-dash", "plain"}
	for _, id := range bad {
		if Valid(id) {
			t.Errorf("Valid(%q) = true, want false", id)
		}
	}
}
