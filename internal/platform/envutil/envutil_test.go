package envutil

import (
	"testing"
	"time"
)

func TestDurationParsesBothForms(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_DUR", "750ms")
	if got := Duration("ENVUTIL_TEST_DUR", time.Second); got != 750*time.Millisecond {
		t.Fatalf("duration syntax: got=%s", got)
	}
	t.Setenv("ENVUTIL_TEST_DUR", "3")
	if got := Duration("ENVUTIL_TEST_DUR", time.Second); got != 3*time.Second {
		t.Fatalf("bare seconds: got=%s", got)
	}
	t.Setenv("ENVUTIL_TEST_DUR", "soon")
	if got := Duration("ENVUTIL_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("fallback: got=%s", got)
	}
}

func TestFloatAndBoolFallbacks(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_RATE", "0.05")
	if got := Float("ENVUTIL_TEST_RATE", 0.029); got != 0.05 {
		t.Fatalf("float: got=%v", got)
	}
	t.Setenv("ENVUTIL_TEST_RATE", "abc")
	if got := Float("ENVUTIL_TEST_RATE", 0.029); got != 0.029 {
		t.Fatalf("float fallback: got=%v", got)
	}
	t.Setenv("ENVUTIL_TEST_FLAG", "on")
	if !Bool("ENVUTIL_TEST_FLAG", false) {
		t.Fatalf("bool on should be true")
	}
	t.Setenv("ENVUTIL_TEST_FLAG", "maybe")
	if Bool("ENVUTIL_TEST_FLAG", false) {
		t.Fatalf("bool fallback should be false")
	}
}
