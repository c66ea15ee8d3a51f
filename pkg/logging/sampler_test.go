package logging

import (
	"testing"
)

func TestSampler(t *testing.T) {
	sampler := NewSampler(10)

	if ok, _ := sampler.Allow("malformed:post-1"); !ok {
		t.Error("First occurrence should be logged")
	}

	for i := 2; i <= 9; i++ {
		if ok, _ := sampler.Allow("malformed:post-1"); ok {
			t.Errorf("Occurrence %d should not be logged", i)
		}
	}

	ok, n := sampler.Allow("malformed:post-1")
	if !ok {
		t.Error("10th occurrence should be logged")
	}
	if n != 10 {
		t.Errorf("Expected count 10, got %d", n)
	}

	sampler.Forget("malformed:post-1")
	if count := sampler.Count("malformed:post-1"); count != 0 {
		t.Errorf("Expected count 0 after Forget, got %d", count)
	}
}

func TestSamplerKeysAreIndependent(t *testing.T) {
	sampler := NewSampler(5)

	sampler.Warn("a", "first a")
	sampler.Warn("b", "first b")
	sampler.Warn("a", "second a")

	if sampler.Count("a") != 2 {
		t.Error("a count should be 2")
	}
	if sampler.Count("b") != 1 {
		t.Error("b count should be 1")
	}
}

func TestNewSamplerDefaultsInterval(t *testing.T) {
	sampler := NewSampler(0)
	for i := 1; i <= 10; i++ {
		ok, _ := sampler.Allow("k")
		if want := i == 1 || i == 10; ok != want {
			t.Errorf("occurrence %d: got %v, want %v", i, ok, want)
		}
	}
}
