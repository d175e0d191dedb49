package sendero

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	req := Request{To: "a@example.com", Subject: "hello", Body: "world", From: "ops"}

	if Fingerprint(req) != Fingerprint(req) {
		t.Error("Expected identical requests to produce identical fingerprints")
	}
}

func TestFingerprintFieldSensitivity(t *testing.T) {
	base := Request{To: "a@example.com", Subject: "hello", Body: "world", From: "ops"}

	variants := []Request{
		{To: "b@example.com", Subject: "hello", Body: "world", From: "ops"},
		{To: "a@example.com", Subject: "hello!", Body: "world", From: "ops"},
		{To: "a@example.com", Subject: "hello", Body: "worlds", From: "ops"},
		{To: "a@example.com", Subject: "hello", Body: "world", From: "other"},
	}
	for i, variant := range variants {
		if Fingerprint(variant) == Fingerprint(base) {
			t.Errorf("variant %d: expected a different fingerprint", i)
		}
	}
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	a := Request{To: "x", Subject: "ab", Body: "c"}
	b := Request{To: "x", Subject: "a", Body: "bc"}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("Expected field boundaries to be preserved in the canonical form")
	}
}

func TestFingerprintIgnoresMetadata(t *testing.T) {
	plain := Request{To: "a@example.com", Subject: "s", Body: "b"}
	annotated := Request{To: "a@example.com", Subject: "s", Body: "b", Metadata: map[string]string{"trace": "xyz"}}

	if Fingerprint(plain) != Fingerprint(annotated) {
		t.Error("Expected metadata to be excluded from the fingerprint")
	}
}
