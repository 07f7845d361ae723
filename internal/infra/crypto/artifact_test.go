package crypto

import "testing"

func TestHashArtifactNormalization(t *testing.T) {
	jsonA, err := HashArtifact("application/json", []byte(`{"b":1,"a":2}`))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	jsonB, err := HashArtifact("application/json; charset=utf-8", []byte("{\n  \"a\": 2,\n  \"b\": 1\n}"))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if jsonA != jsonB {
		t.Fatal("equivalent json artifacts hashed differently")
	}

	textA, err := HashArtifact("text/plain", []byte("line1\r\nline2\n"))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	textB, err := HashArtifact("TEXT/PLAIN", []byte("line1\nline2\n"))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if textA != textB {
		t.Fatal("crlf and lf text hashed differently")
	}

	binA, err := HashArtifact("application/octet-stream", []byte{0x00, 0x01, 0x02})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	binB, err := HashArtifact("", []byte{0x00, 0x01, 0x02})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if binA != binB || len(binA) != 64 {
		t.Fatalf("binary hashing inconsistent: %s vs %s", binA, binB)
	}
}

func TestHashArtifactRejectsBadInput(t *testing.T) {
	if _, err := HashArtifact("application/json", []byte(`{"a":`)); err == nil {
		t.Fatal("malformed json artifact did not fail")
	}
	if _, err := HashArtifact("text/plain", []byte{0xff, 0xfe}); err == nil {
		t.Fatal("non-utf8 text artifact did not fail")
	}
}
