package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"(?i)fullname", "(?i)medications"}, "history")
	if err != nil {
		t.Fatal(err)
	}
	store := mw(underlying)
	ctx := context.Background()

	history := []byte(`[{"jobId":"job_1","inputSnapshot":{"answers":{"fullName":"Ana","age":31,"medications":null},
		"payload":{"profile":{"fullName":"Ana","medications":"insulin","gender":"Female"}}}}]`)
	if err := store.Put(ctx, "history", history); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	raw, err := underlying.Get(ctx, "history")
	if err != nil {
		t.Fatalf("underlying Get failed: %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatal(err)
	}

	answers := records[0]["inputSnapshot"].(map[string]any)["answers"].(map[string]any)
	if answers["fullName"] != middleware.Mask {
		t.Errorf("fullName should be masked, got %v", answers["fullName"])
	}
	if answers["medications"] != nil {
		t.Errorf("null values stay null, got %v", answers["medications"])
	}
	if answers["age"] != 31.0 {
		t.Errorf("age should be kept, got %v", answers["age"])
	}
	profile := records[0]["inputSnapshot"].(map[string]any)["payload"].(map[string]any)["profile"].(map[string]any)
	if profile["medications"] != middleware.Mask || profile["gender"] != "Female" {
		t.Errorf("nested profile masked wrongly: %v", profile)
	}
}

func TestPIIMiddleware_Scope(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"fullName"}, "history")
	if err != nil {
		t.Fatal(err)
	}
	store := mw(underlying)
	ctx := context.Background()

	session := []byte(`{"answers":{"fullName":"Ana"}}`)
	_ = store.Put(ctx, "session:1", session)
	_ = store.Put(ctx, "blob:x", []byte{0xff, 0xd8, 0xff})

	raw, _ := underlying.Get(ctx, "session:1")
	if string(raw) != string(session) {
		t.Errorf("out-of-scope key was rewritten: %s", raw)
	}
	blob, _ := underlying.Get(ctx, "blob:x")
	if len(blob) != 3 {
		t.Error("binary values must pass through")
	}
}

func TestPIIMiddleware_BadPattern(t *testing.T) {
	if _, err := middleware.NewPIIMiddleware([]string{"("}); err == nil {
		t.Error("expected compile error")
	}
}

func TestChain_EncryptsMaskedValues(t *testing.T) {
	underlying := memory.NewStore()
	pii, _ := middleware.NewPIIMiddleware([]string{"fullName"})
	enc, _ := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()

	if err := store.Put(ctx, "profile", []byte(`{"fullName":"Ana"}`)); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "profile")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"fullName":"***"}` {
		t.Errorf("got %s", got)
	}
}

func TestPIIMiddleware_DefaultScopes(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"fullName"})
	if err != nil {
		t.Fatal(err)
	}
	store := mw(underlying)
	ctx := context.Background()

	doc := []byte(`{"answers":{"fullName":"Ana"}}`)
	for _, key := range []string{"history", "profile", "session:1", "user"} {
		if err := store.Put(ctx, key, doc); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	for key, masked := range map[string]bool{"history": true, "profile": true, "session:1": false, "user": false} {
		raw, _ := underlying.Get(ctx, key)
		if got := string(raw) != string(doc); got != masked {
			t.Errorf("%s: masked = %v, want %v (%s)", key, got, masked, raw)
		}
	}
}

func TestPIIMiddleware_RejectsSessionScopes(t *testing.T) {
	for _, scope := range []string{"session:", "session:abc", "sess", ""} {
		if _, err := middleware.NewPIIMiddleware([]string{"fullName"}, scope); err == nil {
			t.Errorf("scope %q: expected an error", scope)
		}
	}
}
