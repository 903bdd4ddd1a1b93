package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/flagvane/flagvane/internal/api"
	"github.com/flagvane/flagvane/internal/engine"
	"github.com/flagvane/flagvane/internal/models"
	"github.com/flagvane/flagvane/internal/snapshot"
	"github.com/flagvane/flagvane/internal/store"
	"github.com/flagvane/flagvane/internal/testutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	f := testutil.Flag(1, "new-ui", true,
		testutil.Segment(10, 1, 1, 100, nil, []models.Distribution{
			testutil.Distribution(100, 10, 1000, 100),
		}),
	)
	f = testutil.Variants(f, testutil.Variant(1000, 1, "on", nil))

	ms := store.NewMemoryStore()
	if err := ms.UpsertFlag(context.Background(), f); err != nil {
		t.Fatalf("UpsertFlag: %v", err)
	}

	cache := snapshot.NewCache(ms, snapshot.Config{}, zerolog.Nop())
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	srv := httptest.NewServer(api.NewServer(cache, zerolog.Nop(), 0).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSnapshot(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL)

	doc, err := c.FetchSnapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if len(doc.Flags) != 1 || doc.Flags[0].Key != "new-ui" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.ETag == "" {
		t.Fatal("document missing etag")
	}

	_, err = c.FetchSnapshot(context.Background(), doc.ETag)
	if !errors.Is(err, ErrNotModified) {
		t.Fatalf("conditional fetch err = %v, want ErrNotModified", err)
	}
}

func TestEvaluate(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL)

	res, err := c.Evaluate(context.Background(), engine.EvalContext{
		FlagKey:  "new-ui",
		EntityID: "user_1",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Reason != engine.ReasonMatch || res.VariantKey != "on" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestEvaluateValidationError(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL)

	_, err := c.Evaluate(context.Background(), engine.EvalContext{FlagKey: "new-ui"})
	if err == nil {
		t.Fatal("expected error for missing entityId")
	}
}

func TestListFlags(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL)

	flags, err := c.ListFlags(context.Background())
	if err != nil {
		t.Fatalf("ListFlags: %v", err)
	}
	if len(flags) != 1 || flags[0].Key != "new-ui" || flags[0].Variants != 1 {
		t.Fatalf("unexpected listing: %+v", flags)
	}
}
