package db

import (
	"context"
	"testing"
)

func TestSettings_GetDefaultThenUpdate(t *testing.T) {
	store := OpenTestStore(t)

	got, err := store.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.BrandName != "Watchpost" {
		t.Errorf("expected default brand_name Watchpost, got %q", got.BrandName)
	}

	updated := Settings{BrandName: "Acme Status", BrandLogoURL: "https://acme.example.com/logo.png"}
	if err := store.UpdateSettings(context.Background(), updated); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	got, err = store.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings after update: %v", err)
	}
	if got.BrandName != updated.BrandName || got.BrandLogoURL != updated.BrandLogoURL {
		t.Errorf("expected settings update to persist, got %+v", got)
	}
}
