package testutil

import (
	"fmt"
	"testing"

	"github.com/KiboNaku/utreview-backend-sub000/internal/store"
	"github.com/KiboNaku/utreview-backend-sub000/lib/telemetry"
)

type ServiceParams struct {
	Name string
	// if unspecified, the store is opened in-memory
	DbPath string
}

type ServiceResult struct {
	Store store.Store
}

// SetupService prepares telemetry and a migrated store for a service test.
func SetupService(t testing.TB, params ServiceParams) (ServiceResult, func()) {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))

	st, err := store.Open(store.Config{Driver: "sqlite", Dsn: params.DbPath})
	if err != nil {
		t.Fatal(err)
	}

	return ServiceResult{Store: st}, cleanup
}
