package api

import (
	"net/http"
	"strings"

	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/secrets"
)

// credential extracts the presented key from any of the three accepted
// forms: "Authorization: Bearer <k>", "X-API-Key: <k>", or
// "?key=<k>". An empty string means none was presented.
func credential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	return r.URL.Query().Get("key")
}

// requireMonitorManageKey verifies the presented credential against the
// manage_key_hash of the monitor named by the chi URL parameter: a
// monitor's own manage_key, nothing else, grants write access to it.
func requireMonitorManageKey(store *db.Store, idParam func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := credential(r)
		if key == "" {
			writeUnauthenticated(w)
			return
		}
		id := idParam(r)
		hash, err := store.GetMonitorManageKeyHash(r.Context(), id)
		if err != nil {
			if err == db.ErrNotFound {
				writeNotFound(w, "monitor")
				return
			}
			writeInternal(w)
			return
		}
		if verifyErr := secrets.Verify(key, hash); verifyErr != nil {
			writeForbidden(w)
			return
		}
		next(w, r)
	}
}

// requireManageKeyFor gates a handler behind the manage_key of a monitor
// resolved indirectly (e.g. an incident's owning monitor) rather than
// directly from the URL — used for /incidents/:id/(acknowledge|notes) and
// /notifications/:channelId.
func requireManageKeyFor(store *db.Store, resolveMonitorID func(*db.Store, *http.Request) (string, error), next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := credential(r)
		if key == "" {
			writeUnauthenticated(w)
			return
		}
		monitorID, err := resolveMonitorID(store, r)
		if err != nil {
			if err == db.ErrNotFound {
				writeNotFound(w, "resource")
				return
			}
			writeInternal(w)
			return
		}
		hash, err := store.GetMonitorManageKeyHash(r.Context(), monitorID)
		if err != nil {
			if err == db.ErrNotFound {
				writeNotFound(w, "monitor")
				return
			}
			writeInternal(w)
			return
		}
		if verifyErr := secrets.Verify(key, hash); verifyErr != nil {
			writeForbidden(w)
			return
		}
		next(w, r)
	}
}

// requireStatusPageManageKey is the status-page analogue of
// requireMonitorManageKey. Status pages are addressable by id or slug,
// so the lookup tries id first and falls back to slug.
func requireStatusPageManageKey(store *db.Store, idParam func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := credential(r)
		if key == "" {
			writeUnauthenticated(w)
			return
		}
		idOrSlug := idParam(r)
		page, err := store.GetStatusPage(r.Context(), idOrSlug)
		if err == db.ErrNotFound {
			page, err = store.GetStatusPageBySlug(r.Context(), idOrSlug)
		}
		if err != nil {
			if err == db.ErrNotFound {
				writeNotFound(w, "status page")
				return
			}
			writeInternal(w)
			return
		}
		if verifyErr := secrets.Verify(key, page.ManageKeyHash); verifyErr != nil {
			writeForbidden(w)
			return
		}
		next(w, r)
	}
}

// requireAdminKey gates location CRUD and settings writes behind the
// single singleton admin key minted on first start.
func requireAdminKey(store *db.Store, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := credential(r)
		if key == "" {
			writeUnauthenticated(w)
			return
		}
		ok, err := store.VerifyAdminKey(key)
		if err != nil {
			writeInternal(w)
			return
		}
		if !ok {
			writeForbidden(w)
			return
		}
		next(w, r)
	}
}

// requireProbeKey gates remote probe ingest behind a check location's own
// probe_key.
func requireProbeKey(store *db.Store, next func(w http.ResponseWriter, r *http.Request, locationID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := credential(r)
		if key == "" {
			writeUnauthenticated(w)
			return
		}
		locations, err := store.ListCheckLocations(r.Context())
		if err != nil {
			writeInternal(w)
			return
		}
		for _, loc := range locations {
			if loc.IsDisabled {
				continue
			}
			if secrets.Verify(key, loc.ProbeKeyHash) == nil {
				next(w, r, loc.ID)
				return
			}
		}
		writeForbidden(w)
	}
}
