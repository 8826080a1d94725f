package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/redflag/internal/config"
	"github.com/okian/redflag/internal/domain/session"
	"github.com/okian/redflag/pkg/logger"
)

func TestComposition(t *testing.T) {
	convey.Convey("Given a default configuration with a catalog", t, func() {
		ctx := context.Background()
		log := logger.Nop()
		cfg := config.New(ctx)
		cfg.AdminToken = "admin"
		cfg.RateLimitRPS = 0
		cfg.CatalogPath = filepath.Join(t.TempDir(), "elements.yaml")
		convey.So(os.WriteFile(cfg.CatalogPath, []byte(`
elements:
  - {id: 1, text: arrive en retard, category: amour}
  - {id: 2, text: ghoste après un rdv, category: amour}
`), 0o600), convey.ShouldBeNil)

		convey.Convey("When the process is assembled", func() {
			store, err := openStore(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			seed, err := loadSeed(cfg)
			convey.So(err, convey.ShouldBeNil)
			svc := newService(cfg, store, session.NewBuffer(session.WithCapacity(cfg.SessionCapacity)), seed, log)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()
			mux := newMux(cfg, svc, log)

			convey.Convey("Then the seeded catalog is served", func() {
				req := httptest.NewRequest(http.MethodPost, "/duels/next", strings.NewReader(`{}`))
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "arrive en retard")

				updateServiceMetrics(svc)
				updateSystemMetrics()
			})

			convey.Convey("Then the API document is served", func() {
				req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("Then admin routes require the token", func() {
				req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)
			})
		})

		convey.Convey("When the catalog is missing", func() {
			cfg.CatalogPath += ".missing"
			_, err := loadSeed(cfg)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
