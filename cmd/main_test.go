package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/skinmate/internal/app"
	"github.com/okian/skinmate/internal/config"
	"github.com/okian/skinmate/pkg/logger"
	"github.com/okian/skinmate/pkg/metrics"
)

func TestMainConfiguration(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("SKINMATE_ADDR", ":8080")
		_ = os.Setenv("SKINMATE_QUEUE_SIZE", "128")
		_ = os.Setenv("SKINMATE_WORKER_COUNT", "2")
		defer func() {
			_ = os.Unsetenv("SKINMATE_ADDR")
			_ = os.Unsetenv("SKINMATE_QUEUE_SIZE")
			_ = os.Unsetenv("SKINMATE_WORKER_COUNT")
		}()

		convey.Convey("When the configuration is loaded and the service built", func() {
			ctx := context.Background()
			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 128)

			svc, err := service.FromConfig(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			convey.Convey("Then its stats reflect the configuration", func() {
				stats := svc.GetStats(ctx)
				convey.So(stats["workerCount"], convey.ShouldEqual, 2)
				convey.So(stats["queueCapacity"], convey.ShouldEqual, 128)
			})
		})
	})

	convey.Convey("Given an empty listen address", t, func() {
		_ = os.Setenv("SKINMATE_ADDR", "")
		defer func() { _ = os.Unsetenv("SKINMATE_ADDR") }()

		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(cfg, convey.ShouldBeNil)
	})
}

func TestMainRoutes(t *testing.T) {
	convey.Convey("Given the assembled mux", t, func() {
		ctx := context.Background()
		cfg := config.New()
		svc, err := service.FromConfig(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(newMux(ctx, cfg, svc, logger.Nop()))
		defer srv.Close()

		get := func(path string) (int, string) {
			resp, err := http.Get(srv.URL + path)
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return resp.StatusCode, string(body)
		}

		convey.Convey("Then documentation and business routes both answer", func() {
			code, body := get("/openapi.yaml")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldContainSubstring, "/v1/analyses")

			code, body = get("/stats")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldContainSubstring, "queueCapacity")

			code, body = get("/healthz")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(strings.Contains(body, "skinmate_"), convey.ShouldBeTrue)

			code, _ = get("/v1/reports/unknown")
			convey.So(code, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestMetricsOptions(t *testing.T) {
	convey.Convey("Given metrics naming set through the environment", t, func() {
		_ = os.Setenv("SKINMATE_METRICS_NAMESPACE", "derm")
		_ = os.Setenv("SKINMATE_METRICS_PREFIX", "canary")
		defer func() {
			_ = os.Unsetenv("SKINMATE_METRICS_NAMESPACE")
			_ = os.Unsetenv("SKINMATE_METRICS_PREFIX")
		}()
		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the manager is configured from it", func() {
			metrics.Configure(metricsOptions(cfg)...)
			defer metrics.Configure()
			metrics.RecordJobSubmitted()

			convey.Convey("Then series carry the configured names", func() {
				families, err := metrics.GetRegistry().Gather()
				convey.So(err, convey.ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				convey.So(names, convey.ShouldContain, "derm_analysis_canary_jobs_submitted_total")
				convey.So(names, convey.ShouldNotContain, "skinmate_analysis_jobs_submitted_total")
			})
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given cancelled contexts", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		svc := service.New()

		convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
