package healthcheck_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mdufour/agid/internal/dbpool"
	"github.com/mdufour/agid/internal/healthcheck"
	"github.com/mdufour/agid/internal/metrics"
)

func TestHealthCheck(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HealthCheck Suite")
}

var _ = Describe("HealthCheck", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		log       *slog.Logger
		pool      *dbpool.Pool
		collector *metrics.Collector
	)

	// A directory that does not exist makes every connection attempt fail.
	const brokenURI = "sqlite:///nonexistent-dir/agid.db"

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		log = slog.New(slog.NewTextHandler(io.Discard, nil))

		pool = dbpool.New(log)
		Expect(pool.Reload(ctx, 1, "sqlite::memory:")).To(Succeed())

		collector = metrics.NewCollector(100, log)
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
		pool.Close()
	})

	It("should report the database going down and coming back", func() {
		go healthcheck.HealthCheck(ctx, pool, 20*time.Millisecond, collector, log)

		Consistently(func() bool {
			return collector.Snapshot().DBHealthy
		}, 100*time.Millisecond).Should(BeTrue())

		// Point the pool at an unreachable database.
		Expect(pool.Reload(ctx, 1, brokenURI)).NotTo(Succeed())
		Eventually(func() bool {
			return collector.Snapshot().DBHealthy
		}).Should(BeFalse())

		Expect(pool.Reload(ctx, 1, "sqlite::memory:")).To(Succeed())
		Eventually(func() bool {
			return collector.Snapshot().DBHealthy
		}).Should(BeTrue())
	})

	It("should stop when the context is cancelled", func() {
		done := make(chan struct{})
		go func() {
			healthcheck.HealthCheck(ctx, pool, 20*time.Millisecond, collector, log)
			close(done)
		}()

		cancel()
		Eventually(done).Should(BeClosed())
	})

	It("should run without a collector", func() {
		done := make(chan struct{})
		go func() {
			healthcheck.HealthCheck(ctx, pool, 20*time.Millisecond, nil, log)
			close(done)
		}()

		time.Sleep(60 * time.Millisecond)
		cancel()
		Eventually(done).Should(BeClosed())
	})
})
