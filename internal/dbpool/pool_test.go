package dbpool_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mdufour/agid/internal/dbpool"
)

func TestDBPool(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DBPool Suite")
}

const memoryURI = "sqlite::memory:"

var _ = Describe("Pool", func() {
	var (
		pool *dbpool.Pool
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		pool = dbpool.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	AfterEach(func() {
		pool.Close()
	})

	Describe("Reload", func() {
		It("should eagerly open the configured reserve", func() {
			Expect(pool.Reload(ctx, 2, memoryURI)).To(Succeed())
			Expect(pool.IdleCount()).To(Equal(2))
			Expect(pool.URI()).To(Equal(memoryURI))
		})

		It("should replace the reserve on a subsequent reload", func() {
			Expect(pool.Reload(ctx, 3, memoryURI)).To(Succeed())
			Expect(pool.Reload(ctx, 1, memoryURI)).To(Succeed())
			Expect(pool.IdleCount()).To(Equal(1))
		})

		It("should fail on an unsupported uri scheme", func() {
			Expect(pool.Reload(ctx, 2, "mysql://root@localhost/x")).NotTo(Succeed())
		})

		It("should not recall borrowed connections", func() {
			Expect(pool.Reload(ctx, 1, memoryURI)).To(Succeed())

			conn, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(pool.Reload(ctx, 1, memoryURI)).To(Succeed())
			Expect(pool.IdleCount()).To(Equal(1))

			// The borrowed connection still works across the reload.
			Expect(conn.Ping(ctx)).To(Succeed())

			// Reserve is already full, so the stale connection is closed
			// on release rather than cached.
			pool.Release(conn)
			Expect(pool.IdleCount()).To(Equal(1))
		})
	})

	Describe("Acquire", func() {
		BeforeEach(func() {
			Expect(pool.Reload(ctx, 2, memoryURI)).To(Succeed())
		})

		It("should serve distinct connections without blocking past the reserve", func() {
			c1, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			c2, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pool.IdleCount()).To(Equal(0))

			// Third acquire opens a brand-new connection instead of waiting.
			c3, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(c1).NotTo(BeIdenticalTo(c2))
			Expect(c1).NotTo(BeIdenticalTo(c3))
			Expect(c2).NotTo(BeIdenticalTo(c3))

			pool.Release(c1)
			pool.Release(c2)
			pool.Release(c3)
		})

		It("should fail before the first reload", func() {
			fresh := dbpool.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
			_, err := fresh.Acquire(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Release", func() {
		BeforeEach(func() {
			Expect(pool.Reload(ctx, 2, memoryURI)).To(Succeed())
		})

		It("should cache up to the configured size and close the surplus", func() {
			c1, _ := pool.Acquire(ctx)
			c2, _ := pool.Acquire(ctx)
			c3, err := pool.Acquire(ctx)
			Expect(err).NotTo(HaveOccurred())

			// Reserve holds 0 of 2: c3 is cached.
			pool.Release(c3)
			Expect(pool.IdleCount()).To(Equal(1))

			pool.Release(c2)
			Expect(pool.IdleCount()).To(Equal(2))

			// Reserve is full: c1 is closed, not cached.
			pool.Release(c1)
			Expect(pool.IdleCount()).To(Equal(2))
		})

		It("should tolerate a nil connection", func() {
			pool.Release(nil)
			Expect(pool.IdleCount()).To(Equal(2))
		})
	})

	Describe("Ping", func() {
		It("should verify database reachability through the pool", func() {
			Expect(pool.Reload(ctx, 1, memoryURI)).To(Succeed())
			Expect(pool.Ping(ctx)).To(Succeed())
			Expect(pool.IdleCount()).To(Equal(1))
		})
	})

	Describe("Close", func() {
		It("should drain the reserve", func() {
			Expect(pool.Reload(ctx, 2, memoryURI)).To(Succeed())
			Expect(pool.Close()).To(Succeed())
			Expect(pool.IdleCount()).To(Equal(0))
		})
	})
})

var _ = Describe("Conn", func() {
	var (
		pool *dbpool.Pool
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		pool = dbpool.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
		Expect(pool.Reload(ctx, 1, memoryURI)).To(Succeed())
	})

	AfterEach(func() {
		pool.Close()
	})

	It("should commit work done through a cursor", func() {
		conn, err := pool.Acquire(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Release(conn)

		cur, err := conn.Begin(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = cur.Exec(ctx, "CREATE TABLE t (n INTEGER)")
		Expect(err).NotTo(HaveOccurred())
		_, err = cur.Exec(ctx, "INSERT INTO t (n) VALUES ($1)", 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(cur.Commit()).To(Succeed())

		cur, err = conn.Begin(ctx)
		Expect(err).NotTo(HaveOccurred())
		var n int
		Expect(cur.QueryRow(ctx, "SELECT n FROM t").Scan(&n)).To(Succeed())
		Expect(n).To(Equal(7))
		Expect(cur.Rollback()).To(Succeed())
	})

	It("should discard rolled back work", func() {
		conn, err := pool.Acquire(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Release(conn)

		cur, err := conn.Begin(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = cur.Exec(ctx, "CREATE TABLE t (n INTEGER)")
		Expect(err).NotTo(HaveOccurred())
		Expect(cur.Rollback()).To(Succeed())

		cur, err = conn.Begin(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer cur.Rollback()
		_, err = cur.Query(ctx, "SELECT n FROM t")
		Expect(err).To(HaveOccurred())
	})

	It("should allow Rollback after Commit as a no-op", func() {
		conn, err := pool.Acquire(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Release(conn)

		cur, err := conn.Begin(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(cur.Commit()).To(Succeed())
		Expect(cur.Rollback()).To(Succeed())
	})
})
